// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package records

import "testing"

func TestMerge_ScalarFillOnlyWhenEmpty(t *testing.T) {
	a := &Entity{FilingNumber: "12345", Name: "Acme Holdings", Status: ""}
	b := &Entity{FilingNumber: "12345", Name: "SHOULD NOT WIN", Status: "In Existence", TaxID: "32001"}

	a.Merge(b)

	if a.Name != "Acme Holdings" {
		t.Errorf("Merge overwrote non-empty Name: %q", a.Name)
	}
	if a.Status != "In Existence" {
		t.Errorf("Merge did not fill empty Status: %q", a.Status)
	}
	if a.TaxID != "32001" {
		t.Errorf("Merge did not fill empty TaxID: %q", a.TaxID)
	}
}

func TestMerge_FilingEventsDedupByDocumentNumber(t *testing.T) {
	a := &Entity{FilingNumber: "12345"}
	a.AddFilingEvent(FilingEvent{DocumentNumber: "D1", FilingType: "Annual", FilingDate: "2020-01-01"})

	b := &Entity{FilingNumber: "12345"}
	b.AddFilingEvent(FilingEvent{DocumentNumber: "D1", FilingType: "Annual", FilingDate: "2020-01-01"})
	b.AddFilingEvent(FilingEvent{DocumentNumber: "D2", FilingType: "Amendment", FilingDate: "2021-06-01"})

	a.Merge(b)

	if len(a.FilingHistory) != 2 {
		t.Fatalf("FilingHistory length = %d, want 2", len(a.FilingHistory))
	}
	if a.FilingHistory[0].DocumentNumber != "D1" || a.FilingHistory[1].DocumentNumber != "D2" {
		t.Errorf("unexpected filing history order: %+v", a.FilingHistory)
	}
}

func TestMerge_NamesDedupByNameAndStatus(t *testing.T) {
	a := &Entity{FilingNumber: "1"}
	a.AddName(NameRecord{Name: "Acme", NameStatus: "In Use"})
	a.AddName(NameRecord{Name: "Acme", NameStatus: "In Use"})
	a.AddName(NameRecord{Name: "Acme", NameStatus: "Inactive"})

	if len(a.Names) != 2 {
		t.Errorf("Names length = %d, want 2", len(a.Names))
	}
}

func TestMerge_RegisteredAgentFill(t *testing.T) {
	a := &Entity{FilingNumber: "1"}
	b := &Entity{FilingNumber: "1", RegisteredAgent: &RegisteredAgent{Name: "Agent One", Address: "1 Main Street"}}

	a.Merge(b)
	if a.RegisteredAgent == nil || a.RegisteredAgent.Name != "Agent One" {
		t.Fatalf("Merge did not adopt registered agent: %+v", a.RegisteredAgent)
	}

	c := &Entity{FilingNumber: "1", RegisteredAgent: &RegisteredAgent{Name: "Agent Two", InactiveDate: "2022-01-01"}}
	a.Merge(c)
	if a.RegisteredAgent.Name != "Agent One" {
		t.Errorf("Merge overwrote agent name: %q", a.RegisteredAgent.Name)
	}
	if a.RegisteredAgent.InactiveDate != "2022-01-01" {
		t.Errorf("Merge did not fill agent inactive date: %q", a.RegisteredAgent.InactiveDate)
	}
}

func TestManagementDedupByNameAndTitle(t *testing.T) {
	a := &Entity{FilingNumber: "1"}
	a.AddManagement(ManagementRecord{Name: "Jane Roe", Title: "Director"})
	a.AddManagement(ManagementRecord{Name: "Jane Roe", Title: "Director", LastUpdate: "2021-01-01"})
	a.AddManagement(ManagementRecord{Name: "Jane Roe", Title: "President"})

	if len(a.Management) != 2 {
		t.Errorf("Management length = %d, want 2", len(a.Management))
	}
}

func TestMergeNilIsNoOp(t *testing.T) {
	a := &Entity{FilingNumber: "1", Name: "Acme"}
	a.Merge(nil)
	if a.Name != "Acme" {
		t.Errorf("Merge(nil) altered entity")
	}
}
