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

package ingestion

import (
	"strings"
	"testing"

	"github.com/kraklabs/rie/pkg/records"
)

func sampleEntity() *records.Entity {
	return &records.Entity{
		FilingNumber:       "12345",
		Name:               "Acme Holdings LLC",
		EntityType:         "Domestic Limited Liability Company (LLC)",
		Status:             "In existence",
		OriginalFilingDate: "2020-01-15",
		RegisteredAgent: &records.RegisteredAgent{
			Name:    "Jane Smith",
			Address: "100 Congress Avenue, Austin, TX 78701",
		},
		FilingHistory: []records.FilingEvent{
			{DocumentNumber: "D1", FilingType: "Certificate of Formation", FilingDate: "2020-01-15"},
			{FilingType: "Public Information Report", FilingDate: "2021-05-01"},
		},
		Names: []records.NameRecord{
			{Name: "Acme Holdings LLC", NameStatus: "In use", NameType: "Legal"},
		},
		Management: []records.ManagementRecord{
			{LastUpdate: "2021-05-01", Name: "John Roe", Title: "Manager"},
		},
		InitialAddress: "100 Congress Avenue, Austin, TX 78701",
	}
}

func TestDecompose_EmitsAllChildKinds(t *testing.T) {
	d := NewRecursiveDecomposer(nil)
	docs := d.Decompose(sampleEntity())

	byKey := make(map[string]ChildDocument, len(docs))
	for _, doc := range docs {
		byKey[doc.Key] = doc
	}

	for _, key := range []string{
		"entity_12345",
		"registered_agent_12345",
		"filing_D1",
		"filing_12345_1",
		"name_12345_0",
		"management_12345_0",
		"initial_address_12345",
	} {
		if _, ok := byKey[key]; !ok {
			t.Errorf("missing child %q (got %v)", key, keysOf(docs))
		}
	}
	if len(docs) != 7 {
		t.Errorf("children = %d, want 7: %v", len(docs), keysOf(docs))
	}
}

func keysOf(docs []ChildDocument) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Key
	}
	return out
}

func TestDecompose_FilingDocumentNumberFallback(t *testing.T) {
	d := NewRecursiveDecomposer(nil)
	docs := d.Decompose(sampleEntity())

	for _, doc := range docs {
		if doc.Key == "filing_12345_1" {
			if doc.DocumentNumber != "12345_1" {
				t.Errorf("fallback document number = %q", doc.DocumentNumber)
			}
			return
		}
	}
	t.Fatal("filing without document number not emitted with fallback key")
}

func TestDecompose_NoOrphans(t *testing.T) {
	d := NewRecursiveDecomposer(nil)
	for _, doc := range d.Decompose(sampleEntity()) {
		if doc.FilingNumber != "12345" {
			t.Errorf("child %q carries filing number %q", doc.Key, doc.FilingNumber)
		}
	}
}

func TestDecompose_StableIDs(t *testing.T) {
	d := NewRecursiveDecomposer(nil)
	a := d.Decompose(sampleEntity())
	b := d.Decompose(sampleEntity())
	if len(a) != len(b) {
		t.Fatalf("child counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("child %q id differs across runs", a[i].Key)
		}
		if len(a[i].ID) != 64 {
			t.Errorf("child %q id = %q, want sha256 hex", a[i].Key, a[i].ID)
		}
	}
}

func TestDecompose_SkipsEmptyLeaves(t *testing.T) {
	e := &records.Entity{FilingNumber: "99"}
	d := NewRecursiveDecomposer(nil)
	docs := d.Decompose(e)
	if len(docs) != 1 {
		t.Fatalf("bare entity must emit only the entity child, got %v", keysOf(docs))
	}
	if docs[0].Key != "entity_99" {
		t.Errorf("key = %q", docs[0].Key)
	}
}

func TestEntityText_Shape(t *testing.T) {
	text := entityText(sampleEntity())

	for _, want := range []string{
		"filing_number: 12345",
		"name: Acme Holdings LLC",
		"entity_status: In existence",
		"filing_history: 2 items",
		"names: 1 items",
		"management: 1 items",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("entity text missing %q:\n%s", want, text)
		}
	}
	if !strings.Contains(text, `registered_agent: {"name":"Jane Smith"`) {
		t.Errorf("agent not collapsed to compact JSON:\n%s", text)
	}
	if strings.Contains(text, "tax_id") {
		t.Errorf("empty field leaked into text:\n%s", text)
	}
	if !strings.Contains(text, " | ") {
		t.Errorf("fragments not pipe-joined:\n%s", text)
	}
}

func TestTextRepr_EmptyAndTypes(t *testing.T) {
	got := textRepr(kv{"a", "x"}, kv{"b", ""}, kv{"c", "y"})
	if got != "a: x | c: y" {
		t.Errorf("textRepr = %q", got)
	}
	if textRepr(kv{"a", ""}) != "" {
		t.Error("all-empty pairs must produce empty text")
	}
}
