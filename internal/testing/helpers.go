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

package testing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/rie/pkg/records"
)

// Entity builds a minimal entity for tests.
//
// Example:
//
//	e := testing.Entity("800123", "Acme Corp", "In Existence")
func Entity(filingNumber, name, status string) *records.Entity {
	return &records.Entity{
		FilingNumber: filingNumber,
		Name:         name,
		EntityType:   "Domestic Limited Liability Company (LLC)",
		Status:       status,
		Jurisdiction: "tx",
	}
}

// EntityWithHistory builds an entity carrying the given filing events.
// Events are attached in order; document numbers are taken as given.
//
// Example:
//
//	e := testing.EntityWithHistory("800123", "Acme Corp",
//	    records.FilingEvent{DocumentNumber: "1", FilingType: "Certificate of Formation", FilingDate: "2019-04-01"},
//	    records.FilingEvent{DocumentNumber: "2", FilingType: "Tax Forfeiture", FilingDate: "2021-02-12"},
//	)
func EntityWithHistory(filingNumber, name string, events ...records.FilingEvent) *records.Entity {
	e := Entity(filingNumber, name, "In Existence")
	e.FilingHistory = append(e.FilingHistory, events...)
	return e
}

// WriteFixture writes content to name under dir and returns the full
// path. The test fails immediately if the write fails.
//
// Example:
//
//	path := testing.WriteFixture(t, t.TempDir(), "filings.txt", export)
func WriteFixture(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("create fixture dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

// ReadOutput reads a file under the output tree and returns its bytes.
// The test fails immediately if the read fails.
//
// Example:
//
//	data := testing.ReadOutput(t, outDir, "master_index.json")
func ReadOutput(t *testing.T, dir, rel string) []byte {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, rel)) //nolint:gosec // G304: test fixture path
	if err != nil {
		t.Fatalf("read output %s: %v", rel, err)
	}
	return data
}

// TabularJSON is a small registration dump fixture with one record per
// provided filing number.
//
// Example:
//
//	path := testing.WriteFixture(t, dir, "regs.json", testing.TabularJSON("800123", "800456"))
func TabularJSON(filingNumbers ...string) string {
	out := "["
	for i, fn := range filingNumbers {
		if i > 0 {
			out += ","
		}
		out += `{"filing_number": "` + fn + `", "name": "Entity ` + fn + `", "status": "In Existence"}`
	}
	return out + "]"
}
