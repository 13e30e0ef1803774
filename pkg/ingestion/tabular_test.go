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
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadJSON_WrappedCompanies(t *testing.T) {
	path := writeTempFile(t, "companies.json", `{
		"companies": [
			{"company_name": "Acme Holdings", "filing_no": "12345", "state_of_inc": "Texas"},
			{"company_name": "Beta Corp", "filing_no": "67890", "state_of_inc": "DE"}
		]
	}`)

	l := NewTabularLoader(nil)
	recs, err := l.LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0]["name"] != "Acme Holdings" {
		t.Errorf("company_name not aliased to name: %v", recs[0])
	}
	if recs[0]["filing_number"] != "12345" {
		t.Errorf("filing_no not aliased to filing_number: %v", recs[0])
	}
	if recs[0]["jurisdiction"] != "Texas" {
		t.Errorf("state_of_inc not aliased to jurisdiction: %v", recs[0])
	}
}

func TestLoadJSON_SingleObjectAndList(t *testing.T) {
	l := NewTabularLoader(nil)

	single := writeTempFile(t, "one.json", `{"name": "Solo LLC", "filing_number": "1"}`)
	recs, err := l.LoadJSON(single)
	if err != nil {
		t.Fatalf("LoadJSON failed: %v", err)
	}
	if len(recs) != 1 || recs[0]["name"] != "Solo LLC" {
		t.Errorf("single object: %v", recs)
	}

	list := writeTempFile(t, "list.json", `[{"filing_number": "2"}, {"filing_number": "3"}]`)
	recs, err = l.LoadJSON(list)
	if err != nil {
		t.Fatalf("LoadJSON failed: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("top-level list: %v", recs)
	}
}

func TestLoadCSV(t *testing.T) {
	path := writeTempFile(t, "listings.csv",
		"Filing Number,Company Name,Entity Status\n"+
			"100,Gamma LP,In Existence\n"+
			"101,Delta Inc,Forfeited\n")

	l := NewTabularLoader(nil)
	recs, err := l.LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0]["filing_number"] != "100" || recs[0]["name"] != "Gamma LP" {
		t.Errorf("row 0 = %v", recs[0])
	}
	if recs[1]["status"] != "Forfeited" {
		t.Errorf("row 1 status = %q", recs[1]["status"])
	}
}

func TestToEntity(t *testing.T) {
	rec := map[string]string{
		"filing_number":        "12345",
		"name":                 "Acme Holdings",
		"status":               "In Existence",
		"jurisdiction":         "Texas",
		"original_filing_date": "01/15/2020",
	}
	e := ToEntity(rec)
	if e == nil {
		t.Fatal("ToEntity returned nil")
	}
	if e.Jurisdiction != "tx" {
		t.Errorf("jurisdiction not normalized: %q", e.Jurisdiction)
	}
	if e.OriginalFilingDate != "2020-01-15" {
		t.Errorf("date not normalized: %q", e.OriginalFilingDate)
	}
}

func TestToEntity_NoFilingNumber(t *testing.T) {
	if e := ToEntity(map[string]string{"name": "Anonymous"}); e != nil {
		t.Errorf("record without filing number should be dropped, got %+v", e)
	}
}
