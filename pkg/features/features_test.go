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

package features

import (
	"math"
	"testing"
	"time"

	"github.com/kraklabs/rie/pkg/records"
)

func col(name string) int {
	for i, n := range Names {
		if n == name {
			return i
		}
	}
	panic("unknown feature " + name)
}

func testClock() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func testExtractor() *Extractor {
	x := NewExtractor()
	x.SetClock(testClock)
	return x
}

func TestExtract_VectorShape(t *testing.T) {
	x := testExtractor()
	v := x.Extract(&records.Entity{FilingNumber: "1"}, nil, nil)
	if len(v) != len(Names) {
		t.Fatalf("vector length = %d, want %d", len(v), len(Names))
	}
}

func TestExtract_TemporalFeatures(t *testing.T) {
	e := &records.Entity{
		FilingNumber:       "1",
		OriginalFilingDate: "2020-01-01",
		FilingHistory: []records.FilingEvent{
			{FilingDate: "2020-01-01"},
			{FilingDate: "2021-01-01"},
			{FilingDate: "2022-01-01"},
		},
	}
	x := testExtractor()
	v := x.Extract(e, nil, nil)

	days := v[col("days_since_formation")]
	if days != 2192 { // 2020-01-01 .. 2026-01-01, two leap years
		t.Errorf("days_since_formation = %f", days)
	}
	years := v[col("years_since_formation")]
	if math.Abs(years-days/365.25) > 1e-9 {
		t.Errorf("years_since_formation = %f", years)
	}
	gap := v[col("avg_filing_gap_days")]
	if gap != 365.5 { // (366 + 365) / 2
		t.Errorf("avg_filing_gap_days = %f", gap)
	}
	freq := v[col("filing_frequency")]
	if math.Abs(freq-365.25/365.5) > 1e-9 {
		t.Errorf("filing_frequency = %f", freq)
	}
}

func TestExtract_StructuralFeatures(t *testing.T) {
	e := &records.Entity{
		FilingNumber: "1",
		EntityType:   "Foreign Limited Liability Company (LLC)",
		Status:       "Forfeited existence",
		TaxID:        "320000000000",
		Address:      "100 Main St, Suite 200, Austin, TX",
	}
	v := testExtractor().Extract(e, nil, nil)

	checks := map[string]float64{
		"is_corporation":  0,
		"is_llc":          1,
		"is_foreign":      1,
		"is_forfeited":    1,
		"is_in_existence": 1, // "existence" appears in "Forfeited existence"
		"has_tax_id":      1,
		"has_fein":        0,
		"has_suite":       1,
	}
	for name, want := range checks {
		if got := v[col(name)]; got != want {
			t.Errorf("%s = %f, want %f", name, got, want)
		}
	}
	if got := v[col("address_length")]; got != float64(len(e.Address)) {
		t.Errorf("address_length = %f", got)
	}
}

func TestExtract_NetworkFeatures(t *testing.T) {
	graph := &records.Graph{
		Edges: []records.GraphEdge{
			{Source: "1", Target: "2"},
			{Source: "3", Target: "1"},
			{Source: "2", Target: "3"},
		},
	}
	e := &records.Entity{
		FilingNumber: "1",
		Management: []records.ManagementRecord{
			{Name: "A"}, {Name: "B"},
		},
	}
	v := testExtractor().Extract(e, graph, nil)

	if got := v[col("associated_entity_count")]; got != 2 {
		t.Errorf("associated_entity_count = %f, want 2", got)
	}
	if got := v[col("management_change_count")]; got != 2 {
		t.Errorf("management_change_count = %f, want 2", got)
	}
}

func TestExtract_ViolationFeatures(t *testing.T) {
	violations := map[string][]records.Violation{
		"Tax Forfeiture": {
			{ViolationType: "Tax Forfeiture", FilingNumber: "1"},
		},
		"Reinstatement": {
			{ViolationType: "Reinstatement", FilingNumber: "1"},
			{ViolationType: "Reinstatement", FilingNumber: "2"},
		},
	}
	e := &records.Entity{FilingNumber: "1", OriginalFilingDate: "2022-01-01"}
	v := testExtractor().Extract(e, nil, violations)

	if got := v[col("violation_count")]; got != 2 {
		t.Errorf("violation_count = %f, want 2", got)
	}
	if got := v[col("has_tax_forfeiture")]; got != 1 {
		t.Errorf("has_tax_forfeiture = %f", got)
	}
	if got := v[col("has_forfeited_status")]; got != 0 {
		t.Errorf("has_forfeited_status = %f", got)
	}
	if got := v[col("has_reinstatement")]; got != 1 {
		t.Errorf("has_reinstatement = %f", got)
	}
	if got := v[col("violation_velocity")]; got <= 0 {
		t.Errorf("violation_velocity = %f, want > 0", got)
	}
}

func TestExtract_ManagementStability(t *testing.T) {
	e := &records.Entity{
		FilingNumber:       "1",
		OriginalFilingDate: "2024-01-01", // 2 years before the test clock
		Management:         []records.ManagementRecord{{Name: "A"}, {Name: "B"}},
	}
	v := testExtractor().Extract(e, nil, nil)

	years := v[col("years_since_formation")]
	want := 1.0 / (1.0 + 2.0/years)
	if got := v[col("management_stability_index")]; math.Abs(got-want) > 1e-9 {
		t.Errorf("management_stability_index = %f, want %f", got, want)
	}

	// No formation date: index defaults to 1.
	bare := testExtractor().Extract(&records.Entity{FilingNumber: "2"}, nil, nil)
	if got := bare[col("management_stability_index")]; got != 1.0 {
		t.Errorf("bare management_stability_index = %f, want 1.0", got)
	}
}

func TestBuildMatrix_SkipsUnkeyed(t *testing.T) {
	x := testExtractor()
	m := x.BuildMatrix([]*records.Entity{
		{FilingNumber: "1"},
		{}, // dropped
		{FilingNumber: "2"},
	}, nil, nil)

	if len(m.Rows) != 2 || len(m.EntityIDs) != 2 {
		t.Fatalf("rows = %d, ids = %d, want 2/2", len(m.Rows), len(m.EntityIDs))
	}
	if m.EntityIDs[0] != "1" || m.EntityIDs[1] != "2" {
		t.Errorf("entity ids = %v", m.EntityIDs)
	}
}

func TestNormalize(t *testing.T) {
	rows := [][]float64{
		{1, 5, 7},
		{3, 5, 9},
	}
	normalized, mean, std := Normalize(rows)

	if mean[0] != 2 || mean[1] != 5 || mean[2] != 8 {
		t.Errorf("mean = %v", mean)
	}
	// Zero-variance column keeps std 1.
	if std[1] != 1.0 {
		t.Errorf("constant column std = %f, want 1.0", std[1])
	}
	if normalized[0][1] != 0 || normalized[1][1] != 0 {
		t.Errorf("constant column not normalized to zero: %v", normalized)
	}
	if normalized[0][0] != -1 || normalized[1][0] != 1 {
		t.Errorf("column 0 = %v", [2]float64{normalized[0][0], normalized[1][0]})
	}

	if n, _, _ := Normalize(nil); n != nil {
		t.Error("empty input must return nil")
	}
}

func TestExtractViolations(t *testing.T) {
	entities := []*records.Entity{
		{
			FilingNumber: "1",
			Name:         "Acme LLC",
			Status:       "Forfeited existence",
			FilingHistory: []records.FilingEvent{
				{DocumentNumber: "D1", FilingType: "Tax Forfeiture", EffectiveDate: "2021-02-01"},
				{DocumentNumber: "D2", FilingType: "Reinstatement", FilingDate: "2022-03-01"},
				{FilingType: "Public Information Report (PIR)", FilingDate: "2020-06-01", EffectiveDate: "2020-01-01"},
				{FilingType: "Public Information Report (PIR)", FilingDate: "2023-01-01"},
			},
		},
		{FilingNumber: "2", Name: "Clean Corp", Status: "In existence"},
	}

	v := ExtractViolations(entities)

	if len(v[ViolationTaxForfeiture]) != 1 || v[ViolationTaxForfeiture][0].FilingNumber != "1" {
		t.Errorf("tax forfeitures = %+v", v[ViolationTaxForfeiture])
	}
	if len(v[ViolationReinstatement]) != 1 {
		t.Errorf("reinstatements = %+v", v[ViolationReinstatement])
	}
	if len(v[ViolationForfeitedExistence]) != 1 {
		t.Errorf("forfeited existence = %+v", v[ViolationForfeitedExistence])
	}
	if len(v[ViolationLateFiling]) != 1 {
		t.Errorf("late filings = %+v", v[ViolationLateFiling])
	} else if v[ViolationLateFiling][0].DaysLate < 150 {
		t.Errorf("days late = %d", v[ViolationLateFiling][0].DaysLate)
	}
	if len(v[ViolationMissingAnnual]) != 1 {
		t.Errorf("missing annual = %+v", v[ViolationMissingAnnual])
	}
}

func TestBuildGraph(t *testing.T) {
	entities := []*records.Entity{
		{
			FilingNumber:    "1",
			Name:            "Acme LLC",
			RegisteredAgent: &records.RegisteredAgent{Name: "Shared Agent Inc"},
			AssociatedEntities: []records.AssociatedEntity{
				{Name: "Beta Corp", EntityFilingNumber: "9"},
			},
		},
		{
			FilingNumber:    "2",
			Name:            "Gamma LP",
			RegisteredAgent: &records.RegisteredAgent{Name: "Shared Agent Inc"},
		},
	}

	g := BuildGraph(entities)

	if len(g.Nodes) != 3 { // 1, 9, 2
		t.Errorf("nodes = %+v", g.Nodes)
	}

	var associated, shared int
	for _, e := range g.Edges {
		switch e.Relation {
		case "associated":
			associated++
			if e.Source != "1" || e.Target != "9" {
				t.Errorf("associated edge = %+v", e)
			}
		case "shared_agent":
			shared++
			if e.Source != "1" || e.Target != "2" {
				t.Errorf("shared agent edge = %+v", e)
			}
		}
	}
	if associated != 1 || shared != 1 {
		t.Errorf("edges = %+v", g.Edges)
	}
}
