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

// Package features turns parsed entities into fixed-order numeric
// feature vectors for the analysis engine.
package features

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kraklabs/rie/pkg/records"
)

// Names is the fixed feature column order. Every vector produced in a
// run has exactly these columns in this order.
var Names = []string{
	"days_since_formation",
	"years_since_formation",
	"avg_filing_gap_days",
	"filing_frequency",
	"is_corporation",
	"is_llc",
	"is_foreign",
	"is_forfeited",
	"is_in_existence",
	"has_tax_id",
	"has_fein",
	"address_length",
	"has_suite",
	"associated_entity_count",
	"management_change_count",
	"violation_count",
	"has_tax_forfeiture",
	"has_forfeited_status",
	"has_reinstatement",
	"violation_velocity",
	"address_clustering_score",
	"management_stability_index",
	"reinstatement_risk",
}

const daysPerYear = 365.25

// Extractor builds per-entity feature vectors. The clock is injectable
// so age-derived features are stable in tests.
type Extractor struct {
	now func() time.Time
}

// NewExtractor creates an extractor using the wall clock.
func NewExtractor() *Extractor {
	return &Extractor{now: time.Now}
}

// SetClock overrides the time source for age calculations.
func (x *Extractor) SetClock(now func() time.Time) { x.now = now }

// Extract computes the fixed-order vector for one entity. Missing
// parent data yields zeros, never an error.
func (x *Extractor) Extract(e *records.Entity, graph *records.Graph, violations map[string][]records.Violation) []float64 {
	v := make([]float64, 0, len(Names))
	v = append(v, x.temporal(e)...)
	v = append(v, structural(e)...)
	v = append(v, network(e, graph)...)
	v = append(v, x.violation(e, violations)...)
	return composite(v)
}

// Matrix holds aligned feature rows for a set of entities.
type Matrix struct {
	Rows      [][]float64
	EntityIDs []string
	Names     []string
}

// BuildMatrix extracts one row per entity with a filing number, in
// input order.
func (x *Extractor) BuildMatrix(entities []*records.Entity, graph *records.Graph, violations map[string][]records.Violation) *Matrix {
	m := &Matrix{Names: Names}
	for _, e := range entities {
		if e.FilingNumber == "" {
			continue
		}
		m.Rows = append(m.Rows, x.Extract(e, graph, violations))
		m.EntityIDs = append(m.EntityIDs, e.FilingNumber)
	}
	return m
}

// Normalize z-scores each column. Zero-variance columns keep std 1.0
// so constant features normalize to zero instead of dividing by zero.
// Returns the normalized matrix and the per-column means and stds.
func Normalize(rows [][]float64) (normalized [][]float64, mean, std []float64) {
	if len(rows) == 0 {
		return nil, nil, nil
	}
	cols := len(rows[0])
	mean = make([]float64, cols)
	std = make([]float64, cols)

	for j := 0; j < cols; j++ {
		var sum float64
		for i := range rows {
			sum += rows[i][j]
		}
		mean[j] = sum / float64(len(rows))
	}
	for j := 0; j < cols; j++ {
		var sq float64
		for i := range rows {
			d := rows[i][j] - mean[j]
			sq += d * d
		}
		std[j] = math.Sqrt(sq / float64(len(rows)))
		if std[j] == 0 {
			std[j] = 1.0
		}
	}

	normalized = make([][]float64, len(rows))
	for i := range rows {
		normalized[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			normalized[i][j] = (rows[i][j] - mean[j]) / std[j]
		}
	}
	return normalized, mean, std
}

func (x *Extractor) temporal(e *records.Entity) []float64 {
	var daysSince, yearsSince, avgGap, frequency float64

	formed, ok := parseISODate(e.OriginalFilingDate)
	if ok {
		daysSince = float64(int(x.now().Sub(formed).Hours() / 24))
		yearsSince = daysSince / daysPerYear
	}

	if ok && len(e.FilingHistory) > 0 {
		var dates []time.Time
		for _, f := range e.FilingHistory {
			raw := f.FilingDate
			if raw == "" {
				raw = f.EffectiveDate
			}
			if d, ok := parseISODate(raw); ok {
				dates = append(dates, d)
			}
		}
		if len(dates) > 1 {
			sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
			var total float64
			for i := 0; i < len(dates)-1; i++ {
				total += dates[i+1].Sub(dates[i]).Hours() / 24
			}
			avgGap = total / float64(len(dates)-1)
			if avgGap > 0 {
				frequency = daysPerYear / avgGap
			}
		}
	}

	return []float64{daysSince, yearsSince, avgGap, frequency}
}

func structural(e *records.Entity) []float64 {
	entityType := strings.ToLower(e.EntityType)
	status := strings.ToLower(e.Status)
	address := strings.ToUpper(e.Address)

	return []float64{
		boolFeature(strings.Contains(entityType, "corporation")),
		boolFeature(strings.Contains(entityType, "llc") || strings.Contains(entityType, "limited liability")),
		boolFeature(strings.Contains(entityType, "foreign")),
		boolFeature(strings.Contains(status, "forfeited")),
		boolFeature(strings.Contains(status, "existence")),
		boolFeature(e.TaxID != ""),
		boolFeature(e.FEIN != ""),
		float64(len(address)),
		boolFeature(strings.Contains(address, "SUITE") || strings.Contains(address, "STE")),
	}
}

func network(e *records.Entity, graph *records.Graph) []float64 {
	var associated float64
	if graph != nil && e.FilingNumber != "" {
		for _, edge := range graph.Edges {
			if edge.Source == e.FilingNumber || edge.Target == e.FilingNumber {
				associated++
			}
		}
	}
	return []float64{associated, float64(len(e.Management))}
}

func (x *Extractor) violation(e *records.Entity, violations map[string][]records.Violation) []float64 {
	if e.FilingNumber == "" {
		return []float64{0, 0, 0, 0, 0}
	}

	var mine []records.Violation
	for _, list := range violations {
		for _, v := range list {
			if v.FilingNumber == e.FilingNumber {
				mine = append(mine, v)
			}
		}
	}

	var hasTaxForfeiture, hasForfeitedStatus, hasReinstatement float64
	for _, v := range mine {
		if v.ViolationType == "Tax Forfeiture" {
			hasTaxForfeiture = 1
		}
		if v.ViolationType == "Forfeited Existence" {
			hasForfeitedStatus = 1
		}
		if strings.Contains(strings.ToLower(v.ViolationType), "reinstatement") ||
			strings.Contains(strings.ToLower(v.Description), "reinstatement") {
			hasReinstatement = 1
		}
	}

	var velocity float64
	if formed, ok := parseISODate(e.OriginalFilingDate); ok && len(mine) > 0 {
		years := x.now().Sub(formed).Hours() / 24 / daysPerYear
		if years > 0 {
			velocity = float64(len(mine)) / years
		}
	}

	return []float64{float64(len(mine)), hasTaxForfeiture, hasForfeitedStatus, hasReinstatement, velocity}
}

// composite appends the derived features to the base vector. The
// address clustering score and reinstatement risk stay at zero until
// population-level inputs exist for them.
func composite(base []float64) []float64 {
	mgmtChanges := base[14]
	years := base[1]

	stability := 1.0
	if years > 0 {
		stability = 1.0 / (1.0 + mgmtChanges/years)
	}
	return append(base, 0.0, stability, 0.0)
}

func boolFeature(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

func parseISODate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if d, err := time.Parse(layout, raw); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
