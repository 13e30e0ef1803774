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
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kraklabs/rie/pkg/records"
)

// Violation type names. Keys of the violations map fed into feature
// extraction and time-series analysis.
const (
	ViolationTaxForfeiture      = "Tax Forfeiture"
	ViolationForfeitedExistence = "Forfeited Existence"
	ViolationLateFiling         = "Late Filing"
	ViolationMissingAnnual      = "Missing Annual Filing"
	ViolationReinstatement      = "Reinstatement"
)

const (
	// lateFilingGraceDays is how far a PIR filing may trail its
	// effective date before it counts as late.
	lateFilingGraceDays = 30
	// annualFilingMaxGapDays is the widest tolerated gap between
	// consecutive PIR filings.
	annualFilingMaxGapDays = 400
)

// ExtractViolations derives the violations map from parsed entities:
// tax forfeitures and reinstatements from filing history, forfeited
// status from the entity record, late and missing annual filings from
// PIR date gaps.
func ExtractViolations(entities []*records.Entity) map[string][]records.Violation {
	out := map[string][]records.Violation{
		ViolationTaxForfeiture:      {},
		ViolationForfeitedExistence: {},
		ViolationLateFiling:         {},
		ViolationMissingAnnual:      {},
		ViolationReinstatement:      {},
	}

	for _, e := range entities {
		if e.FilingNumber == "" {
			continue
		}
		for _, f := range e.FilingHistory {
			switch {
			case strings.Contains(f.FilingType, "Tax Forfeiture"):
				out[ViolationTaxForfeiture] = append(out[ViolationTaxForfeiture], records.Violation{
					ViolationType:  ViolationTaxForfeiture,
					Severity:       "HIGH",
					EntityName:     e.Name,
					FilingNumber:   e.FilingNumber,
					DocumentNumber: f.DocumentNumber,
					FilingDate:     f.FilingDate,
					EffectiveDate:  f.EffectiveDate,
					Description:    fmt.Sprintf("Tax forfeiture for %s on %s", e.Name, firstNonEmpty(f.EffectiveDate, f.FilingDate)),
				})
			case strings.Contains(f.FilingType, "Reinstatement"):
				out[ViolationReinstatement] = append(out[ViolationReinstatement], records.Violation{
					ViolationType:  ViolationReinstatement,
					Severity:       "MEDIUM",
					EntityName:     e.Name,
					FilingNumber:   e.FilingNumber,
					DocumentNumber: f.DocumentNumber,
					FilingDate:     f.FilingDate,
					EffectiveDate:  f.EffectiveDate,
					Description:    fmt.Sprintf("Reinstatement filed for %s", e.Name),
				})
			}
		}

		if strings.Contains(strings.ToLower(e.Status), "forfeited") {
			out[ViolationForfeitedExistence] = append(out[ViolationForfeitedExistence], records.Violation{
				ViolationType: ViolationForfeitedExistence,
				Severity:      "HIGH",
				EntityName:    e.Name,
				FilingNumber:  e.FilingNumber,
				Description:   fmt.Sprintf("Entity status is %q", e.Status),
			})
		}

		out[ViolationLateFiling] = append(out[ViolationLateFiling], lateFilings(e)...)
		out[ViolationMissingAnnual] = append(out[ViolationMissingAnnual], missingAnnualFilings(e)...)
	}

	return out
}

func isPIR(f records.FilingEvent) bool {
	return strings.Contains(f.FilingType, "Public Information Report")
}

func lateFilings(e *records.Entity) []records.Violation {
	var out []records.Violation
	for _, f := range e.FilingHistory {
		if !isPIR(f) {
			continue
		}
		filed, okF := parseISODate(f.FilingDate)
		effective, okE := parseISODate(f.EffectiveDate)
		if !okF || !okE {
			continue
		}
		daysLate := int(filed.Sub(effective).Hours() / 24)
		if daysLate > lateFilingGraceDays {
			out = append(out, records.Violation{
				ViolationType:  ViolationLateFiling,
				Severity:       "MEDIUM",
				EntityName:     e.Name,
				FilingNumber:   e.FilingNumber,
				DocumentNumber: f.DocumentNumber,
				FilingDate:     f.FilingDate,
				EffectiveDate:  f.EffectiveDate,
				DaysLate:       daysLate,
				Description:    fmt.Sprintf("Late filing: %d days after effective date", daysLate),
			})
		}
	}
	return out
}

func missingAnnualFilings(e *records.Entity) []records.Violation {
	var dates []time.Time
	for _, f := range e.FilingHistory {
		if !isPIR(f) {
			continue
		}
		if d, ok := parseISODate(f.FilingDate); ok {
			dates = append(dates, d)
		}
	}
	if len(dates) < 2 {
		return nil
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	var out []records.Violation
	for i := 0; i < len(dates)-1; i++ {
		gap := int(dates[i+1].Sub(dates[i]).Hours() / 24)
		if gap > annualFilingMaxGapDays {
			out = append(out, records.Violation{
				ViolationType: ViolationMissingAnnual,
				Severity:      "MEDIUM",
				EntityName:    e.Name,
				FilingNumber:  e.FilingNumber,
				GapDays:       gap,
				Description:   fmt.Sprintf("Gap of %d days between PIR filings (expected ~365 days)", gap),
			})
		}
	}
	return out
}

// BuildGraph assembles the entity relationship graph: one node per
// entity, one node per distinct associated entity, and edges for each
// association and shared registered agent.
func BuildGraph(entities []*records.Entity) *records.Graph {
	g := &records.Graph{Nodes: []records.GraphNode{}, Edges: []records.GraphEdge{}}
	seen := make(map[string]bool)

	addNode := func(id, label, kind string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		g.Nodes = append(g.Nodes, records.GraphNode{ID: id, Label: label, Kind: kind})
	}

	agents := make(map[string][]string) // agent name -> filing numbers
	for _, e := range entities {
		if e.FilingNumber == "" {
			continue
		}
		addNode(e.FilingNumber, e.Name, "entity")

		for _, a := range e.AssociatedEntities {
			target := a.EntityFilingNumber
			if target == "" {
				target = a.Name
			}
			if target == "" {
				continue
			}
			addNode(target, a.Name, "associated")
			g.Edges = append(g.Edges, records.GraphEdge{
				Source:   e.FilingNumber,
				Target:   target,
				Relation: "associated",
			})
		}

		if e.RegisteredAgent != nil && e.RegisteredAgent.Name != "" {
			agents[e.RegisteredAgent.Name] = append(agents[e.RegisteredAgent.Name], e.FilingNumber)
		}
	}

	// Entities sharing a registered agent are linked pairwise.
	names := make([]string, 0, len(agents))
	for name := range agents {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		filings := agents[name]
		for i := 0; i < len(filings); i++ {
			for j := i + 1; j < len(filings); j++ {
				g.Edges = append(g.Edges, records.GraphEdge{
					Source:   filings[i],
					Target:   filings[j],
					Relation: "shared_agent",
				})
			}
		}
	}
	return g
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
