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

// Violation is one compliance violation attributed to an entity,
// extracted from filing histories and status fields.
type Violation struct {
	ViolationType  string `json:"violation_type"`
	Severity       string `json:"severity,omitempty"`
	EntityName     string `json:"entity_name,omitempty"`
	FilingNumber   string `json:"filing_number"`
	DocumentNumber string `json:"document_number,omitempty"`
	FilingDate     string `json:"filing_date,omitempty"`
	EffectiveDate  string `json:"effective_date,omitempty"`
	DaysLate       int    `json:"days_late,omitempty"`
	GapDays        int    `json:"gap_days,omitempty"`
	Description    string `json:"description,omitempty"`
}

// GraphNode is one node of the entity relationship graph.
type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// GraphEdge links two nodes by id.
type GraphEdge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation,omitempty"`
}

// Graph is the entity relationship graph fed to feature extraction
// and network analysis.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}
