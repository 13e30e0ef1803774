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

// Package records defines the entity model shared by the parsers, the
// decomposer, and the analysis layer: one Entity per business filing,
// with its registered agent, filing history, names, management,
// assumed names, associated entities, and initial address.
package records

// Entity is one business filing, keyed by its filing number. Within a
// single ingestion at most one Entity exists per filing number;
// repeated source blocks merge additively via Merge.
type Entity struct {
	FilingNumber       string             `json:"filing_number"`
	Name               string             `json:"name,omitempty"`
	EntityType         string             `json:"entity_type,omitempty"`
	Status             string             `json:"entity_status,omitempty"`
	OriginalFilingDate string             `json:"original_filing_date,omitempty"`
	FormationDate      string             `json:"formation_date,omitempty"`
	TaxID              string             `json:"tax_id,omitempty"`
	FEIN               string             `json:"fein,omitempty"`
	Duration           string             `json:"duration,omitempty"`
	Address            string             `json:"address,omitempty"`
	Jurisdiction       string             `json:"jurisdiction,omitempty"`
	ForeignFormation   string             `json:"foreign_formation_date,omitempty"`
	FictitiousName     string             `json:"fictitious_name,omitempty"`
	RegisteredAgent    *RegisteredAgent   `json:"registered_agent,omitempty"`
	FilingHistory      []FilingEvent      `json:"filing_history,omitempty"`
	Names              []NameRecord       `json:"names,omitempty"`
	Management         []ManagementRecord `json:"management,omitempty"`
	AssumedNames       []AssumedName      `json:"assumed_names,omitempty"`
	AssociatedEntities []AssociatedEntity `json:"associated_entities,omitempty"`
	InitialAddress     string             `json:"initial_address,omitempty"`
}

// RegisteredAgent is the 0..1 agent record attached to an Entity.
type RegisteredAgent struct {
	Name         string `json:"name,omitempty"`
	Address      string `json:"address,omitempty"`
	InactiveDate string `json:"inactive_date,omitempty"`
}

// FilingEvent is one row of an Entity's filing history, keyed by its
// document number within the parent.
type FilingEvent struct {
	DocumentNumber string `json:"document_number,omitempty"`
	FilingType     string `json:"filing_type,omitempty"`
	FilingDate     string `json:"filing_date,omitempty"`
	EffectiveDate  string `json:"effective_date,omitempty"`
	EffCond        string `json:"eff_cond,omitempty"`
	PageCount      string `json:"page_count,omitempty"`
}

// NameRecord is one entry in an Entity's names section.
type NameRecord struct {
	Name                string `json:"name,omitempty"`
	NameStatus          string `json:"name_status,omitempty"`
	NameType            string `json:"name_type,omitempty"`
	NameInactiveDate    string `json:"name_inactive_date,omitempty"`
	ConsentFilingNumber string `json:"consent_filing_number,omitempty"`
}

// ManagementRecord is one officer/manager entry.
type ManagementRecord struct {
	LastUpdate string `json:"last_update,omitempty"`
	Name       string `json:"name,omitempty"`
	Title      string `json:"title,omitempty"`
	Address    string `json:"address,omitempty"`
}

// AssumedName is one assumed-name (DBA) entry.
type AssumedName struct {
	AssumedName    string `json:"assumed_name,omitempty"`
	DateOfFiling   string `json:"date_of_filing,omitempty"`
	ExpirationDate string `json:"expiration_date,omitempty"`
	InactiveDate   string `json:"inactive_date,omitempty"`
	NameStatus     string `json:"name_status,omitempty"`
	Counties       string `json:"counties,omitempty"`
}

// AssociatedEntity is a cross-reference to another filing.
type AssociatedEntity struct {
	Name                string `json:"name,omitempty"`
	EntityType          string `json:"entity_type,omitempty"`
	DocumentDescription string `json:"document_description,omitempty"`
	FilingDate          string `json:"filing_date,omitempty"`
	EntityFilingNumber  string `json:"entity_filing_number,omitempty"`
	Jurisdiction        string `json:"jurisdiction,omitempty"`
	Capacity            string `json:"capacity,omitempty"`
}

// PDFPage is one extracted page of a source PDF.
type PDFPage struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
	CharCount  int    `json:"char_count"`
	WordCount  int    `json:"word_count"`
}

// Merge folds another occurrence of the same filing into e. Scalar
// fields are filled only when currently empty; child collections are
// deduplicated by their natural keys (FilingEvent by document number,
// NameRecord by name+status, ManagementRecord by name+title). Assumed
// names and associated entities dedupe on their full value.
func (e *Entity) Merge(other *Entity) {
	if other == nil {
		return
	}
	fillString(&e.Name, other.Name)
	fillString(&e.EntityType, other.EntityType)
	fillString(&e.Status, other.Status)
	fillString(&e.OriginalFilingDate, other.OriginalFilingDate)
	fillString(&e.FormationDate, other.FormationDate)
	fillString(&e.TaxID, other.TaxID)
	fillString(&e.FEIN, other.FEIN)
	fillString(&e.Duration, other.Duration)
	fillString(&e.Address, other.Address)
	fillString(&e.Jurisdiction, other.Jurisdiction)
	fillString(&e.ForeignFormation, other.ForeignFormation)
	fillString(&e.FictitiousName, other.FictitiousName)
	fillString(&e.InitialAddress, other.InitialAddress)

	if e.RegisteredAgent == nil {
		e.RegisteredAgent = other.RegisteredAgent
	} else if other.RegisteredAgent != nil {
		fillString(&e.RegisteredAgent.Name, other.RegisteredAgent.Name)
		fillString(&e.RegisteredAgent.Address, other.RegisteredAgent.Address)
		fillString(&e.RegisteredAgent.InactiveDate, other.RegisteredAgent.InactiveDate)
	}

	for _, ev := range other.FilingHistory {
		e.AddFilingEvent(ev)
	}
	for _, n := range other.Names {
		e.AddName(n)
	}
	for _, m := range other.Management {
		e.AddManagement(m)
	}
	for _, an := range other.AssumedNames {
		e.AddAssumedName(an)
	}
	for _, ae := range other.AssociatedEntities {
		e.AddAssociatedEntity(ae)
	}
}

// AddFilingEvent appends ev unless an event with the same document
// number is already present.
func (e *Entity) AddFilingEvent(ev FilingEvent) {
	for _, existing := range e.FilingHistory {
		if existing.DocumentNumber != "" && existing.DocumentNumber == ev.DocumentNumber {
			return
		}
	}
	e.FilingHistory = append(e.FilingHistory, ev)
}

// AddName appends n unless a record with the same name and status is
// already present.
func (e *Entity) AddName(n NameRecord) {
	for _, existing := range e.Names {
		if existing.Name == n.Name && existing.NameStatus == n.NameStatus {
			return
		}
	}
	e.Names = append(e.Names, n)
}

// AddManagement appends m unless a record with the same name and title
// is already present.
func (e *Entity) AddManagement(m ManagementRecord) {
	for _, existing := range e.Management {
		if existing.Name == m.Name && existing.Title == m.Title {
			return
		}
	}
	e.Management = append(e.Management, m)
}

// AddAssumedName appends an unless an identical record is present.
func (e *Entity) AddAssumedName(an AssumedName) {
	for _, existing := range e.AssumedNames {
		if existing == an {
			return
		}
	}
	e.AssumedNames = append(e.AssumedNames, an)
}

// AddAssociatedEntity appends ae unless an identical record is present.
func (e *Entity) AddAssociatedEntity(ae AssociatedEntity) {
	for _, existing := range e.AssociatedEntities {
		if existing == ae {
			return
		}
	}
	e.AssociatedEntities = append(e.AssociatedEntities, ae)
}

func fillString(dst *string, src string) {
	if *dst == "" && src != "" {
		*dst = src
	}
}
