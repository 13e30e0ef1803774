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
	"encoding/json"
	"fmt"
	"strconv"

	"log/slog"

	"github.com/kraklabs/rie/pkg/records"
)

// ChildDocument is one decomposed leaf of an entity: a JSON payload, a
// canonical text representation, and the metadata every leaf carries.
// The ID is content-derived (see ContentID), so identical input always
// decomposes to identical IDs regardless of input order.
type ChildDocument struct {
	ID   string
	Kind string
	// Key is the natural-key filename stem, e.g. "entity_12345" or
	// "name_12345_0".
	Key  string
	Path string
	Data any
	Text string
	// FilingNumber is the parent entity's key. Never empty: the
	// decomposer refuses orphan children.
	FilingNumber string
	// Index is the sequence index for list-derived children, -1
	// otherwise.
	Index int
	// DocumentNumber is set for filing-history children only.
	DocumentNumber string
}

// RecursiveDecomposer walks a parsed entity and emits one ChildDocument
// per addressable sub-aspect: the entity itself, its registered agent,
// each filing event, name, management entry, assumed name, associated
// entity, and the initial address.
type RecursiveDecomposer struct {
	logger *slog.Logger
}

// NewRecursiveDecomposer creates a decomposer. A nil logger falls back
// to slog.Default().
func NewRecursiveDecomposer(logger *slog.Logger) *RecursiveDecomposer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecursiveDecomposer{logger: logger}
}

// Decompose emits the full child-document tree for one entity, in a
// fixed order: entity, agent, filing history, names, management,
// assumed names, associated entities, initial address.
func (d *RecursiveDecomposer) Decompose(e *records.Entity) []ChildDocument {
	fn := e.FilingNumber
	docs := make([]ChildDocument, 0, 8)

	docs = append(docs, d.child(KindEntity, e, entityText(e), fn, -1, "", fn))

	if e.RegisteredAgent != nil {
		a := e.RegisteredAgent
		text := textRepr(
			kv{"name", a.Name},
			kv{"address", a.Address},
			kv{"inactive_date", a.InactiveDate},
		)
		docs = append(docs, d.child(KindRegisteredAgent, a, text, fn, -1, "", fn))
	}

	for i, f := range e.FilingHistory {
		docNumber := f.DocumentNumber
		if docNumber == "" {
			docNumber = fmt.Sprintf("%s_%d", fn, i)
		}
		text := textRepr(
			kv{"document_number", f.DocumentNumber},
			kv{"filing_type", f.FilingType},
			kv{"filing_date", f.FilingDate},
			kv{"effective_date", f.EffectiveDate},
			kv{"eff_cond", f.EffCond},
			kv{"page_count", f.PageCount},
		)
		docs = append(docs, d.child(KindFilingEvent, f, text, fn, i, docNumber, docNumber))
	}

	for i, n := range e.Names {
		text := textRepr(
			kv{"name", n.Name},
			kv{"name_status", n.NameStatus},
			kv{"name_type", n.NameType},
			kv{"name_inactive_date", n.NameInactiveDate},
			kv{"consent_filing_number", n.ConsentFilingNumber},
		)
		docs = append(docs, d.child(KindName, n, text, fn, i, "", fn, strconv.Itoa(i)))
	}

	for i, m := range e.Management {
		text := textRepr(
			kv{"last_update", m.LastUpdate},
			kv{"name", m.Name},
			kv{"title", m.Title},
			kv{"address", m.Address},
		)
		docs = append(docs, d.child(KindManagement, m, text, fn, i, "", fn, strconv.Itoa(i)))
	}

	for i, a := range e.AssumedNames {
		text := textRepr(
			kv{"assumed_name", a.AssumedName},
			kv{"date_of_filing", a.DateOfFiling},
			kv{"expiration_date", a.ExpirationDate},
			kv{"inactive_date", a.InactiveDate},
			kv{"name_status", a.NameStatus},
			kv{"counties", a.Counties},
		)
		docs = append(docs, d.child(KindAssumedName, a, text, fn, i, "", fn, strconv.Itoa(i)))
	}

	for i, a := range e.AssociatedEntities {
		text := textRepr(
			kv{"name", a.Name},
			kv{"entity_type", a.EntityType},
			kv{"document_description", a.DocumentDescription},
			kv{"filing_date", a.FilingDate},
			kv{"entity_filing_number", a.EntityFilingNumber},
			kv{"jurisdiction", a.Jurisdiction},
			kv{"capacity", a.Capacity},
		)
		docs = append(docs, d.child(KindAssociatedEntity, a, text, fn, i, "", fn, strconv.Itoa(i)))
	}

	if e.InitialAddress != "" {
		data := map[string]string{
			"filing_number": fn,
			"address":       e.InitialAddress,
		}
		text := textRepr(
			kv{"filing_number", fn},
			kv{"address", e.InitialAddress},
		)
		docs = append(docs, d.child(KindInitialAddress, data, text, fn, -1, "", fn))
	}

	d.logger.Debug("ingest.decompose.complete", "filing_number", fn, "children", len(docs))
	return docs
}

func (d *RecursiveDecomposer) child(kind string, data any, text, fn string, index int, docNumber string, keys ...string) ChildDocument {
	key := kind
	for _, k := range keys {
		key += "_" + k
	}
	return ChildDocument{
		ID:             ContentID(kind, text),
		Kind:           kind,
		Key:            key,
		Path:           PathFor(kind, keys...),
		Data:           data,
		Text:           text,
		FilingNumber:   fn,
		Index:          index,
		DocumentNumber: docNumber,
	}
}

// kv is one fragment of a text representation.
type kv struct {
	key   string
	value any
}

// textRepr joins "key: value" fragments with " | ". Empty strings and
// empty lists are skipped; non-empty lists collapse to their length;
// nested objects collapse to compact JSON. The result is the canonical
// text the embedding and the content hash are computed from.
func textRepr(pairs ...kv) string {
	out := ""
	for _, p := range pairs {
		frag := fragment(p.key, p.value)
		if frag == "" {
			continue
		}
		if out != "" {
			out += " | "
		}
		out += frag
	}
	return out
}

func fragment(key string, value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		if v == "" {
			return ""
		}
		return key + ": " + v
	case int:
		if v == 0 {
			return ""
		}
		return fmt.Sprintf("%s: %d", key, v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return key + ": " + string(raw)
	}
}

// listFragment collapses a non-empty list to "key: N items".
func listFragment(key string, n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("%s: %d items", key, n)
}

// entityText builds the entity-level text representation: scalar
// fields in declaration order, the agent as compact JSON, and each
// child list as an item count.
func entityText(e *records.Entity) string {
	pairs := []kv{
		{"filing_number", e.FilingNumber},
		{"name", e.Name},
		{"entity_type", e.EntityType},
		{"entity_status", e.Status},
		{"original_filing_date", e.OriginalFilingDate},
		{"formation_date", e.FormationDate},
		{"tax_id", e.TaxID},
		{"fein", e.FEIN},
		{"duration", e.Duration},
		{"address", e.Address},
		{"jurisdiction", e.Jurisdiction},
		{"foreign_formation_date", e.ForeignFormation},
		{"fictitious_name", e.FictitiousName},
	}
	out := textRepr(pairs...)

	if e.RegisteredAgent != nil {
		out = appendFragment(out, fragment("registered_agent", e.RegisteredAgent))
	}
	out = appendFragment(out, listFragment("filing_history", len(e.FilingHistory)))
	out = appendFragment(out, listFragment("names", len(e.Names)))
	out = appendFragment(out, listFragment("management", len(e.Management)))
	out = appendFragment(out, listFragment("assumed_names", len(e.AssumedNames)))
	out = appendFragment(out, listFragment("associated_entities", len(e.AssociatedEntities)))
	out = appendFragment(out, fragment("initial_address", e.InitialAddress))
	return out
}

func appendFragment(out, frag string) string {
	if frag == "" {
		return out
	}
	if out == "" {
		return frag
	}
	return out + " | " + frag
}
