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
	"bufio"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/kraklabs/rie/pkg/records"
)

// section is the per-entity parser state. A new entity block always
// starts in sectionHeader; section titles and recognized column-header
// patterns drive the transitions.
type section int

const (
	sectionHeader section = iota
	sectionRegisteredAgent
	sectionFilingHistory
	sectionNames
	sectionManagement
	sectionAssumedNames
	sectionAssociatedEntities
	sectionInitialAddress
)

// maxAddressLines bounds multi-line address capture. Continuations end
// earlier at a blank line, a new Filing Number, or a section title.
const maxAddressLines = 5

var filingNumberRe = regexp.MustCompile(`Filing Number:\s*(\d+)`)

// headerLabels are the labeled fields recognized inside an entity
// header block. A single line may carry more than one label (e.g.
// "Original Date of Filing:" and "Entity Status:"); all of them are
// extracted.
var headerLabels = []string{
	"Filing Number:",
	"Entity Type:",
	"Original Date of Filing:",
	"Entity Status:",
	"Formation Date:",
	"Tax ID:",
	"FEIN:",
	"Duration:",
	"Name:",
	"Address:",
	"Jurisdiction:",
	"Foreign Formation Date:",
	"Fictitious Name:",
	"Inactive Date:",
}

// FilingExportParser parses the tab-delimited filings text export into
// Entity records. Repeated blocks for the same filing number merge
// additively; malformed rows are skipped, never fatal.
type FilingExportParser struct {
	logger *slog.Logger
}

// NewFilingExportParser creates a parser. A nil logger falls back to
// slog.Default().
func NewFilingExportParser(logger *slog.Logger) *FilingExportParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilingExportParser{logger: logger}
}

// Parse reads the whole export and returns entities ordered by filing
// number. The returned slice has exactly one Entity per unique filing
// number seen in the input.
func (p *FilingExportParser) Parse(r io.Reader) ([]*records.Entity, error) {
	entities := make(map[string]*records.Entity)
	var order []string

	var current *records.Entity
	state := sectionHeader
	addressLines := 0
	agentAddressLines := 0
	var lastManagement *records.ManagementRecord
	mgmtContinuation := 0

	flush := func(e *records.Entity) {
		if e == nil {
			return
		}
		if existing, ok := entities[e.FilingNumber]; ok {
			existing.Merge(e)
			return
		}
		entities[e.FilingNumber] = e
		order = append(order, e.FilingNumber)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		// A Filing Number header opens a new block regardless of state.
		if m := filingNumberRe.FindStringSubmatch(line); m != nil {
			flush(current)
			current = &records.Entity{FilingNumber: m[1]}
			state = sectionHeader
			addressLines, agentAddressLines, mgmtContinuation = 0, 0, 0
			lastManagement = nil
			p.applyHeaderFields(current, line)
			continue
		}
		if current == nil {
			continue
		}

		if next, ok := nextSection(trimmed); ok {
			state = next
			agentAddressLines = 0
			mgmtContinuation = 0
			lastManagement = nil
			continue
		}
		if isColumnHeader(trimmed) {
			continue
		}

		switch state {
		case sectionHeader:
			if trimmed == "" {
				addressLines = 0
				continue
			}
			if p.applyHeaderFields(current, line) {
				if strings.Contains(line, "Address:") {
					addressLines = 1
				} else {
					addressLines = 0
				}
				continue
			}
			// Unlabeled header line: address continuation.
			if addressLines > 0 && addressLines < maxAddressLines {
				current.Address = joinAddress(current.Address, trimmed)
				addressLines++
			}

		case sectionRegisteredAgent:
			if trimmed == "" {
				continue
			}
			if fields := extractLabeled(line, headerLabels); len(fields) > 0 {
				if current.RegisteredAgent == nil {
					current.RegisteredAgent = &records.RegisteredAgent{}
				}
				if v, ok := fields["Name:"]; ok {
					current.RegisteredAgent.Name = v
				}
				if v, ok := fields["Address:"]; ok {
					current.RegisteredAgent.Address = v
					agentAddressLines = 1
				}
				if v, ok := fields["Inactive Date:"]; ok {
					current.RegisteredAgent.InactiveDate = nullableValue(v)
				}
				continue
			}
			if current.RegisteredAgent == nil {
				current.RegisteredAgent = &records.RegisteredAgent{Name: trimmed}
				continue
			}
			if agentAddressLines < maxAddressLines {
				current.RegisteredAgent.Address = joinAddress(current.RegisteredAgent.Address, trimmed)
				agentAddressLines++
			}

		case sectionFilingHistory:
			if ev, ok := parseFilingRow(line); ok {
				current.AddFilingEvent(ev)
			}

		case sectionNames:
			if n, ok := parseNameRow(line); ok {
				current.AddName(n)
			}

		case sectionManagement:
			if m, ok := parseManagementRow(line); ok {
				current.AddManagement(m)
				lastManagement = &current.Management[len(current.Management)-1]
				mgmtContinuation = 0
				continue
			}
			// Address continuation for the previous management row,
			// bounded to two lines.
			if trimmed != "" && lastManagement != nil && mgmtContinuation < 2 {
				lastManagement.Address = joinAddress(lastManagement.Address, trimmed)
				mgmtContinuation++
			}

		case sectionAssumedNames:
			if an, ok := parseAssumedNameRow(line); ok {
				current.AddAssumedName(an)
			}

		case sectionAssociatedEntities:
			if ae, ok := parseAssociatedEntityRow(line); ok {
				current.AddAssociatedEntity(ae)
			}

		case sectionInitialAddress:
			if trimmed != "" {
				current.InitialAddress = joinAddress(current.InitialAddress, trimmed)
			}
		}
	}
	flush(current)

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.Strings(order)
	out := make([]*records.Entity, 0, len(order))
	for _, fn := range order {
		out = append(out, entities[fn])
	}
	p.logger.Debug("ingest.filings.parse.complete", "entities", len(out))
	return out, nil
}

// applyHeaderFields extracts any labeled header fields present on the
// line into e. Returns true when at least one label was found.
func (p *FilingExportParser) applyHeaderFields(e *records.Entity, line string) bool {
	fields := extractLabeled(line, headerLabels)
	if len(fields) == 0 {
		return false
	}
	for label, value := range fields {
		switch label {
		case "Entity Type:":
			fill(&e.EntityType, value)
		case "Original Date of Filing:":
			fill(&e.OriginalFilingDate, nullableValue(value))
		case "Entity Status:":
			fill(&e.Status, value)
		case "Formation Date:":
			fill(&e.FormationDate, nullableValue(value))
		case "Tax ID:":
			fill(&e.TaxID, value)
		case "FEIN:":
			fill(&e.FEIN, value)
		case "Duration:":
			fill(&e.Duration, value)
		case "Name:":
			fill(&e.Name, value)
		case "Address:":
			fill(&e.Address, value)
		case "Jurisdiction:":
			fill(&e.Jurisdiction, value)
		case "Foreign Formation Date:":
			fill(&e.ForeignFormation, nullableValue(value))
		case "Fictitious Name:":
			fill(&e.FictitiousName, nullableValue(value))
		}
	}
	return true
}

// nextSection reports the section a title line transitions to.
// This is the pure transition core of the state machine: everything
// else only accumulates rows within the current section.
func nextSection(trimmed string) (section, bool) {
	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasPrefix(upper, "REGISTERED AGENT"):
		return sectionRegisteredAgent, true
	case strings.HasPrefix(upper, "FILING HISTORY"):
		return sectionFilingHistory, true
	case strings.HasPrefix(upper, "ASSUMED NAMES"):
		return sectionAssumedNames, true
	case strings.HasPrefix(upper, "ASSOCIATED ENTITIES"):
		return sectionAssociatedEntities, true
	case strings.HasPrefix(upper, "INITIAL ADDRESS"):
		return sectionInitialAddress, true
	case upper == "NAMES":
		return sectionNames, true
	case upper == "MANAGEMENT":
		return sectionManagement, true
	}
	return sectionHeader, false
}

// columnHeaderTokens identify column-header rows that must be skipped
// inside a section.
var columnHeaderTokens = []string{
	"Document Number", "Filing Type", "Name Status", "Last Update",
	"View Image", "Eff. Cond", "Page Count", "Expiration Date",
	"Inactive Date", "Counties", "Capacity", "Document Description",
	"Entity Filing Number",
}

func isColumnHeader(trimmed string) bool {
	if trimmed == "" {
		return false
	}
	hits := 0
	for _, tok := range columnHeaderTokens {
		if strings.Contains(trimmed, tok) {
			hits++
		}
	}
	return hits >= 2
}

// splitRow splits a tab-delimited section row, tolerating an empty
// leading cell. Returns nil for rows with no content.
func splitRow(line string) []string {
	if !strings.Contains(line, "\t") {
		return nil
	}
	parts := strings.Split(line, "\t")
	for len(parts) > 0 && strings.TrimSpace(parts[0]) == "" {
		parts = parts[1:]
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) == 0 || parts[0] == "" {
		return nil
	}
	return parts
}

func parseFilingRow(line string) (records.FilingEvent, bool) {
	parts := splitRow(line)
	if len(parts) < 2 || !isNumeric(parts[0]) {
		return records.FilingEvent{}, false
	}
	ev := records.FilingEvent{DocumentNumber: parts[0]}
	assign(parts, 1, &ev.FilingType)
	assign(parts, 2, &ev.FilingDate)
	assign(parts, 3, &ev.EffectiveDate)
	assign(parts, 4, &ev.EffCond)
	assign(parts, 5, &ev.PageCount)
	return ev, true
}

func parseNameRow(line string) (records.NameRecord, bool) {
	parts := splitRow(line)
	if len(parts) < 2 {
		return records.NameRecord{}, false
	}
	n := records.NameRecord{Name: parts[0]}
	assign(parts, 1, &n.NameStatus)
	assign(parts, 2, &n.NameType)
	assign(parts, 3, &n.NameInactiveDate)
	assign(parts, 4, &n.ConsentFilingNumber)
	return n, true
}

func parseManagementRow(line string) (records.ManagementRecord, bool) {
	parts := splitRow(line)
	// The first cell is a last-update date; requiring a digit rejects
	// stray column-header rows.
	if len(parts) < 3 || !strings.ContainsAny(parts[0], "0123456789") {
		return records.ManagementRecord{}, false
	}
	m := records.ManagementRecord{LastUpdate: parts[0], Name: parts[1], Title: parts[2]}
	assign(parts, 3, &m.Address)
	return m, true
}

func parseAssumedNameRow(line string) (records.AssumedName, bool) {
	parts := splitRow(line)
	if len(parts) < 2 {
		return records.AssumedName{}, false
	}
	an := records.AssumedName{AssumedName: parts[0]}
	assign(parts, 1, &an.DateOfFiling)
	assign(parts, 2, &an.ExpirationDate)
	assign(parts, 3, &an.InactiveDate)
	assign(parts, 4, &an.NameStatus)
	assign(parts, 5, &an.Counties)
	return an, true
}

func parseAssociatedEntityRow(line string) (records.AssociatedEntity, bool) {
	parts := splitRow(line)
	if len(parts) < 2 {
		return records.AssociatedEntity{}, false
	}
	ae := records.AssociatedEntity{Name: parts[0]}
	assign(parts, 1, &ae.EntityType)
	assign(parts, 2, &ae.DocumentDescription)
	assign(parts, 3, &ae.FilingDate)
	assign(parts, 4, &ae.EntityFilingNumber)
	assign(parts, 5, &ae.Jurisdiction)
	assign(parts, 6, &ae.Capacity)
	return ae, true
}

// extractLabeled finds every occurrence of the given labels on a line
// and returns label -> value, where a value runs from the end of its
// label to the start of the next label (or end of line), trimmed of
// tabs and spaces.
func extractLabeled(line string, labels []string) map[string]string {
	type hit struct {
		label string
		start int
		end   int
	}
	var hits []hit
	for _, label := range labels {
		if idx := strings.Index(line, label); idx >= 0 {
			hits = append(hits, hit{label: label, start: idx, end: idx + len(label)})
		}
	}
	if len(hits) == 0 {
		return nil
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	// Drop labels found inside a longer label ("Name:" inside
	// "Fictitious Name:").
	filtered := make([]hit, 0, len(hits))
	for _, h := range hits {
		contained := false
		for _, other := range hits {
			if other.label != h.label && h.start >= other.start && h.end <= other.end {
				contained = true
				break
			}
		}
		if !contained {
			filtered = append(filtered, h)
		}
	}
	hits = filtered

	fields := make(map[string]string, len(hits))
	for i, h := range hits {
		stop := len(line)
		if i+1 < len(hits) {
			stop = hits[i+1].start
		}
		value := strings.Trim(line[h.end:stop], " \t")
		fields[h.label] = value
	}
	return fields
}

// nullableValue converts the export's "N/A" marker to empty.
func nullableValue(v string) string {
	if strings.EqualFold(strings.TrimSpace(v), "n/a") {
		return ""
	}
	return v
}

func joinAddress(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + ", " + line
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func fill(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

func assign(parts []string, i int, dst *string) {
	if i < len(parts) {
		*dst = parts[i]
	}
}
