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
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ohler55/ojg/oj"

	"github.com/kraklabs/rie/pkg/normalize"
	"github.com/kraklabs/rie/pkg/records"
)

// wrapperKeys are the top-level JSON keys that wrap a record array.
var wrapperKeys = []string{"companies", "listings", "entities", "records"}

// TabularLoader reads CSV and JSON record files into flat records with
// canonical field names.
type TabularLoader struct {
	logger *slog.Logger
}

// NewTabularLoader creates a loader. A nil logger falls back to
// slog.Default().
func NewTabularLoader(logger *slog.Logger) *TabularLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &TabularLoader{logger: logger}
}

// Load reads path as CSV or JSON depending on its extension.
func (l *TabularLoader) Load(path string) ([]map[string]string, error) {
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		return l.LoadCSV(path)
	}
	return l.LoadJSON(path)
}

// LoadJSON parses a JSON file into records. Accepts a top-level list,
// an object wrapping a list under one of the known keys, or a single
// record object. Field keys are canonicalized through the alias table.
func (l *TabularLoader) LoadJSON(path string) ([]map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	parsed, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	items := unwrapRecords(parsed)
	out := make([]map[string]string, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, canonicalRecord(obj))
	}
	l.logger.Debug("ingest.tabular.load.complete", "path", path, "records", len(out))
	return out, nil
}

// LoadCSV parses a CSV file with a header row into records keyed by
// canonical field names. Short rows are padded; malformed rows are
// skipped.
func (l *TabularLoader) LoadCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = normalize.CanonicalField(h)
	}

	var out []map[string]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			l.logger.Warn("ingest.tabular.row.error", "path", path, "error", err)
			continue
		}
		rec := make(map[string]string, len(keys))
		for i, key := range keys {
			if i < len(row) {
				rec[key] = strings.TrimSpace(row[i])
			}
		}
		out = append(out, rec)
	}
	l.logger.Debug("ingest.tabular.load.complete", "path", path, "records", len(out))
	return out, nil
}

// ToEntity converts a canonical record into an Entity. Records without
// a filing number return nil: they cannot be keyed and are dropped.
func ToEntity(rec map[string]string) *records.Entity {
	fn := rec["filing_number"]
	if fn == "" {
		return nil
	}
	return &records.Entity{
		FilingNumber:       fn,
		Name:               rec["name"],
		EntityType:         rec["entity_type"],
		Status:             rec["status"],
		OriginalFilingDate: normalize.Date(rec["original_filing_date"]),
		FormationDate:      normalize.Date(rec["formation_date"]),
		TaxID:              rec["tax_id"],
		FEIN:               rec["fein"],
		Address:            normalize.Address(rec["address"]),
		Jurisdiction:       normalize.State(rec["jurisdiction"]),
	}
}

// unwrapRecords flattens the accepted top-level JSON shapes into a
// list of items.
func unwrapRecords(parsed any) []any {
	switch v := parsed.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range wrapperKeys {
			if inner, ok := v[key].([]any); ok {
				return inner
			}
		}
		// A single record object.
		return []any{v}
	}
	return nil
}

func canonicalRecord(obj map[string]any) map[string]string {
	rec := make(map[string]string, len(obj))
	for key, value := range obj {
		canonical := normalize.CanonicalField(key)
		switch v := value.(type) {
		case nil:
			rec[canonical] = ""
		case string:
			rec[canonical] = strings.TrimSpace(v)
		default:
			rec[canonical] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return rec
}
