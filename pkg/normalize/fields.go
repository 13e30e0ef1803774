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

package normalize

import "strings"

// fieldAliases maps the many spellings that record sources use for the
// same concept onto one canonical field name. The table is the single
// source of truth for field aliasing; record loaders consult it instead
// of testing keys inline.
var fieldAliases = map[string]string{
	// name
	"name":          "name",
	"firm_name":     "name",
	"company_name":  "name",
	"entity_name":   "name",
	"business_name": "name",
	"legal_name":    "name",

	// filing number
	"filing_number":       "filing_number",
	"filing_no":           "filing_number",
	"file_number":         "filing_number",
	"registration_number": "filing_number",

	// entity type
	"entity_type":  "entity_type",
	"type":         "entity_type",
	"company_type": "entity_type",

	// status
	"status":        "status",
	"entity_status": "status",

	// address
	"address":          "address",
	"street_address":   "address",
	"business_address": "address",
	"mailing_address":  "address",

	// state
	"state":        "state",
	"jurisdiction": "jurisdiction",
	"home_state":   "jurisdiction",
	"formed_in":    "jurisdiction",
	"state_of_inc": "jurisdiction",
	"organized_in": "jurisdiction",
	"incorporated": "jurisdiction",

	// dates
	"original_filing_date":    "original_filing_date",
	"original_date_of_filing": "original_filing_date",
	"filing_date":             "filing_date",
	"date_of_filing":          "filing_date",
	"formation_date":          "formation_date",
	"date_of_formation":       "formation_date",

	// identifiers
	"tax_id":      "tax_id",
	"taxpayer_id": "tax_id",
	"tax_number":  "tax_id",
	"fein":        "fein",
	"ein":         "fein",
	"federal_ein": "fein",

	// people
	"title":    "title",
	"role":     "title",
	"position": "title",
	"officer":  "title",
}

// CanonicalField maps a record key to its canonical field name. Keys
// are matched case-insensitively with spaces and dashes treated as
// underscores. Unrecognized keys pass through in that normalized form.
func CanonicalField(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.ReplaceAll(k, " ", "_")
	k = strings.ReplaceAll(k, "-", "_")
	if canonical, ok := fieldAliases[k]; ok {
		return canonical
	}
	return k
}
