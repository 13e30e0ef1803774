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

// Package normalize provides canonical forms for the raw strings that
// appear in public-records inputs: state names, street addresses, firm
// names, dates, and record field keys.
//
// Every function in this package is pure and total. Unrecognized input
// passes through in a lowercased/trimmed form instead of raising an
// error; callers never need to guard against failure.
package normalize

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// stateCodes maps lowercased state spellings to their canonical
// two-letter lowercase code. Keys cover full names, snake_case forms,
// and punctuation variants; bare two-letter codes are handled
// separately in State.
var stateCodes = map[string]string{
	"alabama": "al", "alaska": "ak", "arizona": "az", "arkansas": "ar",
	"california": "ca", "colorado": "co", "connecticut": "ct",
	"delaware": "de", "florida": "fl", "georgia": "ga", "hawaii": "hi",
	"idaho": "id", "illinois": "il", "indiana": "in", "iowa": "ia",
	"kansas": "ks", "kentucky": "ky", "louisiana": "la", "maine": "me",
	"maryland": "md", "massachusetts": "ma", "michigan": "mi",
	"minnesota": "mn", "mississippi": "ms", "missouri": "mo",
	"montana": "mt", "nebraska": "ne", "nevada": "nv",
	"new hampshire": "nh", "new jersey": "nj", "new mexico": "nm",
	"new york": "ny", "north carolina": "nc", "north dakota": "nd",
	"ohio": "oh", "oklahoma": "ok", "oregon": "or", "pennsylvania": "pa",
	"rhode island": "ri", "south carolina": "sc", "south dakota": "sd",
	"tennessee": "tn", "texas": "tx", "utah": "ut", "vermont": "vt",
	"virginia": "va", "washington": "wa", "west virginia": "wv",
	"wisconsin": "wi", "wyoming": "wy",
	"district of columbia": "dc", "washington dc": "dc", "d.c.": "dc",
	"puerto rico": "pr", "guam": "gu", "american samoa": "as",
	"virgin islands": "vi", "u.s. virgin islands": "vi",
	"northern mariana islands": "mp",
}

// validCodes is the set of recognized two-letter codes.
var validCodes = func() map[string]bool {
	set := make(map[string]bool, len(stateCodes))
	for _, code := range stateCodes {
		set[code] = true
	}
	return set
}()

var whitespaceRe = regexp.MustCompile(`\s+`)

// State maps a raw state string to its canonical two-letter lowercase
// code. Accepts full names ("Texas"), codes in any case ("TX", "tx"),
// punctuation variants ("D.C."), and snake_case forms ("new_york").
// Unrecognized values pass through lowercased with whitespace collapsed.
// Empty input yields the empty string.
func State(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", " ")
	s = whitespaceRe.ReplaceAllString(s, " ")

	if code, ok := stateCodes[s]; ok {
		return code
	}
	// Punctuation variants of full names ("d.c." is in the table, but
	// e.g. "washington, d.c." is not).
	stripped := strings.Map(func(r rune) rune {
		if r == '.' || r == ',' {
			return -1
		}
		return r
	}, s)
	stripped = strings.TrimSpace(whitespaceRe.ReplaceAllString(stripped, " "))
	if code, ok := stateCodes[stripped]; ok {
		return code
	}
	if len(stripped) == 2 && validCodes[stripped] {
		return stripped
	}
	return s
}

// streetAbbrevs maps common street-type abbreviations to their full
// forms. Matching is word-bounded and case-insensitive; a trailing
// period on the abbreviation is absorbed.
var streetAbbrevs = []struct {
	re   *regexp.Regexp
	full string
}{
	{regexp.MustCompile(`(?i)\bSt\.?\b`), "Street"},
	{regexp.MustCompile(`(?i)\bAve\.?\b`), "Avenue"},
	{regexp.MustCompile(`(?i)\bRd\.?\b`), "Road"},
	{regexp.MustCompile(`(?i)\bBlvd\.?\b`), "Boulevard"},
	{regexp.MustCompile(`(?i)\bDr\.?\b`), "Drive"},
	{regexp.MustCompile(`(?i)\bLn\.?\b`), "Lane"},
	{regexp.MustCompile(`(?i)\bPkwy\.?\b`), "Parkway"},
	{regexp.MustCompile(`(?i)\bSte\.?\b`), "Suite"},
	{regexp.MustCompile(`(?i)\bApt\.?\b`), "Apartment"},
}

var commaSpacingRe = regexp.MustCompile(`\s*,\s*`)

// Address canonicalizes a street address: internal whitespace is
// collapsed, street-type abbreviations are expanded, comma spacing is
// normalized to ", ", and trailing punctuation is stripped.
func Address(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = whitespaceRe.ReplaceAllString(s, " ")
	for _, ab := range streetAbbrevs {
		s = ab.re.ReplaceAllString(s, ab.full)
	}
	s = commaSpacingRe.ReplaceAllString(s, ", ")
	s = strings.TrimRight(s, ".,;: ")
	return s
}

// entitySuffixes are trailing legal-form designators removed when
// canonicalizing a firm name. Longer phrases come first so that
// "Limited Liability Company" wins over "Company".
var entitySuffixes = []string{
	"limited liability company", "limited liability partnership",
	"limited partnership", "professional corporation",
	"incorporated", "corporation", "company", "limited",
	"l.l.c", "l.l.p", "l.p", "p.c",
	"llc", "llp", "inc", "corp", "ltd", "lp", "pc", "co",
}

// FirmName canonicalizes a firm name: trims, collapses whitespace,
// strips terminal punctuation, removes trailing entity suffixes, and
// title-cases the remainder.
func FirmName(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimRight(s, ".,;: ")

	lower := strings.ToLower(s)
	for changed := true; changed; {
		changed = false
		for _, suffix := range entitySuffixes {
			if strings.HasSuffix(lower, " "+suffix) || strings.HasSuffix(lower, ","+suffix) {
				cut := len(lower) - len(suffix) - 1
				s = strings.TrimRight(s[:cut], ".,;: ")
				lower = strings.ToLower(s)
				changed = true
			}
		}
	}
	return titleCase(s)
}

// titleCase uppercases the first letter of each space-separated word
// and lowercases the rest.
func titleCase(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// dateLayouts is the ordered list of accepted date formats. US forms
// first, then ISO, then long month names.
var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-2006",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"2 January 2006",
	"2006/01/02",
}

// Date parses a date string against the accepted layouts and returns
// the ISO form YYYY-MM-DD. The original string passes through on
// failure; empty input yields the empty string. "N/A" (any case) is
// treated as empty.
func Date(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "n/a") {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	// Permissive fallback: an ISO timestamp with a time component.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format("2006-01-02")
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.Format("2006-01-02")
	}
	return s
}
