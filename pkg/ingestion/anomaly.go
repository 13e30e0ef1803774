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
	"fmt"
	"regexp"
	"strings"
)

// Anomaly severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Anomaly types.
const (
	AnomalyAddressCluster   = "address_cluster"
	AnomalyEntityRepetition = "entity_repetition"
	AnomalyDateDensity      = "date_density"
	AnomalyMultiState       = "multi_state"
	AnomalyShellIndicators  = "shell_indicators"
)

// PageAnomaly is one pattern-matched indicator on a PDF page.
type PageAnomaly struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
	Count    int    `json:"count"`
}

// AnomalyReport collects the anomalies found on one page. Pages with
// no anomalies produce no report file.
type AnomalyReport struct {
	PageNumber int           `json:"page_number"`
	Source     string        `json:"source"`
	Anomalies  []PageAnomaly `json:"anomalies"`
}

// AnomalyConfig holds the detection thresholds. The zero value is not
// usable; start from DefaultAnomalyConfig.
type AnomalyConfig struct {
	// AddressClusterMin fires the address-cluster anomaly when a page
	// carries at least this many US-format addresses.
	AddressClusterMin int `yaml:"address_cluster_min"`

	// EntityRepetitionOver fires when any single entity name appears
	// strictly more often than this.
	EntityRepetitionOver int `yaml:"entity_repetition_over"`

	// DateDensityOver fires when a page carries strictly more
	// recognized dates than this.
	DateDensityOver int `yaml:"date_density_over"`

	// MultiStateMin fires when at least this many distinct US state
	// codes appear.
	MultiStateMin int `yaml:"multi_state_min"`

	// ShellKeywordMin fires when at least this many distinct
	// shell-company keywords appear.
	ShellKeywordMin int `yaml:"shell_keyword_min"`
}

// DefaultAnomalyConfig returns the standard thresholds.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		AddressClusterMin:    6,
		EntityRepetitionOver: 3,
		DateDensityOver:      10,
		MultiStateMin:        4,
		ShellKeywordMin:      3,
	}
}

var (
	streetAddressRe = regexp.MustCompile(`\d+\s+[A-Za-z][A-Za-z ]*\s+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Parkway|Pkwy|Way|Court|Ct|Place|Pl)\b`)
	cityStateZipRe  = regexp.MustCompile(`[A-Z][A-Za-z .]+,\s*[A-Z]{2}\s+\d{5}(?:-\d{4})?`)

	entitySuffixRe  = regexp.MustCompile(`\b[A-Z][A-Za-z&.' ]{2,50}?(?:Inc\.?|LLC|L\.L\.C\.?|Corp\.?|Corporation|Company|Ltd\.?|L\.P\.|LP|LLP)\b`)
	entityKeywordRe = regexp.MustCompile(`\b[A-Z][A-Za-z&.' ]{2,50}?(?:Management|Services|Group|Holdings|Partners|Capital|Investments|Properties|Ventures)\b`)

	longDateRe  = regexp.MustCompile(`(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s+\d{4}`)
	slashDateRe = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	isoDateRe   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)

	stateCodeRe = regexp.MustCompile(`\b(AL|AK|AZ|AR|CA|CO|CT|DE|FL|GA|HI|ID|IL|IN|IA|KS|KY|LA|ME|MD|MA|MI|MN|MS|MO|MT|NE|NV|NH|NJ|NM|NY|NC|ND|OH|OK|OR|PA|RI|SC|SD|TN|TX|UT|VT|VA|WA|WV|WI|WY|DC)\b`)
)

// shellKeywords are matched as lowercase substrings, so "suite" also
// hits "ste". That double count is intentional: a page with suite
// addresses and a registered agent reads as shell-flavored.
var shellKeywords = []string{
	"registered agent", "c/o", "suite", "ste", "mail forwarding", "virtual office",
}

// AnomalyDetector applies the pattern rules to page text.
type AnomalyDetector struct {
	cfg AnomalyConfig
}

// NewAnomalyDetector creates a detector with the given thresholds.
func NewAnomalyDetector(cfg AnomalyConfig) *AnomalyDetector {
	return &AnomalyDetector{cfg: cfg}
}

// Detect runs every rule against one page's text and returns the
// anomalies found, in rule order. An empty slice means a clean page.
func (d *AnomalyDetector) Detect(source string, pageNumber int, text string) []PageAnomaly {
	var anomalies []PageAnomaly

	addresses := countAddresses(text)
	if addresses >= d.cfg.AddressClusterMin {
		anomalies = append(anomalies, PageAnomaly{
			Type:     AnomalyAddressCluster,
			Severity: SeverityMedium,
			Detail:   fmt.Sprintf("%d US-format addresses on one page", addresses),
			Count:    addresses,
		})
	}

	if name, occurrences := maxEntityRepetition(text); occurrences > d.cfg.EntityRepetitionOver {
		anomalies = append(anomalies, PageAnomaly{
			Type:     AnomalyEntityRepetition,
			Severity: SeverityLow,
			Detail:   fmt.Sprintf("entity %q appears %d times", name, occurrences),
			Count:    occurrences,
		})
	}

	dates := len(longDateRe.FindAllString(text, -1)) +
		len(slashDateRe.FindAllString(text, -1)) +
		len(isoDateRe.FindAllString(text, -1))
	if dates > d.cfg.DateDensityOver {
		anomalies = append(anomalies, PageAnomaly{
			Type:     AnomalyDateDensity,
			Severity: SeverityLow,
			Detail:   fmt.Sprintf("%d dates on one page", dates),
			Count:    dates,
		})
	}

	states := distinctStates(text)
	if len(states) >= d.cfg.MultiStateMin {
		anomalies = append(anomalies, PageAnomaly{
			Type:     AnomalyMultiState,
			Severity: SeverityMedium,
			Detail:   fmt.Sprintf("%d distinct state codes: %s", len(states), strings.Join(states, ", ")),
			Count:    len(states),
		})
	}

	keywords := shellKeywordHits(text)
	if len(keywords) >= d.cfg.ShellKeywordMin {
		anomalies = append(anomalies, PageAnomaly{
			Type:     AnomalyShellIndicators,
			Severity: SeverityHigh,
			Detail:   fmt.Sprintf("shell-company keywords: %s", strings.Join(keywords, ", ")),
			Count:    len(keywords),
		})
	}

	return anomalies
}

func countAddresses(text string) int {
	street := streetAddressRe.FindAllString(text, -1)
	cityStateZip := cityStateZipRe.FindAllString(text, -1)
	// Street matches and city-state-zip matches usually describe the
	// same address; take the larger set rather than the sum.
	if len(street) > len(cityStateZip) {
		return len(street)
	}
	return len(cityStateZip)
}

func maxEntityRepetition(text string) (string, int) {
	counts := make(map[string]int)
	for _, m := range entitySuffixRe.FindAllString(text, -1) {
		counts[strings.TrimSpace(m)]++
	}
	for _, m := range entityKeywordRe.FindAllString(text, -1) {
		counts[strings.TrimSpace(m)]++
	}
	best, bestCount := "", 0
	for name, c := range counts {
		if c > bestCount || (c == bestCount && name < best) {
			best, bestCount = name, c
		}
	}
	return best, bestCount
}

func distinctStates(text string) []string {
	seen := make(map[string]bool)
	var states []string
	for _, m := range stateCodeRe.FindAllString(text, -1) {
		if !seen[m] {
			seen[m] = true
			states = append(states, m)
		}
	}
	return states
}

func shellKeywordHits(text string) []string {
	lower := strings.ToLower(text)
	var hits []string
	for _, kw := range shellKeywords {
		if strings.Contains(lower, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}
