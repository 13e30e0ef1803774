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

package analysis

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kraklabs/rie/pkg/records"
)

// Lifecycle stage thresholds in days.
const (
	lifecycleNewDays         = 365
	lifecycleEstablishedDays = 1825
)

// TimeSeries aggregates violations over time, categorizes entity
// lifecycles, flags forfeiture-reinstatement patterns, and
// extrapolates next year's violation count.
func TimeSeries(entities []*records.Entity, violations map[string][]records.Violation, now time.Time) map[string]any {
	byMonth := make(map[string]int)
	byYear := make(map[int]int)
	totalDated := 0

	for _, list := range violations {
		for _, v := range list {
			raw := v.FilingDate
			if raw == "" {
				raw = v.EffectiveDate
			}
			d, ok := parseDate(raw)
			if !ok {
				continue
			}
			totalDated++
			byMonth[d.Format("2006-01")]++
			byYear[d.Year()]++
		}
	}

	trends := map[string]any{}
	if len(byYear) > 1 {
		years := make([]int, 0, len(byYear))
		for y := range byYear {
			years = append(years, y)
		}
		sort.Ints(years)
		counts := make([]int, len(years))
		for i, y := range years {
			counts[i] = byYear[y]
		}

		slope := float64(counts[len(counts)-1]-counts[0]) / float64(len(counts))
		direction := "stable"
		if slope > 0 {
			direction = "increasing"
		} else if slope < 0 {
			direction = "decreasing"
		}
		trends["yearly_trend"] = map[string]any{
			"slope":     slope,
			"direction": direction,
			"years":     years,
			"counts":    counts,
		}
	}

	seasonal := map[string]any{}
	if len(byMonth) > 0 {
		months := make([]string, 0, len(byMonth))
		for m := range byMonth {
			months = append(months, m)
		}
		sort.Strings(months)
		counts := make([]int, len(months))
		numbers := make([]int, len(months))
		for i, m := range months {
			counts[i] = byMonth[m]
			if parts := strings.SplitN(m, "-", 2); len(parts) == 2 {
				numbers[i], _ = strconv.Atoi(parts[1])
			}
		}
		seasonal = map[string]any{
			"months":        months,
			"counts":        counts,
			"month_numbers": numbers,
		}
	}

	stages := make(map[string]int)
	transitions := []map[string]any{}
	for _, e := range entities {
		formed, ok := parseDate(e.OriginalFilingDate)
		if !ok {
			continue
		}
		days := int(now.Sub(formed).Hours() / 24)
		status := strings.ToLower(e.Status)

		switch {
		case strings.Contains(status, "forfeited"):
			stages["forfeited"]++
		case days < lifecycleNewDays:
			stages["new"]++
		case days < lifecycleEstablishedDays:
			stages["established"]++
		default:
			stages["mature"]++
		}

		var hasForfeiture, hasReinstatement bool
		for _, f := range e.FilingHistory {
			if strings.Contains(f.FilingType, "Tax Forfeiture") {
				hasForfeiture = true
			}
			if strings.Contains(f.FilingType, "Reinstatement") {
				hasReinstatement = true
			}
		}
		if hasForfeiture && hasReinstatement {
			transitions = append(transitions, map[string]any{
				"entity_id": e.FilingNumber,
				"pattern":   "forfeiture_reinstatement",
			})
		}
	}

	predictions := map[string]any{}
	if yearly, ok := trends["yearly_trend"].(map[string]any); ok {
		years := yearly["years"].([]int)
		counts := yearly["counts"].([]int)
		slope := yearly["slope"].(float64)
		if len(years) > 0 {
			predicted := int(float64(counts[len(counts)-1]) + slope)
			if predicted < 0 {
				predicted = 0
			}
			predictions["next_year"] = map[string]any{
				"year":                 years[len(years)-1] + 1,
				"predicted_violations": predicted,
				"confidence":           "low",
			}
		}
	}

	totalStaged := 0
	for _, c := range stages {
		totalStaged += c
	}

	return map[string]any{
		"violation_trends":  trends,
		"seasonal_patterns": seasonal,
		"lifecycle_analysis": map[string]any{
			"stages":                         stages,
			"transitions":                    transitions,
			"forfeiture_reinstatement_count": len(transitions),
		},
		"predictions": predictions,
		"summary": map[string]any{
			"total_violations_over_time": totalDated,
			"violation_months":           len(byMonth),
			"violation_years":            len(byYear),
			"entities_in_lifecycle":      totalStaged,
		},
	}
}

func parseDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	raw = strings.TrimSuffix(raw, "Z")
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04:05", "2006-01-02T15:04:05-07:00"} {
		if d, err := time.Parse(layout, raw); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
