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
	"math"
	"testing"
	"time"

	"github.com/kraklabs/rie/pkg/features"
	"github.com/kraklabs/rie/pkg/records"
)

func testNow() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestTimeSeries_TrendAndPrediction(t *testing.T) {
	violations := map[string][]records.Violation{
		"Late Filing": {
			{FilingNumber: "1", FilingDate: "2020-03-01"},
			{FilingNumber: "2", FilingDate: "2020-07-15"},
			{FilingNumber: "3", FilingDate: "2021-01-10"},
			{FilingNumber: "4", FilingDate: "2021-02-20"},
			{FilingNumber: "5", FilingDate: "2021-05-05"},
			{FilingNumber: "6", FilingDate: "2021-08-30"},
			{FilingNumber: "7", FilingDate: "2021-09-12"},
			{FilingNumber: "8", FilingDate: "2021-11-01"},
		},
	}
	result := TimeSeries(nil, violations, testNow())

	trend := result["violation_trends"].(map[string]any)["yearly_trend"].(map[string]any)
	if slope := trend["slope"].(float64); slope != 2.0 {
		t.Errorf("slope = %v, want 2.0", slope)
	}
	if trend["direction"] != "increasing" {
		t.Errorf("direction = %v, want increasing", trend["direction"])
	}

	next := result["predictions"].(map[string]any)["next_year"].(map[string]any)
	if next["year"] != 2022 {
		t.Errorf("next year = %v, want 2022", next["year"])
	}
	if next["predicted_violations"] != 8 {
		t.Errorf("predicted_violations = %v, want 8", next["predicted_violations"])
	}
	if next["confidence"] != "low" {
		t.Errorf("confidence = %v, want low", next["confidence"])
	}

	summary := result["summary"].(map[string]any)
	if summary["total_violations_over_time"] != 8 {
		t.Errorf("total = %v, want 8", summary["total_violations_over_time"])
	}
	if summary["violation_years"] != 2 {
		t.Errorf("violation_years = %v, want 2", summary["violation_years"])
	}
}

func TestTimeSeries_SingleYearNoTrend(t *testing.T) {
	violations := map[string][]records.Violation{
		"Late Filing": {{FilingNumber: "1", FilingDate: "2021-03-01"}},
	}
	result := TimeSeries(nil, violations, testNow())

	trends := result["violation_trends"].(map[string]any)
	if _, ok := trends["yearly_trend"]; ok {
		t.Errorf("yearly_trend present for single year of data")
	}
	predictions := result["predictions"].(map[string]any)
	if len(predictions) != 0 {
		t.Errorf("predictions = %v, want empty without a trend", predictions)
	}
}

func TestTimeSeries_SeasonalPatterns(t *testing.T) {
	violations := map[string][]records.Violation{
		"Late Filing": {
			{FilingDate: "2021-03-01"},
			{FilingDate: "2021-03-20"},
			{EffectiveDate: "2021-07-04"},
		},
	}
	result := TimeSeries(nil, violations, testNow())

	seasonal := result["seasonal_patterns"].(map[string]any)
	months := seasonal["months"].([]string)
	counts := seasonal["counts"].([]int)
	numbers := seasonal["month_numbers"].([]int)

	if len(months) != 2 || months[0] != "2021-03" || months[1] != "2021-07" {
		t.Fatalf("months = %v", months)
	}
	if counts[0] != 2 || counts[1] != 1 {
		t.Errorf("counts = %v, want [2 1]", counts)
	}
	if numbers[0] != 3 || numbers[1] != 7 {
		t.Errorf("month_numbers = %v, want [3 7]", numbers)
	}
}

func TestTimeSeries_LifecycleAndTransitions(t *testing.T) {
	entities := []*records.Entity{
		{
			FilingNumber:       "100",
			Status:             "Forfeited Existence",
			OriginalFilingDate: "2010-01-01",
			FilingHistory: []records.FilingEvent{
				{FilingType: "Tax Forfeiture", FilingDate: "2015-02-01"},
				{FilingType: "Reinstatement", FilingDate: "2016-03-01"},
			},
		},
		{FilingNumber: "200", Status: "In Existence", OriginalFilingDate: "2025-06-01"},
		{FilingNumber: "300", Status: "In Existence", OriginalFilingDate: "2023-01-01"},
		{FilingNumber: "400", Status: "In Existence", OriginalFilingDate: "2001-01-01"},
		{FilingNumber: "500", Status: "In Existence"}, // no formation date
	}

	result := TimeSeries(entities, nil, testNow())
	lifecycle := result["lifecycle_analysis"].(map[string]any)

	stages := lifecycle["stages"].(map[string]int)
	want := map[string]int{"forfeited": 1, "new": 1, "established": 1, "mature": 1}
	for stage, n := range want {
		if stages[stage] != n {
			t.Errorf("stages[%s] = %d, want %d", stage, stages[stage], n)
		}
	}

	transitions := lifecycle["transitions"].([]map[string]any)
	if len(transitions) != 1 {
		t.Fatalf("transitions = %v, want one", transitions)
	}
	if transitions[0]["entity_id"] != "100" || transitions[0]["pattern"] != "forfeiture_reinstatement" {
		t.Errorf("transition = %v", transitions[0])
	}
	if lifecycle["forfeiture_reinstatement_count"] != 1 {
		t.Errorf("forfeiture_reinstatement_count = %v, want 1",
			lifecycle["forfeiture_reinstatement_count"])
	}

	summary := result["summary"].(map[string]any)
	if summary["entities_in_lifecycle"] != 4 {
		t.Errorf("entities_in_lifecycle = %v, want 4", summary["entities_in_lifecycle"])
	}
}

func TestRiskScores_Composition(t *testing.T) {
	ids := []string{"a", "b"}
	isolation := map[string]any{"anomaly_scores": []float64{-0.5, 0.8}}
	dbscan := map[string]any{"cluster_labels": []int{-1, 0}}
	classification := map[string]any{
		"random_forest": map[string]any{
			"probabilities": [][]float64{{0.2, 0.8}, {0.6, 0.4}},
		},
	}
	network := map[string]any{"pagerank": map[string]float64{"a": 0.05, "b": 0.01}}

	scores := RiskScores(ids, isolation, dbscan, classification, network)

	// a: 0.75 anomaly + 0.3 noise + 0.8 max prob + 0.2 capped pagerank,
	// capped at 1.
	if scores["a"] != 1.0 {
		t.Errorf("scores[a] = %v, want 1.0", scores["a"])
	}
	// b: 0.1 anomaly + 0.6 max prob + 0.1 pagerank.
	if math.Abs(scores["b"]-0.8) > 1e-9 {
		t.Errorf("scores[b] = %v, want 0.8", scores["b"])
	}
}

func TestRiskScores_NoSignals(t *testing.T) {
	scores := RiskScores([]string{"x"}, map[string]any{}, map[string]any{}, map[string]any{}, nil)
	if scores["x"] != 0 {
		t.Errorf("scores[x] = %v, want 0 without any signal", scores["x"])
	}
}

func TestEngine_EmptyMatrix(t *testing.T) {
	engine := NewEngine(Options{}, nil)
	result := engine.Run(nil, nil, nil, nil)

	// An empty matrix keeps the bundle shape; the numeric methods each
	// degrade to a no-features error.
	clustering, ok := result["clustering_results"].(map[string]any)
	if !ok {
		t.Fatalf("clustering_results = %v", result["clustering_results"])
	}
	for _, method := range []string{"kmeans", "dbscan", "hierarchical"} {
		sub, ok := clustering[method].(map[string]any)
		if !ok || sub["error"] != "no features" {
			t.Errorf("%s = %v, want no-features error", method, clustering[method])
		}
	}

	anomaly, ok := result["anomaly_detection"].(map[string]any)
	if !ok {
		t.Fatalf("anomaly_detection = %v", result["anomaly_detection"])
	}
	iso, ok := anomaly["isolation_forest"].(map[string]any)
	if !ok || iso["error"] != "no features" {
		t.Errorf("isolation_forest = %v, want no-features error", anomaly["isolation_forest"])
	}

	reduction, ok := result["dimensionality_reduction"].(map[string]any)
	if !ok {
		t.Fatalf("dimensionality_reduction = %v", result["dimensionality_reduction"])
	}
	pca, ok := reduction["pca"].(map[string]any)
	if !ok || pca["error"] != "no features" {
		t.Errorf("pca = %v, want no-features error", reduction["pca"])
	}

	if cls, ok := result["classification"].(map[string]any); !ok || len(cls) != 0 {
		t.Errorf("classification = %v, want empty map", result["classification"])
	}
	if risk, ok := result["risk_scores"].(map[string]float64); !ok || len(risk) != 0 {
		t.Errorf("risk_scores = %v, want empty map", result["risk_scores"])
	}
	if _, ok := result["summary"]; !ok {
		t.Error("summary missing from empty bundle")
	}
}

func TestEngine_FullBundle(t *testing.T) {
	m := &features.Matrix{
		Rows: [][]float64{
			{1, 0, 3}, {1.1, 0, 3.2}, {0.9, 0, 2.8},
			{8, 1, 10}, {8.2, 1, 9.8}, {7.9, 1, 10.1},
		},
		EntityIDs: []string{"e1", "e2", "e3", "e4", "e5", "e6"},
		Names:     []string{"f0", "f1", "f2"},
	}
	entities := []*records.Entity{
		{FilingNumber: "e1", OriginalFilingDate: "2015-01-01", Status: "In Existence"},
		{FilingNumber: "e2", OriginalFilingDate: "2020-06-01", Status: "Forfeited Existence"},
	}
	violations := map[string][]records.Violation{
		"Late Filing": {
			{FilingNumber: "e1", FilingDate: "2020-03-01"},
			{FilingNumber: "e2", FilingDate: "2021-03-01"},
		},
	}
	graph := &records.Graph{
		Nodes: []records.GraphNode{{ID: "e1"}, {ID: "e2"}},
		Edges: []records.GraphEdge{{Source: "e1", Target: "e2", Relation: "shared_agent"}},
	}

	engine := NewEngine(Options{}, nil)
	engine.SetClock(testNow)
	result := engine.Run(m, entities, violations, graph)

	for _, key := range []string{
		"clustering_results", "anomaly_detection", "classification",
		"network_analysis", "dimensionality_reduction", "time_series_analysis",
		"risk_scores", "visualizations", "feature_normalization",
		"summary", "metadata",
	} {
		if _, ok := result[key]; !ok {
			t.Errorf("missing bundle key %q", key)
		}
	}

	clustering := result["clustering_results"].(map[string]any)
	spectral := clustering["spectral"].(map[string]any)
	if spectral["error"] != "Spectral clustering not available" {
		t.Errorf("spectral = %v", spectral)
	}

	anomaly := result["anomaly_detection"].(map[string]any)
	if _, ok := anomaly["one_class_svm"].(map[string]any)["error"]; !ok {
		t.Errorf("one_class_svm should carry an error result")
	}

	classification := result["classification"].(map[string]any)
	if _, ok := classification["random_forest"]; !ok {
		t.Errorf("random_forest missing with two label classes present")
	}
	if _, ok := classification["xgboost"].(map[string]any)["error"]; !ok {
		t.Errorf("xgboost should carry an error result")
	}

	risk := result["risk_scores"].(map[string]float64)
	if len(risk) != 6 {
		t.Fatalf("risk scores for %d entities, want 6", len(risk))
	}
	for id, score := range risk {
		if score < 0 || score > 1 {
			t.Errorf("risk[%s] = %v outside [0, 1]", id, score)
		}
	}

	summary := result["summary"].(map[string]any)
	if summary["total_entities"] != 6 || summary["n_features"] != 3 {
		t.Errorf("summary = %v", summary)
	}

	norm := result["feature_normalization"].(map[string]any)
	if len(norm["mean"].([]float64)) != 3 || len(norm["std"].([]float64)) != 3 {
		t.Errorf("normalization stats have wrong width")
	}
}

func TestEngine_SingleClassSkipsClassification(t *testing.T) {
	m := &features.Matrix{
		Rows:      [][]float64{{1, 2}, {3, 4}, {5, 6}},
		EntityIDs: []string{"a", "b", "c"},
		Names:     []string{"f0", "f1"},
	}
	engine := NewEngine(Options{}, nil)
	engine.SetClock(testNow)

	result := engine.Run(m, nil, nil, nil)
	classification := result["classification"].(map[string]any)
	if len(classification) != 0 {
		t.Errorf("classification = %v, want empty map for single class", classification)
	}
}
