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

	"github.com/kraklabs/rie/pkg/records"
)

// twoBlobs returns five points near the origin followed by five near
// (10, 10).
func twoBlobs() [][]float64 {
	var x [][]float64
	for i := 0; i < 5; i++ {
		x = append(x, []float64{float64(i) * 0.1, float64(i) * 0.1})
	}
	for i := 0; i < 5; i++ {
		x = append(x, []float64{10 + float64(i)*0.1, 10 + float64(i)*0.1})
	}
	return x
}

func TestKMeans_SeparatesBlobs(t *testing.T) {
	result := KMeans(twoBlobs(), 2)
	if _, ok := result["error"]; ok {
		t.Fatalf("unexpected error: %v", result["error"])
	}

	labels := result["cluster_labels"].([]int)
	for i := 1; i < 5; i++ {
		if labels[i] != labels[0] {
			t.Errorf("first blob split: labels=%v", labels)
		}
	}
	for i := 6; i < 10; i++ {
		if labels[i] != labels[5] {
			t.Errorf("second blob split: labels=%v", labels)
		}
	}
	if labels[0] == labels[5] {
		t.Errorf("blobs merged into one cluster: labels=%v", labels)
	}

	if s := result["silhouette_score"].(float64); s < 0.8 {
		t.Errorf("silhouette = %v, want > 0.8 for well separated blobs", s)
	}
}

func TestKMeans_AutoSelectsK(t *testing.T) {
	result := KMeans(twoBlobs(), 0)
	if _, ok := result["error"]; ok {
		t.Fatalf("unexpected error: %v", result["error"])
	}
	if k := result["n_clusters"].(int); k != 2 {
		t.Errorf("n_clusters = %d, want 2 for two blobs", k)
	}
}

func TestKMeans_Deterministic(t *testing.T) {
	a := KMeans(twoBlobs(), 2)
	b := KMeans(twoBlobs(), 2)
	la, lb := a["cluster_labels"].([]int), b["cluster_labels"].([]int)
	for i := range la {
		if la[i] != lb[i] {
			t.Fatalf("labels differ between runs: %v vs %v", la, lb)
		}
	}
	if a["inertia"].(float64) != b["inertia"].(float64) {
		t.Errorf("inertia differs between runs")
	}
}

func TestKMeans_Empty(t *testing.T) {
	result := KMeans(nil, 2)
	if result["error"] != "no features" {
		t.Errorf("error = %v, want %q", result["error"], "no features")
	}
}

func TestFindOptimalK_TooFewSamples(t *testing.T) {
	result := FindOptimalK([][]float64{{1}, {2}}, 10)
	if _, ok := result["error"]; !ok {
		t.Errorf("expected error for 2 samples, got %v", result)
	}
}

func TestDBSCAN_FlagsOutlier(t *testing.T) {
	x := [][]float64{
		{0, 0}, {0.1, 0}, {0.2, 0},
		{100, 100},
	}
	result := DBSCAN(x, 0.5, 2)

	if n := result["n_noise"].(int); n != 1 {
		t.Errorf("n_noise = %d, want 1", n)
	}
	outliers := result["outliers"].([]int)
	if len(outliers) != 1 || outliers[0] != 3 {
		t.Errorf("outliers = %v, want [3]", outliers)
	}
	labels := result["cluster_labels"].([]int)
	if labels[3] != -1 {
		t.Errorf("outlier label = %d, want -1", labels[3])
	}
	if result["n_clusters"].(int) != 1 {
		t.Errorf("n_clusters = %v, want 1", result["n_clusters"])
	}
}

func TestDBSCAN_NoOutliers(t *testing.T) {
	x := [][]float64{{0, 0}, {0.1, 0}, {0.2, 0}}
	result := DBSCAN(x, 0.5, 2)
	outliers := result["outliers"].([]int)
	if outliers == nil || len(outliers) != 0 {
		t.Errorf("outliers = %#v, want empty non-nil slice", outliers)
	}
}

func TestHierarchical_SeparatesBlobs(t *testing.T) {
	result := Hierarchical(twoBlobs(), 2)
	labels := result["cluster_assignments"].([]int)
	if labels[0] == labels[5] {
		t.Errorf("blobs merged: %v", labels)
	}
	for i := 1; i < 5; i++ {
		if labels[i] != labels[0] {
			t.Errorf("first blob split: %v", labels)
		}
	}
	if result["n_clusters"].(int) != 2 {
		t.Errorf("n_clusters = %v, want 2", result["n_clusters"])
	}
}

func TestIsolationForest_FlagsOutlier(t *testing.T) {
	var x [][]float64
	for i := 0; i < 20; i++ {
		x = append(x, []float64{float64(i%5) * 0.01, float64(i/5) * 0.01})
	}
	x = append(x, []float64{10, 10})
	outlier := len(x) - 1

	result := IsolationForest(x, 0.1)
	scores := result["anomaly_scores"].([]float64)
	labels := result["anomaly_labels"].([]int)

	for i, s := range scores {
		if s >= 0 || s <= -1 {
			t.Errorf("score[%d] = %v, want within (-1, 0)", i, s)
		}
	}
	if labels[outlier] != -1 {
		t.Errorf("outlier label = %d, want -1", labels[outlier])
	}
	for i, s := range scores {
		if i != outlier && s < scores[outlier] {
			t.Errorf("score[%d] = %v below outlier score %v", i, s, scores[outlier])
		}
	}
	if result["n_anomalies"].(int) != len(result["anomalies_detected"].([]int)) {
		t.Errorf("n_anomalies disagrees with anomalies_detected")
	}
}

func TestLOF_FlagsOutlier(t *testing.T) {
	x := [][]float64{
		{0, 0}, {0.1, 0}, {0, 0.1}, {0.1, 0.1},
		{10, 10},
	}
	result := LOF(x, 3)
	labels := result["anomaly_labels"].([]int)
	if labels[4] != -1 {
		t.Errorf("outlier label = %d, want -1", labels[4])
	}
	for i := 0; i < 4; i++ {
		if labels[i] != 1 {
			t.Errorf("inlier %d label = %d, want 1", i, labels[i])
		}
	}
}

func TestLOF_TooFewSamples(t *testing.T) {
	result := LOF([][]float64{{1, 2}}, 3)
	if _, ok := result["error"]; !ok {
		t.Errorf("expected error for single sample, got %v", result)
	}
}

func TestRandomForest_SeparableData(t *testing.T) {
	x := [][]float64{
		{-3, 1}, {-2, 0}, {-1, 1},
		{5, 0}, {6, 1}, {7, 0},
	}
	labels := []int{0, 0, 0, 1, 1, 1}

	result := RandomForest(x, labels)
	if _, ok := result["error"]; ok {
		t.Fatalf("unexpected error: %v", result["error"])
	}
	if acc := result["accuracy"].(float64); acc != 1.0 {
		t.Errorf("training accuracy = %v, want 1.0 on separable data", acc)
	}

	probs := result["probabilities"].([][]float64)
	for i, row := range probs {
		var sum float64
		for _, p := range row {
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("probabilities[%d] sum = %v, want 1", i, sum)
		}
	}

	importance := result["feature_importance"].(map[string]float64)
	if importance["feature_0"] <= importance["feature_1"] {
		t.Errorf("feature_0 importance %v not above feature_1 %v",
			importance["feature_0"], importance["feature_1"])
	}
}

func TestRandomForest_SingleClass(t *testing.T) {
	result := RandomForest([][]float64{{1}, {2}}, []int{1, 1})
	if result["error"] != "Need at least 2 classes for classification" {
		t.Errorf("error = %v", result["error"])
	}
}

func TestAnalyzeNetwork_Path(t *testing.T) {
	g := &records.Graph{
		Nodes: []records.GraphNode{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []records.GraphEdge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "c"},
		},
	}
	result := AnalyzeNetwork(g)

	if result["n_nodes"].(int) != 3 || result["n_edges"].(int) != 2 {
		t.Fatalf("n_nodes/n_edges = %v/%v", result["n_nodes"], result["n_edges"])
	}

	pr := result["pagerank"].(map[string]float64)
	var sum float64
	for _, v := range pr {
		sum += v
	}
	if math.Abs(sum-1) > 1e-4 {
		t.Errorf("pagerank sum = %v, want 1", sum)
	}
	if pr["b"] <= pr["a"] {
		t.Errorf("pagerank: center %v not above leaf %v", pr["b"], pr["a"])
	}

	deg := result["degree_centrality"].(map[string]float64)
	if deg["b"] != 1.0 || deg["a"] != 0.5 {
		t.Errorf("degree centrality = %v", deg)
	}

	bet := result["betweenness_centrality"].(map[string]float64)
	if math.Abs(bet["b"]-1.0) > 1e-9 {
		t.Errorf("betweenness[b] = %v, want 1.0", bet["b"])
	}
	if bet["a"] != 0 {
		t.Errorf("betweenness[a] = %v, want 0", bet["a"])
	}
}

func TestAnalyzeNetwork_Communities(t *testing.T) {
	g := &records.Graph{
		Edges: []records.GraphEdge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "c"},
			{Source: "a", Target: "c"},
			{Source: "d", Target: "e"},
		},
	}
	result := AnalyzeNetwork(g)

	communities := result["communities"].([][]string)
	if len(communities) != 2 {
		t.Fatalf("communities = %v, want triangle and pair", communities)
	}
	if len(communities[0]) != 3 || communities[0][0] != "a" {
		t.Errorf("largest community = %v, want [a b c]", communities[0])
	}
	if len(communities[1]) != 2 || communities[1][0] != "d" {
		t.Errorf("second community = %v, want [d e]", communities[1])
	}
	if result["n_communities"].(int) != 2 {
		t.Errorf("n_communities = %v, want 2", result["n_communities"])
	}
}

func TestAnalyzeNetwork_Empty(t *testing.T) {
	if result := AnalyzeNetwork(nil); result["error"] != "Empty graph" {
		t.Errorf("nil graph error = %v, want %q", result["error"], "Empty graph")
	}
	if result := AnalyzeNetwork(&records.Graph{}); result["error"] != "Empty graph" {
		t.Errorf("empty graph error = %v, want %q", result["error"], "Empty graph")
	}
}

func TestPCA_LinearData(t *testing.T) {
	var x [][]float64
	for i := 0; i < 10; i++ {
		x = append(x, []float64{float64(i), 2 * float64(i)})
	}
	result := PCA(x, 2)

	ratios := result["explained_variance_ratio"].([]float64)
	if ratios[0] < 0.999 {
		t.Errorf("first component ratio = %v, want ~1 for collinear data", ratios[0])
	}
	cumulative := result["cumulative_variance"].([]float64)
	if math.Abs(cumulative[len(cumulative)-1]-1) > 1e-6 {
		t.Errorf("cumulative variance = %v, want 1", cumulative)
	}

	transformed := result["transformed_features"].([][]float64)
	if len(transformed) != 10 || len(transformed[0]) != 2 {
		t.Errorf("transformed shape = %dx%d, want 10x2", len(transformed), len(transformed[0]))
	}
}

func TestPCA_ClampsComponents(t *testing.T) {
	x := [][]float64{{1, 2, 3}, {4, 5, 6}}
	result := PCA(x, 5)
	transformed := result["transformed_features"].([][]float64)
	if len(transformed[0]) != 2 {
		t.Errorf("components = %d, want clamped to 2 samples", len(transformed[0]))
	}
}
