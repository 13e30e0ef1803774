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

// Package analysis implements the statistical and machine learning
// stage of the ingestion pipeline: clustering, anomaly detection,
// classification, network centrality, dimensionality reduction, time
// series aggregation, and composite risk scoring over the entity
// feature matrix. Every method is deterministic under a fixed seed so
// repeated runs over the same input produce identical bundles.
package analysis

import (
	"log/slog"
	"time"

	"github.com/kraklabs/rie/pkg/features"
	"github.com/kraklabs/rie/pkg/records"
)

// Options tune the individual analysis methods. Zero values select the
// defaults used throughout.
type Options struct {
	Contamination    float64 // isolation forest label fraction
	DBSCANEps        float64
	DBSCANMinSamples int
	LOFNeighbors     int
	PCAComponents    int
	MaxK             int // upper bound for cluster count selection
}

func (o *Options) applyDefaults() {
	if o.Contamination <= 0 {
		o.Contamination = 0.1
	}
	if o.DBSCANEps <= 0 {
		o.DBSCANEps = 0.5
	}
	if o.DBSCANMinSamples <= 0 {
		o.DBSCANMinSamples = 2
	}
	if o.LOFNeighbors <= 0 {
		o.LOFNeighbors = 20
	}
	if o.PCAComponents <= 0 {
		o.PCAComponents = 2
	}
	if o.MaxK <= 0 {
		o.MaxK = 10
	}
}

// Engine runs every analysis method over a feature matrix and
// assembles the results into a single bundle. Methods degrade
// independently: a failure in one is recorded under its key as an
// error result without aborting the rest.
type Engine struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	opts.applyDefaults()
	return &Engine{opts: opts, logger: logger, now: time.Now}
}

// SetClock overrides the time source for deterministic output.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Run executes the full analysis over the feature matrix. The
// violations map is keyed by violation category; the graph may be nil
// when no relationships were found. An empty matrix still yields the
// full bundle shape: each numeric sub-result degrades to a
// "no features" error on its own.
func (e *Engine) Run(m *features.Matrix, entities []*records.Entity, violations map[string][]records.Violation, graph *records.Graph) map[string]any {
	if m == nil {
		m = &features.Matrix{}
	}

	normalized, mean, std := features.Normalize(m.Rows)

	kmeans := KMeans(normalized, 0)
	dbscan := DBSCAN(normalized, e.opts.DBSCANEps, e.opts.DBSCANMinSamples)
	nClusters := 3
	if k, ok := kmeans["n_clusters"].(int); ok && k > 1 {
		nClusters = k
	}
	clustering := map[string]any{
		"kmeans":       kmeans,
		"dbscan":       dbscan,
		"hierarchical": Hierarchical(normalized, nClusters),
		"spectral":     errResult("Spectral clustering not available"),
	}

	isolation := IsolationForest(normalized, e.opts.Contamination)
	anomaly := map[string]any{
		"isolation_forest": isolation,
		"lof":              LOF(normalized, e.opts.LOFNeighbors),
		"one_class_svm":    errResult("One-class SVM not available"),
	}

	classification := map[string]any{}
	labels := violationLabels(m.EntityIDs, violations)
	if distinctLabels(labels) >= 2 {
		classification["random_forest"] = RandomForest(normalized, labels)
		classification["xgboost"] = errResult("XGBoost not available")
	} else {
		e.logger.Debug("analysis.classification.skipped", "reason", "single class")
	}

	network := AnalyzeNetwork(graph)

	reduction := map[string]any{
		"pca":  PCA(normalized, e.opts.PCAComponents),
		"umap": errResult("UMAP not available"),
	}

	timeSeries := TimeSeries(entities, violations, e.now())
	risk := RiskScores(m.EntityIDs, isolation, dbscan, classification, network)

	bundle := map[string]any{
		"clustering_results":       clustering,
		"anomaly_detection":        anomaly,
		"classification":           classification,
		"network_analysis":         network,
		"dimensionality_reduction": reduction,
		"time_series_analysis":     timeSeries,
		"risk_scores":              risk,
		"visualizations":           errResult("Visualization backend not available"),
		"feature_normalization": map[string]any{
			"mean": mean,
			"std":  std,
		},
		"summary": e.summarize(m, kmeans, isolation, network, timeSeries),
		"metadata": map[string]any{
			"created":     e.now().UTC().Format(time.RFC3339),
			"random_seed": randomSeed,
		},
	}

	e.logger.Info("analysis.complete",
		"entities", len(m.EntityIDs),
		"features", len(m.Names))
	return bundle
}

func (e *Engine) summarize(m *features.Matrix, kmeans, isolation, network, timeSeries map[string]any) map[string]any {
	summary := map[string]any{
		"total_entities":         len(m.EntityIDs),
		"n_features":             len(m.Names),
		"n_clusters_kmeans":      0,
		"n_anomalies":            0,
		"n_communities":          0,
		"time_series_violations": 0,
	}
	if k, ok := kmeans["n_clusters"].(int); ok {
		summary["n_clusters_kmeans"] = k
	}
	if n, ok := isolation["n_anomalies"].(int); ok {
		summary["n_anomalies"] = n
	}
	if n, ok := network["n_communities"].(int); ok {
		summary["n_communities"] = n
	}
	if ts, ok := timeSeries["summary"].(map[string]any); ok {
		if n, ok := ts["total_violations_over_time"].(int); ok {
			summary["time_series_violations"] = n
		}
	}
	return summary
}

// violationLabels marks each entity 1 when any violation across any
// category names its filing number, 0 otherwise.
func violationLabels(entityIDs []string, violations map[string][]records.Violation) []int {
	flagged := make(map[string]bool)
	for _, list := range violations {
		for _, v := range list {
			flagged[v.FilingNumber] = true
		}
	}
	labels := make([]int, len(entityIDs))
	for i, id := range entityIDs {
		if flagged[id] {
			labels[i] = 1
		}
	}
	return labels
}
