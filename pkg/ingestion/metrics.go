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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsIngestion holds Prometheus metrics for the ingestion subsystem.
type metricsIngestion struct {
	once sync.Once

	// Sources
	pagesExtracted prometheus.Counter
	pageErrors     prometheus.Counter
	entitiesParsed prometheus.Counter
	rowsLoaded     prometheus.Counter

	// Decomposition
	childrenEmitted prometheus.Counter
	leavesWritten   prometheus.Counter
	anomaliesFound  prometheus.Counter

	// Embeddings
	embedComputed prometheus.Counter
	embedSkipped  prometheus.Counter
	embedErrors   prometheus.Counter
	embedRetries  prometheus.Counter

	// Vector store
	vectorsUpserted prometheus.Counter

	// Durations
	extractDuration  prometheus.Histogram
	parseDuration    prometheus.Histogram
	embedDuration    prometheus.Histogram
	writeDuration    prometheus.Histogram
	analysisDuration prometheus.Histogram
	totalDuration    prometheus.Histogram
}

var ingMetrics metricsIngestion

func (m *metricsIngestion) init() {
	m.once.Do(func() {
		m.pagesExtracted = prometheus.NewCounter(prometheus.CounterOpts{Name: "rie_ing_pages_extracted_total", Help: "PDF pages extracted"})
		m.pageErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "rie_ing_page_errors_total", Help: "PDF pages that failed extraction"})
		m.entitiesParsed = prometheus.NewCounter(prometheus.CounterOpts{Name: "rie_ing_entities_parsed_total", Help: "Entities parsed from filing exports"})
		m.rowsLoaded = prometheus.NewCounter(prometheus.CounterOpts{Name: "rie_ing_rows_loaded_total", Help: "Rows loaded from tabular sources"})

		m.childrenEmitted = prometheus.NewCounter(prometheus.CounterOpts{Name: "rie_ing_children_emitted_total", Help: "Child documents emitted by decomposition"})
		m.leavesWritten = prometheus.NewCounter(prometheus.CounterOpts{Name: "rie_ing_leaves_written_total", Help: "Leaf JSON documents written"})
		m.anomaliesFound = prometheus.NewCounter(prometheus.CounterOpts{Name: "rie_ing_anomalies_found_total", Help: "Page anomalies detected"})

		m.embedComputed = prometheus.NewCounter(prometheus.CounterOpts{Name: "rie_ing_embeddings_computed_total", Help: "Embeddings computed"})
		m.embedSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "rie_ing_embeddings_skipped_total", Help: "Embeddings reused from the vector store"})
		m.embedErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "rie_ing_embeddings_errors_total", Help: "Embedding provider errors"})
		m.embedRetries = prometheus.NewCounter(prometheus.CounterOpts{Name: "rie_ing_embeddings_retries_total", Help: "Embedding retries"})

		m.vectorsUpserted = prometheus.NewCounter(prometheus.CounterOpts{Name: "rie_ing_vectors_upserted_total", Help: "Vectors upserted into the store"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
		m.extractDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "rie_ing_extract_seconds", Help: "PDF extraction duration", Buckets: buckets})
		m.parseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "rie_ing_parse_seconds", Help: "Filing export parse duration", Buckets: buckets})
		m.embedDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "rie_ing_embed_seconds", Help: "Embedding duration", Buckets: buckets})
		m.writeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "rie_ing_write_seconds", Help: "Index write duration", Buckets: buckets})
		m.analysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "rie_ing_analysis_seconds", Help: "Analysis stage duration", Buckets: buckets})
		m.totalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "rie_ing_total_seconds", Help: "Total run duration", Buckets: buckets})

		prometheus.MustRegister(
			m.pagesExtracted, m.pageErrors, m.entitiesParsed, m.rowsLoaded,
			m.childrenEmitted, m.leavesWritten, m.anomaliesFound,
			m.embedComputed, m.embedSkipped, m.embedErrors, m.embedRetries,
			m.vectorsUpserted,
			m.extractDuration, m.parseDuration, m.embedDuration,
			m.writeDuration, m.analysisDuration, m.totalDuration,
		)
	})
}

// record helpers - used by the pipeline for metrics tracking
func recordPageExtracted()  { ingMetrics.init(); ingMetrics.pagesExtracted.Inc() }
func recordPageError()      { ingMetrics.init(); ingMetrics.pageErrors.Inc() }
func recordEntityParsed()   { ingMetrics.init(); ingMetrics.entitiesParsed.Inc() }
func recordRowLoaded()      { ingMetrics.init(); ingMetrics.rowsLoaded.Inc() }
func recordChildEmitted()   { ingMetrics.init(); ingMetrics.childrenEmitted.Inc() }
func recordLeafWritten()    { ingMetrics.init(); ingMetrics.leavesWritten.Inc() }
func recordAnomaly()        { ingMetrics.init(); ingMetrics.anomaliesFound.Inc() }
func recordEmbedComputed()  { ingMetrics.init(); ingMetrics.embedComputed.Inc() }
func recordEmbedSkipped()   { ingMetrics.init(); ingMetrics.embedSkipped.Inc() }
func recordEmbedError()     { ingMetrics.init(); ingMetrics.embedErrors.Inc() }
func recordEmbedRetry()     { ingMetrics.init(); ingMetrics.embedRetries.Inc() }
func recordVectorUpserted() { ingMetrics.init(); ingMetrics.vectorsUpserted.Inc() }

func observeExtract(seconds float64)  { ingMetrics.init(); ingMetrics.extractDuration.Observe(seconds) }
func observeParse(seconds float64)    { ingMetrics.init(); ingMetrics.parseDuration.Observe(seconds) }
func observeEmbed(seconds float64)    { ingMetrics.init(); ingMetrics.embedDuration.Observe(seconds) }
func observeWrite(seconds float64)    { ingMetrics.init(); ingMetrics.writeDuration.Observe(seconds) }
func observeAnalysis(seconds float64) { ingMetrics.init(); ingMetrics.analysisDuration.Observe(seconds) }
func observeTotal(seconds float64)    { ingMetrics.init(); ingMetrics.totalDuration.Observe(seconds) }
