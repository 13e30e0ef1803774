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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kraklabs/rie/pkg/analysis"
	"github.com/kraklabs/rie/pkg/features"
	"github.com/kraklabs/rie/pkg/records"
	"github.com/kraklabs/rie/pkg/vectorstore"
)

// pageSourceTag namespaces PDF page content ids apart from the
// decomposed child kinds.
const pageSourceTag = "pdf_page"

// PipelineConfig selects the input sources and output location of one
// ingestion run. At least one source must be set.
type PipelineConfig struct {
	ProjectID     string
	FilingExport  string   // structured text export, optional
	PDFs          []string // PDF documents, optional
	Tabular       []string // JSON/CSV registration dumps, optional
	OutputDir     string
	CheckpointDir string
	PageWorkers   int // 0 selects DefaultPageWorkers
}

// RunSummary reports what one pipeline run produced.
type RunSummary struct {
	ProjectID          string        `json:"project_id"`
	Entities           int           `json:"entities"`
	Children           int           `json:"children"`
	PDFs               int           `json:"pdfs"`
	Pages              int           `json:"pages"`
	PageErrors         int           `json:"page_errors"`
	Anomalies          int           `json:"anomalies"`
	Violations         int           `json:"violations"`
	EmbeddingsComputed int           `json:"embeddings_computed"`
	EmbeddingsReused   int           `json:"embeddings_reused"`
	Duration           time.Duration `json:"-"`
}

// Pipeline orchestrates a full ingestion run: parse the sources,
// decompose entities into leaf documents, embed and index everything,
// then run the analysis stage. Individual pages, records, and analysis
// methods degrade on failure; only missing inputs, an unusable output
// directory, or an embedder that cannot load abort the run.
type Pipeline struct {
	cfg      PipelineConfig
	logger   *slog.Logger
	embedder *Embedder

	parser     *FilingExportParser
	loader     *TabularLoader
	extractor  *PageExtractor
	decomposer *RecursiveDecomposer
	detector   *AnomalyDetector

	now func() time.Time
}

// NewPipeline validates the configuration and assembles the run.
func NewPipeline(cfg PipelineConfig, embedder *Embedder, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if cfg.FilingExport == "" && len(cfg.PDFs) == 0 && len(cfg.Tabular) == 0 {
		return nil, fmt.Errorf("no input sources configured")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.ProjectID == "" {
		cfg.ProjectID = "rie"
	}
	if cfg.PageWorkers <= 0 {
		cfg.PageWorkers = DefaultPageWorkers()
	}

	return &Pipeline{
		cfg:        cfg,
		logger:     logger,
		embedder:   embedder,
		parser:     NewFilingExportParser(logger),
		loader:     NewTabularLoader(logger),
		extractor:  NewPageExtractor(logger),
		decomposer: NewRecursiveDecomposer(logger),
		detector:   NewAnomalyDetector(DefaultAnomalyConfig()),
		now:        time.Now,
	}, nil
}

// SetClock overrides the time source for deterministic output.
func (p *Pipeline) SetClock(now func() time.Time) { p.now = now }

// Run executes the pipeline. The master index is written last, so its
// presence marks a completed run.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	defer func() { observeTotal(time.Since(start).Seconds()) }()

	if err := p.checkInputs(); err != nil {
		return nil, err
	}

	model, err := p.embedder.Model()
	if err != nil {
		return nil, fmt.Errorf("embedding provider unavailable: %w", err)
	}
	dim, err := p.embedder.Dimension()
	if err != nil {
		return nil, fmt.Errorf("embedding provider unavailable: %w", err)
	}

	source := p.cfg.ProjectID
	if p.cfg.FilingExport != "" {
		source = filepath.Base(p.cfg.FilingExport)
	}
	writer, err := NewIndexWriter(p.cfg.OutputDir, source, p.logger)
	if err != nil {
		return nil, err
	}
	writer.SetClock(p.now)

	store, err := vectorstore.Open(filepath.Join(p.cfg.OutputDir, "vector_store"), dim, p.embedder, p.logger)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	store.SetClock(p.now)
	defer store.Close()

	cm := NewCheckpointManager(p.cfg.CheckpointDir)
	cp, err := cm.LoadCheckpoint(p.cfg.ProjectID)
	if err != nil {
		p.logger.Warn("ingest.checkpoint.load.failed", "error", err)
	}
	if cp == nil {
		cp = &Checkpoint{
			ProjectID:    p.cfg.ProjectID,
			SourceHashes: make(map[string]string),
			StartTime:    p.now().UTC().Format(time.RFC3339),
		}
	}

	// A completed PDF whose content changed since the checkpoint must
	// be reprocessed, so drop it from the completed list first.
	if delta, err := DetectSourceChanges(p.sourcePaths(), cp.SourceHashes); err != nil {
		p.logger.Warn("ingest.source.hash.failed", "error", err)
	} else {
		for _, path := range p.cfg.PDFs {
			name := documentName(path)
			if delta.Changed(path) && cp.HasPDF(name) {
				p.logger.Info("ingest.pdf.changed", "pdf", name)
				cp.DropPDF(name)
			}
		}
		cp.SourceHashes = delta.Hashes
	}

	summary := &RunSummary{ProjectID: p.cfg.ProjectID}

	entities, err := p.loadEntities(summary)
	if err != nil {
		return nil, err
	}

	if len(entities) > 0 {
		if err := p.decomposeEntities(ctx, entities, writer, store, summary); err != nil {
			return nil, err
		}
		if err := writer.WriteEntityIndex(p.entitySourceFile(), model, dim); err != nil {
			return nil, err
		}
		cp.FilingsDone = true
	}

	for _, path := range p.cfg.PDFs {
		name := documentName(path)
		if cp.HasPDF(name) {
			// The master index lists every PDF, including ones this
			// run skips; recover the entry from the prior run's
			// per-document index. A missing index means the output
			// tree was pruned, so reprocess instead.
			err := writer.ReloadDocumentIndex(name)
			if err == nil {
				p.logger.Info("ingest.pdf.skipped", "pdf", name, "reason", "checkpoint")
				continue
			}
			p.logger.Warn("ingest.pdf.index.missing", "pdf", name, "error", err)
			cp.DropPDF(name)
		}
		if err := p.processPDF(ctx, path, name, writer, store, summary); err != nil {
			p.logger.Error("ingest.pdf.failed", "pdf", name, "error", err)
			continue
		}
		cp.CompletedPDFs = append(cp.CompletedPDFs, name)
		cp.LastUpdateTime = p.now().UTC().Format(time.RFC3339)
		if err := cm.SaveCheckpoint(cp); err != nil {
			p.logger.Warn("ingest.checkpoint.save.failed", "error", err)
		}
	}

	p.runAnalysis(entities, writer, summary)

	if err := store.Close(); err != nil {
		p.logger.Warn("ingest.vectorstore.close.failed", "error", err)
	}

	if err := writer.WriteMasterIndex(model, dim); err != nil {
		return nil, err
	}

	cp.EntitiesProcessed = summary.Entities
	cp.ChildrenWritten = summary.Children
	cp.EmbeddingsComputed = summary.EmbeddingsComputed
	cp.LastUpdateTime = p.now().UTC().Format(time.RFC3339)
	if err := cm.SaveCheckpoint(cp); err != nil {
		p.logger.Warn("ingest.checkpoint.save.failed", "error", err)
	}

	summary.Duration = time.Since(start)
	p.logger.Info("ingest.run.complete",
		"entities", summary.Entities,
		"children", summary.Children,
		"pages", summary.Pages,
		"embeddings_computed", summary.EmbeddingsComputed,
		"embeddings_reused", summary.EmbeddingsReused,
		"duration", summary.Duration)
	return summary, nil
}

// sourcePaths lists every configured input source.
func (p *Pipeline) sourcePaths() []string {
	var paths []string
	if p.cfg.FilingExport != "" {
		paths = append(paths, p.cfg.FilingExport)
	}
	paths = append(paths, p.cfg.PDFs...)
	paths = append(paths, p.cfg.Tabular...)
	return paths
}

// checkInputs verifies every configured source exists before any
// output is written.
func (p *Pipeline) checkInputs() error {
	for _, path := range p.sourcePaths() {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("input source %s: %w", path, err)
		}
	}
	return nil
}

// loadEntities parses the filing export and tabular sources into one
// merged entity list keyed by filing number, preserving first-seen
// order.
func (p *Pipeline) loadEntities(summary *RunSummary) ([]*records.Entity, error) {
	byFiling := make(map[string]*records.Entity)
	var ordered []*records.Entity

	merge := func(e *records.Entity) {
		if e == nil || e.FilingNumber == "" {
			return
		}
		if existing, ok := byFiling[e.FilingNumber]; ok {
			existing.Merge(e)
			return
		}
		byFiling[e.FilingNumber] = e
		ordered = append(ordered, e)
	}

	if p.cfg.FilingExport != "" {
		parseStart := time.Now()
		f, err := os.Open(p.cfg.FilingExport)
		if err != nil {
			return nil, fmt.Errorf("open filing export: %w", err)
		}
		parsed, err := p.parser.Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse filing export: %w", err)
		}
		for _, e := range parsed {
			recordEntityParsed()
			merge(e)
		}
		observeParse(time.Since(parseStart).Seconds())
	}

	for _, path := range p.cfg.Tabular {
		rows, err := p.loader.Load(path)
		if err != nil {
			p.logger.Error("ingest.tabular.failed", "path", path, "error", err)
			continue
		}
		for _, row := range rows {
			recordRowLoaded()
			merge(ToEntity(row))
		}
	}

	summary.Entities = len(ordered)
	return ordered, nil
}

// decomposeEntities turns each entity into its child documents, embeds
// every text representation (reusing stored vectors by content id),
// and writes the leaves.
func (p *Pipeline) decomposeEntities(ctx context.Context, entities []*records.Entity, writer *IndexWriter, store *vectorstore.Store, summary *RunSummary) error {
	for _, e := range entities {
		children := p.decomposer.Decompose(e)

		// Embed only texts the store has not seen.
		var pending []int
		var texts []string
		vectors := make([][]float32, len(children))
		for i, child := range children {
			recordChildEmitted()
			if vec, ok := store.Vector(child.ID); ok {
				vectors[i] = vec
				summary.EmbeddingsReused++
				recordEmbedSkipped()
				continue
			}
			pending = append(pending, i)
			texts = append(texts, child.Text)
		}

		if len(texts) > 0 {
			embedStart := time.Now()
			rows, err := p.embedder.Embed(ctx, texts)
			if err != nil {
				return fmt.Errorf("embed entity %s: %w", e.FilingNumber, err)
			}
			observeEmbed(time.Since(embedStart).Seconds())
			for j, i := range pending {
				vectors[i] = rows[j]
				summary.EmbeddingsComputed++
				recordEmbedComputed()
			}
		}

		for i, child := range children {
			if _, err := store.Upsert(ctx, child.ID, child.Kind, child.Text, vectors[i], map[string]any{
				"filing_number": child.FilingNumber,
				"kind":          child.Kind,
			}); err != nil {
				return fmt.Errorf("upsert %s: %w", child.ID, err)
			}
			recordVectorUpserted()

			writeStart := time.Now()
			if err := writer.WriteChild(child, vectors[i]); err != nil {
				return fmt.Errorf("write child %s: %w", child.Key, err)
			}
			observeWrite(time.Since(writeStart).Seconds())
			recordLeafWritten()
			summary.Children++
		}
	}
	return nil
}

// processPDF extracts one document's pages and fans page processing
// (anomaly detection, embedding, leaf writes) across the worker pool.
func (p *Pipeline) processPDF(ctx context.Context, path, name string, writer *IndexWriter, store *vectorstore.Store, summary *RunSummary) error {
	extractStart := time.Now()
	pages, err := p.extractor.ExtractPages(path)
	if err != nil {
		return err
	}
	observeExtract(time.Since(extractStart).Seconds())

	entries := make([]*PageIndexEntry, len(pages))
	jobs := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex // guards summary counters

	workers := p.cfg.PageWorkers
	if workers > len(pages) {
		workers = len(pages)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				page := pages[i]
				anomalies := p.detector.Detect(name, page.PageNumber, page.Text)
				for range anomalies {
					recordAnomaly()
				}

				var vec []float32
				contentID := ContentID(pageSourceTag, page.Text)
				if stored, ok := store.Vector(contentID); ok {
					vec = stored
					recordEmbedSkipped()
				} else {
					rows, err := p.embedder.Embed(ctx, []string{page.Text})
					if err != nil {
						p.logger.Error("ingest.pdf.page.error", "pdf", name, "page", page.PageNumber, "error", err)
						recordPageError()
						mu.Lock()
						summary.PageErrors++
						mu.Unlock()
						continue
					}
					vec = rows[0]
					recordEmbedComputed()
					if _, err := store.Upsert(ctx, contentID, pageSourceTag, page.Text, vec, map[string]any{
						"pdf":  name,
						"page": page.PageNumber,
					}); err != nil {
						p.logger.Warn("ingest.pdf.page.upsert.failed", "pdf", name, "page", page.PageNumber, "error", err)
					} else {
						recordVectorUpserted()
					}
				}

				entry, err := writer.WritePage(name, page, anomalies, page.Text, vec)
				if err != nil {
					p.logger.Error("ingest.pdf.page.error", "pdf", name, "page", page.PageNumber, "error", err)
					recordPageError()
					mu.Lock()
					summary.PageErrors++
					mu.Unlock()
					continue
				}
				recordPageExtracted()
				mu.Lock()
				summary.Pages++
				summary.Anomalies += len(anomalies)
				mu.Unlock()
				entries[i] = &entry
			}
		}()
	}
	for i := range pages {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	written := make([]PageIndexEntry, 0, len(entries))
	for _, entry := range entries {
		if entry != nil {
			written = append(written, *entry)
		}
	}
	if err := writer.WriteDocumentIndex(name, path, written); err != nil {
		return err
	}
	summary.PDFs++
	return nil
}

// runAnalysis derives violations, the relationship graph, and the
// feature matrix, then runs the full analysis bundle. Failures here
// never abort the run; the bundle carries per-method error results.
func (p *Pipeline) runAnalysis(entities []*records.Entity, writer *IndexWriter, summary *RunSummary) {
	analysisStart := time.Now()

	violations := features.ExtractViolations(entities)
	for _, list := range violations {
		summary.Violations += len(list)
	}
	graph := features.BuildGraph(entities)

	extractor := features.NewExtractor()
	extractor.SetClock(p.now)
	matrix := extractor.BuildMatrix(entities, graph, violations)

	engine := analysis.NewEngine(analysis.Options{}, p.logger)
	engine.SetClock(p.now)
	bundle := engine.Run(matrix, entities, violations, graph)

	for rel, v := range map[string]any{
		"analysis/violations.json":   violations,
		"analysis/entity_graph.json": graph,
		"analysis/ml_analysis.json":  bundle,
	} {
		if err := writer.writeJSON(rel, v); err != nil {
			p.logger.Error("ingest.analysis.write.failed", "file", rel, "error", err)
		}
	}
	observeAnalysis(time.Since(analysisStart).Seconds())
}

// entitySourceFile names the source the entity index was built from.
func (p *Pipeline) entitySourceFile() string {
	if p.cfg.FilingExport != "" {
		return filepath.Base(p.cfg.FilingExport)
	}
	if len(p.cfg.Tabular) > 0 {
		return filepath.Base(p.cfg.Tabular[0])
	}
	return ""
}

// documentName derives the output directory name of a PDF from its
// file name.
func documentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
