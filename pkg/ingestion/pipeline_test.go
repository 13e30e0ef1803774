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
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mockEmbedder() *Embedder {
	return NewEmbedder(func() (EmbeddingProvider, error) {
		return NewMockEmbeddingProvider(8, nil), nil
	}, nil)
}

func pipelineClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func writePipelineInputs(t *testing.T) (export, tabular string) {
	t.Helper()
	dir := t.TempDir()

	export = filepath.Join(dir, "filings.txt")
	if err := os.WriteFile(export, []byte(sampleExport), 0644); err != nil {
		t.Fatalf("write export: %v", err)
	}

	tabular = filepath.Join(dir, "registrations.json")
	content := `[{"filing_number": "999", "name": "Tab Corp", "status": "In Existence"}]`
	if err := os.WriteFile(tabular, []byte(content), 0644); err != nil {
		t.Fatalf("write tabular: %v", err)
	}
	return export, tabular
}

func runPipeline(t *testing.T, out string, export, tabular string) *RunSummary {
	t.Helper()
	p, err := NewPipeline(PipelineConfig{
		ProjectID:     "test",
		FilingExport:  export,
		Tabular:       []string{tabular},
		OutputDir:     out,
		CheckpointDir: filepath.Join(out, "checkpoints"),
	}, mockEmbedder(), nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	p.SetClock(pipelineClock)

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return summary
}

func TestPipeline_FullRun(t *testing.T) {
	export, tabular := writePipelineInputs(t)
	out := t.TempDir()

	summary := runPipeline(t, out, export, tabular)

	if summary.Entities != 2 {
		t.Errorf("entities = %d, want 2 (export + tabular)", summary.Entities)
	}
	if summary.Children == 0 {
		t.Error("no children written")
	}
	if summary.EmbeddingsComputed == 0 {
		t.Error("no embeddings computed on a fresh run")
	}

	for _, rel := range []string{
		MasterIndexName,
		"index.json",
		"analysis/ml_analysis.json",
		"analysis/violations.json",
		"analysis/entity_graph.json",
		filepath.Join("vector_store", "index.bin"),
		filepath.Join("vector_store", "metadata.json"),
	} {
		if _, err := os.Stat(filepath.Join(out, rel)); err != nil {
			t.Errorf("missing output %s: %v", rel, err)
		}
	}

	var master struct {
		FilingsTxt *FilingsIndexRef `json:"lariat_txt"`
	}
	readJSON(t, filepath.Join(out, MasterIndexName), &master)
	if master.FilingsTxt == nil {
		t.Fatal("master index has no filings reference")
	}
	if master.FilingsTxt.TotalEntities != 2 {
		t.Errorf("master total_entities = %d, want 2", master.FilingsTxt.TotalEntities)
	}

	if _, err := os.Stat(filepath.Join(out, "checkpoints", "checkpoint-test.json")); err != nil {
		t.Errorf("checkpoint not written: %v", err)
	}
}

func TestPipeline_RerunReusesEmbeddings(t *testing.T) {
	export, tabular := writePipelineInputs(t)
	out := t.TempDir()

	first := runPipeline(t, out, export, tabular)
	second := runPipeline(t, out, export, tabular)

	if second.EmbeddingsComputed != 0 {
		t.Errorf("second run computed %d embeddings, want 0", second.EmbeddingsComputed)
	}
	if second.EmbeddingsReused != first.EmbeddingsComputed {
		t.Errorf("second run reused %d, want %d", second.EmbeddingsReused, first.EmbeddingsComputed)
	}

	// Same inputs and clock yield an identical master index.
	a, err := os.ReadFile(filepath.Join(out, MasterIndexName))
	if err != nil {
		t.Fatal(err)
	}
	summaryBefore := string(a)
	runPipeline(t, out, export, tabular)
	b, err := os.ReadFile(filepath.Join(out, MasterIndexName))
	if err != nil {
		t.Fatal(err)
	}
	if summaryBefore != string(b) {
		t.Error("master index changed across identical reruns")
	}
}

func runPipelineWithPDF(t *testing.T, out, export, pdfPath string) *RunSummary {
	t.Helper()
	p, err := NewPipeline(PipelineConfig{
		ProjectID:     "test",
		FilingExport:  export,
		PDFs:          []string{pdfPath},
		OutputDir:     out,
		CheckpointDir: filepath.Join(out, "checkpoints"),
	}, mockEmbedder(), nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	p.SetClock(pipelineClock)

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return summary
}

func TestPipeline_RerunSkipsCompletedPDF(t *testing.T) {
	export, _ := writePipelineInputs(t)
	pdfPath := filepath.Join(filepath.Dir(export), "doc.pdf")
	writeMinimalPDF(t, pdfPath)
	out := t.TempDir()

	first := runPipelineWithPDF(t, out, export, pdfPath)
	if first.PDFs != 1 || first.Pages != 1 {
		t.Fatalf("first run: pdfs = %d, pages = %d, want 1 and 1", first.PDFs, first.Pages)
	}
	a, err := os.ReadFile(filepath.Join(out, MasterIndexName))
	if err != nil {
		t.Fatal(err)
	}

	second := runPipelineWithPDF(t, out, export, pdfPath)
	if second.Pages != 0 {
		t.Errorf("second run extracted %d pages, want 0 for a checkpointed document", second.Pages)
	}
	b, err := os.ReadFile(filepath.Join(out, MasterIndexName))
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Error("master index changed when the checkpoint skipped a completed document")
	}

	var master struct {
		PDFs []PDFIndexEntry `json:"pdfs"`
	}
	readJSON(t, filepath.Join(out, MasterIndexName), &master)
	if len(master.PDFs) != 1 || master.PDFs[0].PDFName != "doc" || master.PDFs[0].TotalPages != 1 {
		t.Errorf("pdfs = %+v, want the skipped document listed with its pages", master.PDFs)
	}

	// Pruning the per-document output invalidates the checkpoint entry.
	if err := os.RemoveAll(filepath.Join(out, "doc")); err != nil {
		t.Fatal(err)
	}
	third := runPipelineWithPDF(t, out, export, pdfPath)
	if third.Pages != 1 {
		t.Errorf("third run extracted %d pages, want 1 after output pruning", third.Pages)
	}
}

func TestPipeline_EmptyInputStillRunsAnalysis(t *testing.T) {
	dir := t.TempDir()
	export := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(export, nil, 0644); err != nil {
		t.Fatal(err)
	}
	out := t.TempDir()

	p, err := NewPipeline(PipelineConfig{
		ProjectID:     "test",
		FilingExport:  export,
		OutputDir:     out,
		CheckpointDir: filepath.Join(out, "checkpoints"),
	}, mockEmbedder(), nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	p.SetClock(pipelineClock)

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Entities != 0 {
		t.Errorf("entities = %d, want 0", summary.Entities)
	}

	var bundle struct {
		Clustering map[string]map[string]any `json:"clustering_results"`
		Anomaly    map[string]map[string]any `json:"anomaly_detection"`
	}
	readJSON(t, filepath.Join(out, "analysis", "ml_analysis.json"), &bundle)
	if got := bundle.Clustering["kmeans"]["error"]; got != "no features" {
		t.Errorf("kmeans = %v, want no-features error", bundle.Clustering["kmeans"])
	}
	if got := bundle.Anomaly["isolation_forest"]["error"]; got != "no features" {
		t.Errorf("isolation_forest = %v, want no-features error", bundle.Anomaly["isolation_forest"])
	}

	var master map[string]any
	readJSON(t, filepath.Join(out, MasterIndexName), &master)
	if pdfs, ok := master["pdfs"].([]any); !ok || len(pdfs) != 0 {
		t.Errorf("pdfs = %v, want empty list", master["pdfs"])
	}
	if master["lariat_txt"] != nil {
		t.Errorf("lariat_txt = %v, want null", master["lariat_txt"])
	}
}

func TestPipeline_MissingInputAborts(t *testing.T) {
	out := t.TempDir()
	p, err := NewPipeline(PipelineConfig{
		FilingExport: filepath.Join(out, "does-not-exist.txt"),
		OutputDir:    out,
	}, mockEmbedder(), nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if _, err := p.Run(context.Background()); err == nil {
		t.Error("expected error for missing input source")
	}

	if _, err := os.Stat(filepath.Join(out, MasterIndexName)); err == nil {
		t.Error("master index written despite aborted run")
	}
}

func TestPipeline_ConfigValidation(t *testing.T) {
	if _, err := NewPipeline(PipelineConfig{OutputDir: t.TempDir()}, mockEmbedder(), nil); err == nil {
		t.Error("expected error with no input sources")
	}
	if _, err := NewPipeline(PipelineConfig{FilingExport: "x"}, mockEmbedder(), nil); err == nil {
		t.Error("expected error with no output directory")
	}
	if _, err := NewPipeline(PipelineConfig{FilingExport: "x", OutputDir: "y"}, nil, nil); err == nil {
		t.Error("expected error with no embedder")
	}
}

func TestPipeline_FailedEmbedderAborts(t *testing.T) {
	export, _ := writePipelineInputs(t)
	broken := NewEmbedder(func() (EmbeddingProvider, error) {
		return nil, os.ErrPermission
	}, nil)

	p, err := NewPipeline(PipelineConfig{
		FilingExport: export,
		OutputDir:    t.TempDir(),
	}, broken, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if _, err := p.Run(context.Background()); err == nil {
		t.Error("expected error when the embedding provider cannot load")
	}
}
