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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"log/slog"

	"github.com/kraklabs/rie/pkg/records"
)

// LeafMetadata is the metadata block every leaf JSON carries.
type LeafMetadata struct {
	Source       string `json:"source"`
	Created      string `json:"created"`
	FilePath     string `json:"file_path"`
	HasEmbedding bool   `json:"has_embedding"`
}

// Leaf is the on-disk shape of every decomposed JSON file. Embedding
// is null when the text representation was empty.
type Leaf struct {
	Metadata LeafMetadata `json:"metadata"`
	Data     any          `json:"data"`
	Text     string       `json:"text_representation"`
	// Embedding marshals to null when nil.
	Embedding []float32 `json:"embedding"`
}

// Per-category index entries. The per-run index file lists every
// written leaf under its category with its key fields, so a reader can
// navigate the tree without globbing.

type entityIndexEntry struct {
	FilingNumber string `json:"filing_number"`
	File         string `json:"file"`
	Name         string `json:"name,omitempty"`
	EntityType   string `json:"entity_type,omitempty"`
}

type agentIndexEntry struct {
	FilingNumber string `json:"filing_number"`
	File         string `json:"file"`
	AgentName    string `json:"agent_name,omitempty"`
}

type filingIndexEntry struct {
	FilingNumber   string `json:"filing_number"`
	DocumentNumber string `json:"document_number"`
	File           string `json:"file"`
	FilingType     string `json:"filing_type,omitempty"`
	FilingDate     string `json:"filing_date,omitempty"`
}

type nameIndexEntry struct {
	FilingNumber string `json:"filing_number"`
	Index        int    `json:"index"`
	File         string `json:"file"`
	Name         string `json:"name,omitempty"`
	NameStatus   string `json:"name_status,omitempty"`
}

type managementIndexEntry struct {
	FilingNumber string `json:"filing_number"`
	Index        int    `json:"index"`
	File         string `json:"file"`
	Name         string `json:"name,omitempty"`
	Title        string `json:"title,omitempty"`
}

type assumedNameIndexEntry struct {
	FilingNumber string `json:"filing_number"`
	Index        int    `json:"index"`
	File         string `json:"file"`
	AssumedName  string `json:"assumed_name,omitempty"`
}

type associatedIndexEntry struct {
	FilingNumber string `json:"filing_number"`
	Index        int    `json:"index"`
	File         string `json:"file"`
	Name         string `json:"name,omitempty"`
	EntityType   string `json:"entity_type,omitempty"`
}

type addressIndexEntry struct {
	FilingNumber string `json:"filing_number"`
	File         string `json:"file"`
	Address      string `json:"address,omitempty"`
}

// entityIndex is the filings-side index file listing every decomposed
// child by category.
type entityIndex struct {
	Metadata struct {
		Source             string `json:"source"`
		Created            string `json:"created"`
		TotalEntities      int    `json:"total_entities"`
		EmbeddingModel     string `json:"embedding_model"`
		EmbeddingDimension int    `json:"embedding_dimension"`
	} `json:"metadata"`
	Entities           []entityIndexEntry      `json:"entities"`
	RegisteredAgents   []agentIndexEntry       `json:"registered_agents"`
	FilingHistory      []filingIndexEntry      `json:"filing_history"`
	Names              []nameIndexEntry        `json:"names"`
	Management         []managementIndexEntry  `json:"management"`
	AssumedNames       []assumedNameIndexEntry `json:"assumed_names"`
	AssociatedEntities []associatedIndexEntry  `json:"associated_entities"`
	InitialAddresses   []addressIndexEntry     `json:"initial_addresses"`
}

// PageIndexEntry is one page's row in a PDF's index file.
type PageIndexEntry struct {
	PageNumber     int    `json:"page_number"`
	File           string `json:"file"`
	AnomaliesCount int    `json:"anomalies_count"`
}

// pdfIndex is one PDF's index.json.
type pdfIndex struct {
	SourceFile string           `json:"source_file"`
	TotalPages int              `json:"total_pages"`
	Pages      []PageIndexEntry `json:"pages"`
}

// PDFIndexEntry is one PDF's row in the master index.
type PDFIndexEntry struct {
	PDFName    string `json:"pdf_name"`
	SourceFile string `json:"source_file"`
	IndexFile  string `json:"index_file"`
	TotalPages int    `json:"total_pages"`
}

// FilingsIndexRef is the master index's pointer at the filings-side
// entity tree. Null in the master index when no filings export was
// ingested.
type FilingsIndexRef struct {
	SourceFile     string `json:"source_file"`
	TotalEntities  int    `json:"total_entities"`
	RecursiveIndex string `json:"recursive_index"`
}

// masterIndex is the run-level master_index.json. It is written last:
// its presence marks a completed run.
type masterIndex struct {
	Metadata struct {
		Created            string `json:"created"`
		EmbeddingModel     string `json:"embedding_model"`
		EmbeddingDimension int    `json:"embedding_dimension"`
	} `json:"metadata"`
	PDFs       []PDFIndexEntry  `json:"pdfs"`
	FilingsTxt *FilingsIndexRef `json:"lariat_txt"`
}

// IndexWriter owns the on-disk output tree: every leaf JSON, the
// per-PDF index files, the filings-side index, and the master index.
// Workers write disjoint leaf paths, so only the in-memory category
// lists need locking.
type IndexWriter struct {
	base   string
	source string
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	index   entityIndex
	pdfs    []PDFIndexEntry
	filings *FilingsIndexRef
	written int
}

// NewIndexWriter creates a writer rooted at base. The source label is
// recorded in every leaf's metadata.
func NewIndexWriter(base, source string, logger *slog.Logger) (*IndexWriter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("create output base %s: %w", base, err)
	}
	w := &IndexWriter{
		base:   base,
		source: source,
		logger: logger,
		now:    time.Now,
	}
	w.index.Entities = []entityIndexEntry{}
	w.index.RegisteredAgents = []agentIndexEntry{}
	w.index.FilingHistory = []filingIndexEntry{}
	w.index.Names = []nameIndexEntry{}
	w.index.Management = []managementIndexEntry{}
	w.index.AssumedNames = []assumedNameIndexEntry{}
	w.index.AssociatedEntities = []associatedIndexEntry{}
	w.index.InitialAddresses = []addressIndexEntry{}
	w.pdfs = []PDFIndexEntry{}
	return w, nil
}

// SetClock overrides the timestamp source. Tests use a fixed clock so
// two runs over the same input produce byte-identical index files.
func (w *IndexWriter) SetClock(now func() time.Time) { w.now = now }

// WriteChild writes one decomposed child document as a leaf JSON and
// records it in the category index.
func (w *IndexWriter) WriteChild(doc ChildDocument, embedding []float32) error {
	if err := w.writeLeaf(doc.Path, doc.Data, doc.Text, embedding); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.written++
	switch doc.Kind {
	case KindEntity:
		e, _ := doc.Data.(*records.Entity)
		entry := entityIndexEntry{FilingNumber: doc.FilingNumber, File: doc.Path}
		if e != nil {
			entry.Name = e.Name
			entry.EntityType = e.EntityType
		}
		w.index.Entities = append(w.index.Entities, entry)
	case KindRegisteredAgent:
		entry := agentIndexEntry{FilingNumber: doc.FilingNumber, File: doc.Path}
		if a, ok := doc.Data.(*records.RegisteredAgent); ok {
			entry.AgentName = a.Name
		}
		w.index.RegisteredAgents = append(w.index.RegisteredAgents, entry)
	case KindFilingEvent:
		entry := filingIndexEntry{
			FilingNumber:   doc.FilingNumber,
			DocumentNumber: doc.DocumentNumber,
			File:           doc.Path,
		}
		if f, ok := doc.Data.(records.FilingEvent); ok {
			entry.FilingType = f.FilingType
			entry.FilingDate = f.FilingDate
		}
		w.index.FilingHistory = append(w.index.FilingHistory, entry)
	case KindName:
		entry := nameIndexEntry{FilingNumber: doc.FilingNumber, Index: doc.Index, File: doc.Path}
		if n, ok := doc.Data.(records.NameRecord); ok {
			entry.Name = n.Name
			entry.NameStatus = n.NameStatus
		}
		w.index.Names = append(w.index.Names, entry)
	case KindManagement:
		entry := managementIndexEntry{FilingNumber: doc.FilingNumber, Index: doc.Index, File: doc.Path}
		if m, ok := doc.Data.(records.ManagementRecord); ok {
			entry.Name = m.Name
			entry.Title = m.Title
		}
		w.index.Management = append(w.index.Management, entry)
	case KindAssumedName:
		entry := assumedNameIndexEntry{FilingNumber: doc.FilingNumber, Index: doc.Index, File: doc.Path}
		if a, ok := doc.Data.(records.AssumedName); ok {
			entry.AssumedName = a.AssumedName
		}
		w.index.AssumedNames = append(w.index.AssumedNames, entry)
	case KindAssociatedEntity:
		entry := associatedIndexEntry{FilingNumber: doc.FilingNumber, Index: doc.Index, File: doc.Path}
		if a, ok := doc.Data.(records.AssociatedEntity); ok {
			entry.Name = a.Name
			entry.EntityType = a.EntityType
		}
		w.index.AssociatedEntities = append(w.index.AssociatedEntities, entry)
	case KindInitialAddress:
		entry := addressIndexEntry{FilingNumber: doc.FilingNumber, File: doc.Path}
		if m, ok := doc.Data.(map[string]string); ok {
			entry.Address = m["address"]
		}
		w.index.InitialAddresses = append(w.index.InitialAddresses, entry)
	}
	return nil
}

// pageLeaf is the data payload of a page's leaf JSON.
type pageLeaf struct {
	PageNumber int           `json:"page_number"`
	Text       string        `json:"text"`
	CharCount  int           `json:"char_count"`
	WordCount  int           `json:"word_count"`
	Anomalies  []PageAnomaly `json:"anomalies"`
}

// WritePage writes one extracted page and, when it carries anomalies,
// its separate anomaly report. Returns the page's index entry.
func (w *IndexWriter) WritePage(documentName string, page records.PDFPage, anomalies []PageAnomaly, text string, embedding []float32) (PageIndexEntry, error) {
	if anomalies == nil {
		anomalies = []PageAnomaly{}
	}
	data := pageLeaf{
		PageNumber: page.PageNumber,
		Text:       page.Text,
		CharCount:  page.CharCount,
		WordCount:  page.WordCount,
		Anomalies:  anomalies,
	}
	rel := PagePath(documentName, page.PageNumber)
	if err := w.writeLeaf(rel, data, text, embedding); err != nil {
		return PageIndexEntry{}, err
	}

	if len(anomalies) > 0 {
		report := AnomalyReport{
			PageNumber: page.PageNumber,
			Source:     documentName,
			Anomalies:  anomalies,
		}
		if err := w.writeLeaf(AnomalyPath(documentName, page.PageNumber), report, "", nil); err != nil {
			return PageIndexEntry{}, err
		}
	}

	return PageIndexEntry{
		PageNumber:     page.PageNumber,
		File:           rel,
		AnomaliesCount: len(anomalies),
	}, nil
}

// WriteDocumentIndex writes one PDF's index.json and records the PDF
// in the master index.
func (w *IndexWriter) WriteDocumentIndex(documentName, sourceFile string, pages []PageIndexEntry) error {
	if pages == nil {
		pages = []PageIndexEntry{}
	}
	idx := pdfIndex{
		SourceFile: sourceFile,
		TotalPages: len(pages),
		Pages:      pages,
	}
	rel := DocumentIndexPath(documentName)
	if err := w.writeJSON(rel, idx); err != nil {
		return err
	}

	w.mu.Lock()
	w.pdfs = append(w.pdfs, PDFIndexEntry{
		PDFName:    documentName,
		SourceFile: sourceFile,
		IndexFile:  rel,
		TotalPages: len(pages),
	})
	w.mu.Unlock()
	return nil
}

// ReloadDocumentIndex re-reads a PDF's index.json from a previous run
// and records the PDF in the master index. A resumed run skips
// completed documents, but the master index must still list them.
func (w *IndexWriter) ReloadDocumentIndex(documentName string) error {
	rel := DocumentIndexPath(documentName)
	data, err := os.ReadFile(filepath.Join(w.base, rel))
	if err != nil {
		return fmt.Errorf("read document index %s: %w", rel, err)
	}
	var idx pdfIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("parse document index %s: %w", rel, err)
	}

	w.mu.Lock()
	w.pdfs = append(w.pdfs, PDFIndexEntry{
		PDFName:    documentName,
		SourceFile: idx.SourceFile,
		IndexFile:  rel,
		TotalPages: idx.TotalPages,
	})
	w.mu.Unlock()
	return nil
}

// WriteEntityIndex writes the filings-side index.json listing every
// decomposed child by category, and records the filings source in the
// master index.
func (w *IndexWriter) WriteEntityIndex(sourceFile, embeddingModel string, embeddingDim int) error {
	w.mu.Lock()
	w.index.Metadata.Source = w.source
	w.index.Metadata.Created = w.now().UTC().Format(time.RFC3339)
	w.index.Metadata.TotalEntities = len(w.index.Entities)
	w.index.Metadata.EmbeddingModel = embeddingModel
	w.index.Metadata.EmbeddingDimension = embeddingDim
	idx := w.index
	total := len(w.index.Entities)
	w.mu.Unlock()

	if err := w.writeJSON("index.json", idx); err != nil {
		return err
	}

	w.mu.Lock()
	w.filings = &FilingsIndexRef{
		SourceFile:     sourceFile,
		TotalEntities:  total,
		RecursiveIndex: "index.json",
	}
	w.mu.Unlock()
	return nil
}

// WriteMasterIndex writes master_index.json atomically. Always the
// last write of a run.
func (w *IndexWriter) WriteMasterIndex(embeddingModel string, embeddingDim int) error {
	w.mu.Lock()
	idx := masterIndex{
		PDFs:       w.pdfs,
		FilingsTxt: w.filings,
	}
	idx.Metadata.Created = w.now().UTC().Format(time.RFC3339)
	idx.Metadata.EmbeddingModel = embeddingModel
	idx.Metadata.EmbeddingDimension = embeddingDim
	written := w.written
	w.mu.Unlock()

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal master index: %w", err)
	}

	target := filepath.Join(w.base, MasterIndexName)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write master index: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("finalize master index: %w", err)
	}

	w.logger.Info("ingest.index.complete", "base", w.base, "leaves", written, "pdfs", len(idx.PDFs))
	return nil
}

// WrittenCount reports how many child leaves were written so far.
func (w *IndexWriter) WrittenCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// writeLeaf writes one {metadata, data, text_representation,
// embedding} leaf at the relative path, creating its directory lazily.
func (w *IndexWriter) writeLeaf(rel string, data any, text string, embedding []float32) error {
	leaf := Leaf{
		Metadata: LeafMetadata{
			Source:       w.source,
			Created:      w.now().UTC().Format(time.RFC3339),
			FilePath:     rel,
			HasEmbedding: len(embedding) > 0,
		},
		Data:      data,
		Text:      text,
		Embedding: embedding,
	}
	return w.writeJSON(rel, leaf)
}

func (w *IndexWriter) writeJSON(rel string, v any) error {
	target := filepath.Join(w.base, rel)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", rel, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", rel, err)
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}
