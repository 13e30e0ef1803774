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

// Package ingestion provides the record and document ingestion pipeline
// for RIE.
//
// The ingestion package is responsible for parsing regulatory filing
// exports, extracting text from scanned PDF documents, loading tabular
// registration data, decomposing entities into a recursive JSON index,
// generating embeddings, and handing the extracted records to the
// analysis stage.
//
// # Pipeline Overview
//
// The pipeline processes sources in five stages:
//
//  1. Parsing: Parse the pipe-delimited filing export into entities,
//     load JSON/CSV registration dumps, and extract PDF page text
//  2. Detection: Scan each PDF page for content anomalies
//  3. Decomposition: Recursively split each entity into child
//     documents (profile, filing events, agent, addresses)
//  4. Embedding: Generate vector embeddings for every leaf text,
//     reusing stored vectors by content id
//  5. Indexing: Write the leaf JSON tree, per-document indexes, the
//     vector store, the analysis bundle, and finally the master index
//
// Each stage is designed for reliability and resumability: page and
// record failures degrade with logging, fully processed PDFs are
// checkpointed, and the master index is written last so its presence
// marks a completed run.
//
// # Supported Sources
//
// The following input sources are supported:
//   - Pipe-delimited filing export files (one entity per record block)
//   - Scanned PDF documents (.pdf), extracted page by page
//   - Tabular registration dumps (.json, .csv)
//
// # Quick Start
//
// Create and run an ingestion pipeline:
//
//	embedder := ingestion.NewEmbedder(func() (ingestion.EmbeddingProvider, error) {
//	    return ingestion.CreateEmbeddingProvider("ollama", "", "", "", logger)
//	}, logger)
//
//	pipeline, err := ingestion.NewPipeline(ingestion.PipelineConfig{
//	    ProjectID:    "my-project",
//	    FilingExport: "filings.txt",
//	    PDFs:         []string{"scans/roster.pdf"},
//	    OutputDir:    "rie-data",
//	}, embedder, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := pipeline.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Ingested %d entities, %d pages\n",
//	    result.Entities, result.Pages)
//
// # Incremental Updates
//
// Runs are resumable through checkpointing. Fully processed PDFs are
// recorded and skipped on the next run unless their content hash
// changed; filing exports and tabular sources are cheap to re-parse
// and always rerun so the analysis stage sees the complete entity set.
//
// # Metrics
//
// Prometheus metrics are exported for pages, entities, embeddings,
// vector upserts, and per-stage durations.
package ingestion
