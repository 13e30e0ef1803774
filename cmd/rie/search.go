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

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kraklabs/rie/internal/errors"
	"github.com/kraklabs/rie/internal/output"
	"github.com/kraklabs/rie/internal/ui"
	"github.com/kraklabs/rie/pkg/ingestion"
	"github.com/kraklabs/rie/pkg/vectorstore"
)

// runSearch executes the 'search' CLI command, running a semantic
// query against the ingested vector store.
//
// The query text is embedded with the configured provider and matched
// against stored vectors by L2 distance. Results include the content
// id, source, and a text snippet for each hit.
//
// Flags:
//   - --top-k: Number of results to return (default: 5)
//   - --json: Output results as JSON (default: false)
//   - --timeout: Query timeout duration (default: 30s)
//
// Examples:
//
//	rie search "tax forfeiture"
//	rie search "registered agent change" --top-k 10
//	rie search "reinstatement" --json
func runSearch(args []string, configPath string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	topK := fs.Int("top-k", 5, "Number of results to return")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	timeout := fs.Duration("timeout", 30*time.Second, "Query timeout")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rie search [options] <text>

Runs a semantic search over the ingested content. The query is embedded
with the provider configured in .rie/project.yaml, so the same provider
that produced the index must be reachable.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  rie search "tax forfeiture"
  rie search "registered agent change" --top-k 10
  rie search "reinstatement" --json

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: query text required\n")
		fs.Usage()
		os.Exit(1)
	}
	query := strings.Join(fs.Args(), " ")

	// Load configuration
	cfg, err := LoadConfig(configPath)
	if err != nil {
		searchFatal(err, *jsonOutput)
	}

	storeDir := filepath.Join(cfg.Output.Dir, "vector_store")
	if _, err := os.Stat(storeDir); os.IsNotExist(err) {
		searchFatal(fmt.Errorf("project '%s' has no vector store yet. Run 'rie run' first", cfg.ProjectID), *jsonOutput)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	embedder := ingestion.NewEmbedder(func() (ingestion.EmbeddingProvider, error) {
		return ingestion.CreateEmbeddingProvider(
			cfg.Embedding.Provider,
			cfg.Embedding.BaseURL,
			cfg.Embedding.Model,
			cfg.Embedding.APIKey,
			logger,
		)
	}, logger)

	dim, err := embedder.Dimension()
	if err != nil {
		searchFatal(fmt.Errorf("cannot load embedding provider: %w", err), *jsonOutput)
	}

	store, err := vectorstore.Open(storeDir, dim, embedder, logger)
	if err != nil {
		searchFatal(fmt.Errorf("cannot open vector store: %w", err), *jsonOutput)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	results, err := store.Search(ctx, query, *topK)
	if err != nil {
		searchFatal(fmt.Errorf("search failed: %w", err), *jsonOutput)
	}

	if *jsonOutput {
		if err := output.JSON(map[string]any{
			"query":   query,
			"results": results,
			"count":   len(results),
		}); err != nil {
			errors.FatalError(err, true)
		}
		return
	}
	printSearchResults(query, results)
}

// searchFatal reports a fatal search error in the requested format and
// exits.
func searchFatal(err error, jsonOutput bool) {
	if jsonOutput {
		_ = output.JSONError(err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// printSearchResults prints search hits as formatted text to stdout.
//
// Each hit shows its rank, similarity, source, content id, and a short
// snippet of the stored text.
func printSearchResults(query string, results []vectorstore.Result) {
	if len(results) == 0 {
		fmt.Println("No results")
		return
	}

	ui.Header(fmt.Sprintf("Results for %q", query))
	for i, r := range results {
		fmt.Printf("%d. %s  %s\n", i+1, ui.Label(r.ContentID), ui.DimText(fmt.Sprintf("similarity=%.4f source=%s", r.Similarity, r.Source)))
		if snippet := searchSnippet(r.Text); snippet != "" {
			fmt.Printf("   %s\n", snippet)
		}
	}
	fmt.Printf("\n(%d results)\n", len(results))
}

// searchSnippet collapses whitespace and truncates stored text for
// one-line display.
func searchSnippet(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if len(s) > 120 {
		return s[:117] + "..."
	}
	return s
}
