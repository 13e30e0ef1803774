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
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kraklabs/rie/internal/output"
	"github.com/kraklabs/rie/internal/ui"
	"github.com/kraklabs/rie/pkg/ingestion"
)

// StatusResult represents the project status for JSON output.
type StatusResult struct {
	ProjectID  string    `json:"project_id"`
	OutputDir  string    `json:"output_dir"`
	Ingested   bool      `json:"ingested"`
	Created    string    `json:"created,omitempty"`
	Model      string    `json:"embedding_model,omitempty"`
	Dimension  int       `json:"embedding_dimension,omitempty"`
	Entities   int       `json:"entities"`
	PDFs       int       `json:"pdfs"`
	Pages      int       `json:"pages"`
	Vectors    int       `json:"vectors"`
	Checkpoint string    `json:"checkpoint,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// statusMasterIndex mirrors the fields of master_index.json that the
// status command reports on.
type statusMasterIndex struct {
	Metadata struct {
		Created            string `json:"created"`
		EmbeddingModel     string `json:"embedding_model"`
		EmbeddingDimension int    `json:"embedding_dimension"`
	} `json:"metadata"`
	PDFs []struct {
		TotalPages int `json:"total_pages"`
	} `json:"pdfs"`
	FilingsTxt *struct {
		TotalEntities int `json:"total_entities"`
	} `json:"lariat_txt"`
}

// runStatus executes the 'status' CLI command, displaying project
// ingestion statistics.
//
// It reads the master index written at the end of a completed run, the
// vector store metadata, and any resumable checkpoint. This helps users
// verify that ingestion completed and understand the scope of the index.
//
// Flags:
//   - --json: Output results as JSON (default: false)
//
// Examples:
//
//	rie status           Display formatted status
//	rie status --json    Output as JSON for programmatic use
func runStatus(args []string, configPath string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rie status [options]

Shows local project status.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	// Load configuration
	cfg, err := LoadConfig(configPath)
	if err != nil {
		if *jsonOutput {
			_ = output.JSON(&StatusResult{
				Error:     err.Error(),
				Timestamp: time.Now(),
			})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}

	result := &StatusResult{
		ProjectID: cfg.ProjectID,
		OutputDir: cfg.Output.Dir,
		Timestamp: time.Now(),
	}

	// The master index is written last; its presence marks a
	// completed run.
	masterPath := filepath.Join(cfg.Output.Dir, ingestion.MasterIndexName)
	master, err := readMasterIndex(masterPath)
	if err != nil {
		if os.IsNotExist(err) {
			result.Ingested = false
			result.Error = "Project not ingested yet. Run 'rie run' first."
		} else {
			result.Ingested = false
			result.Error = fmt.Sprintf("Cannot read master index: %v", err)
		}
	} else {
		result.Ingested = true
		result.Created = master.Metadata.Created
		result.Model = master.Metadata.EmbeddingModel
		result.Dimension = master.Metadata.EmbeddingDimension
		result.PDFs = len(master.PDFs)
		for _, p := range master.PDFs {
			result.Pages += p.TotalPages
		}
		if master.FilingsTxt != nil {
			result.Entities = master.FilingsTxt.TotalEntities
		}
	}

	result.Vectors = countStoredVectors(filepath.Join(cfg.Output.Dir, "vector_store", "metadata.json"))

	if cwd, err := os.Getwd(); err == nil {
		cpPath := filepath.Join(ConfigDir(cwd), "checkpoints", fmt.Sprintf("checkpoint-%s.json", cfg.ProjectID))
		if _, err := os.Stat(cpPath); err == nil {
			result.Checkpoint = cpPath
		}
	}

	if *jsonOutput {
		_ = output.JSON(result)
		return
	}
	printStatus(result)
}

// readMasterIndex parses master_index.json at path.
func readMasterIndex(path string) (*statusMasterIndex, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path built from configured output dir
	if err != nil {
		return nil, err
	}
	var master statusMasterIndex
	if err := json.Unmarshal(data, &master); err != nil {
		return nil, err
	}
	return &master, nil
}

// countStoredVectors returns the number of entries in the vector store
// metadata map, or 0 when the store does not exist or cannot be read.
func countStoredVectors(path string) int {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path built from configured output dir
	if err != nil {
		return 0
	}
	var meta map[string]json.RawMessage
	if err := json.Unmarshal(data, &meta); err != nil {
		return 0
	}
	return len(meta)
}

// printStatus prints the status result as formatted text to stdout.
//
// Displays project information and index counts in a human-readable
// format. This is the default output when --json is not specified.
func printStatus(result *StatusResult) {
	ui.Header("RIE Project Status")
	fmt.Printf("%s %s\n", ui.Label("Project ID:"), result.ProjectID)
	fmt.Printf("%s %s\n", ui.Label("Output Dir:"), ui.DimText(result.OutputDir))
	fmt.Println()

	if !result.Ingested {
		fmt.Printf("Project '%s' not ingested yet.\n", result.ProjectID)
		fmt.Println("Run 'rie run' to ingest the configured sources.")
		if result.Checkpoint != "" {
			fmt.Println()
			ui.Infof("Partial checkpoint found: %s (a new run will resume)", result.Checkpoint)
		}
		return
	}

	ui.SubHeader("Index:")
	fmt.Printf("  Entities:    %s\n", ui.CountText(result.Entities))
	fmt.Printf("  PDFs:        %s\n", ui.CountText(result.PDFs))
	fmt.Printf("  Pages:       %s\n", ui.CountText(result.Pages))
	fmt.Printf("  Vectors:     %s\n", ui.CountText(result.Vectors))
	fmt.Println()

	ui.SubHeader("Embedding:")
	fmt.Printf("  Model:       %s\n", result.Model)
	fmt.Printf("  Dimension:   %d\n", result.Dimension)
	if result.Created != "" {
		fmt.Printf("  Created:     %s\n", result.Created)
	}

	if result.Error != "" {
		fmt.Println()
		ui.Warning(result.Error)
	}
}
