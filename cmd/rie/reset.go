// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kraklabs/rie/pkg/ingestion"
)

func runReset(args []string, configPath string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	confirm := fs.Bool("yes", false, "Confirm the reset (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rie reset [options]

Deletes the project output directory and checkpoint, clearing all
ingested data. This is useful before a full re-run to ensure a clean
slate.

WARNING: This operation is destructive and cannot be undone!

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if !*confirm {
		fmt.Fprintf(os.Stderr, "Error: you must pass --yes to confirm the reset\n")
		fmt.Fprintf(os.Stderr, "This will delete all ingested data for the project.\n")
		os.Exit(1)
	}

	// Load configuration
	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Check if the output directory exists
	if _, err := os.Stat(cfg.Output.Dir); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "No output found for project %s\n", cfg.ProjectID)
		os.Exit(0)
	}

	fmt.Printf("Resetting project %s (deleting %s)...\n", cfg.ProjectID, cfg.Output.Dir)

	// Delete the output directory
	if err := os.RemoveAll(cfg.Output.Dir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to delete output: %v\n", err)
		os.Exit(1)
	}

	// Drop the checkpoint too so the next run starts clean
	if cwd, err := os.Getwd(); err == nil {
		cm := ingestion.NewCheckpointManager(filepath.Join(ConfigDir(cwd), "checkpoints"))
		if err := cm.ClearCheckpoint(cfg.ProjectID); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot clear checkpoint: %v\n", err)
		}
	}

	fmt.Println("Reset complete. All ingested data has been deleted.")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  rie run    Re-ingest the configured sources")
}
