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

// Package main implements the RIE CLI for ingesting regulatory filing
// records and querying the Recursive Ingestion Engine.
//
// Usage:
//
//	rie init                      Create .rie/project.yaml configuration
//	rie run                       Ingest the configured sources
//	rie search <text> [--json]    Semantic search over ingested content
//	rie status [--json]           Show project status
package main

import (
	"flag"
	"fmt"
	"os"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// main is the entry point for the RIE CLI.
//
// It parses global flags and dispatches to command handlers.
//
// Global flags:
//   - --version: Display version information and exit
//   - --config: Path to .rie/project.yaml configuration file
//
// Commands:
//   - init: Create .rie/project.yaml configuration
//   - run: Ingest the configured sources
//   - search: Semantic search over ingested content
//   - status: Show project status
//   - reset: Delete local project output (destructive!)
func main() {
	// Global flags
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "", "Path to .rie/project.yaml (default: ./.rie/project.yaml)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `RIE - Recursive Ingestion Engine

RIE ingests regulatory filing exports, scanned PDF documents, and
tabular registration data into a recursively decomposed JSON index
with a semantic vector store, then runs statistical analysis over
the extracted entities to surface compliance violations, anomalies,
and risk patterns.

Usage:
  rie <command> [options]

Commands:
  init          Create .rie/project.yaml configuration
  run           Ingest the configured sources
  search        Semantic search over ingested content
  status        Show project status
  reset         Delete local project output (destructive!)
  completion    Generate shell completion script (bash|zsh|fish)

Global Options:
  --config      Path to .rie/project.yaml
  --version     Show version and exit

Examples:
  rie init                           Create configuration interactively
  rie run                            Ingest configured sources
  rie run --full                     Ignore checkpoint, process everything
  rie search "tax forfeiture"        Search ingested content
  rie status                         Show project status
  rie status --json                  Output as JSON
  rie completion bash                Generate bash completion script

Getting Started:
  1. Initialize configuration:  rie init
  2. Ingest your sources:       rie run
  3. Check ingestion status:    rie status
  4. Search the index:          rie search "reinstatement"

Data Storage:
  Output is written to the directory configured in .rie/project.yaml
  (default: ./rie-data/). Checkpoints live in .rie/checkpoints/.

For detailed command help: rie <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("rie version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs)
	case "run":
		runRun(cmdArgs, *configPath)
	case "search":
		runSearch(cmdArgs, *configPath)
	case "status":
		runStatus(cmdArgs, *configPath)
	case "reset":
		runReset(cmdArgs, *configPath)
	case "completion":
		runCompletion(cmdArgs, *configPath)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
