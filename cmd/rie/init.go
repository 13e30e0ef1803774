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
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// initFlags holds parsed flags for the init command.
type initFlags struct {
	force, nonInteractive        bool
	projectID, filingExport      string
	outputDir, embeddingProvider string
	embedURL, embedModel, apiKey string
}

// runInit executes the 'init' CLI command, creating a .rie/project.yaml
// configuration file.
//
// It creates the configuration directory, generates a default
// configuration, and optionally prompts the user for customization in
// interactive mode.
//
// Flags:
//   - --force: Overwrite existing configuration (default: false)
//   - -y: Non-interactive mode, use all defaults (default: false)
//   - --project-id: Project identifier (default: directory name)
//   - --filing-export: Path to a pipe-delimited filing export file
//   - --output-dir: Output directory for indexes and the vector store
//   - --embedding-provider: Embedding provider (ollama, openai, mock)
//   - --embedding-url: Embedding API base URL
//   - --embedding-model: Embedding model name
//   - --api-key: API key (openai provider only)
//
// Examples:
//
//	rie init                               Interactive setup
//	rie init -y                            Use all defaults
//	rie init --filing-export filings.txt   Configure a filing export source
func runInit(args []string) {
	flags := parseInitFlags(args)

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot get current directory: %v\n", err)
		os.Exit(1)
	}

	configPath := ConfigPath(cwd)
	if _, err := os.Stat(configPath); err == nil && !flags.force {
		fmt.Fprintf(os.Stderr, "Error: %s already exists. Use --force to overwrite.\n", configPath)
		os.Exit(1)
	}

	cfg := createInitConfig(cwd, flags)

	if !flags.nonInteractive {
		runInteractiveConfig(bufio.NewReader(os.Stdin), cfg)
	}

	saveInitConfig(cwd, configPath, cfg)
	printNextSteps()
}

func parseInitFlags(args []string) initFlags {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	var f initFlags
	fs.BoolVar(&f.force, "force", false, "Overwrite existing configuration")
	fs.BoolVar(&f.nonInteractive, "y", false, "Non-interactive mode (use defaults)")
	fs.StringVar(&f.projectID, "project-id", "", "Project identifier")
	fs.StringVar(&f.filingExport, "filing-export", "", "Path to a pipe-delimited filing export file")
	fs.StringVar(&f.outputDir, "output-dir", "", "Output directory for indexes and the vector store")
	fs.StringVar(&f.embeddingProvider, "embedding-provider", "", "Embedding provider (ollama, openai, mock)")
	fs.StringVar(&f.embedURL, "embedding-url", "", "Embedding API base URL")
	fs.StringVar(&f.embedModel, "embedding-model", "", "Embedding model name")
	fs.StringVar(&f.apiKey, "api-key", "", "API key (openai provider only)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rie init [options]

Creates .rie/project.yaml configuration file.

Examples:
  rie init                               # Interactive setup
  rie init -y                            # Non-interactive with defaults
  rie init --filing-export filings.txt   # Configure a filing export source
  rie init --embedding-provider mock -y  # Offline setup for testing

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	return f
}

func createInitConfig(cwd string, f initFlags) *Config {
	pid := f.projectID
	if pid == "" {
		pid = filepath.Base(cwd)
	}
	cfg := DefaultConfig(pid)
	if f.filingExport != "" {
		cfg.Sources.FilingExport = f.filingExport
	}
	if f.outputDir != "" {
		cfg.Output.Dir = f.outputDir
	}
	if f.embeddingProvider != "" {
		cfg.Embedding.Provider = f.embeddingProvider
	}
	if f.embedURL != "" {
		cfg.Embedding.BaseURL = f.embedURL
	}
	if f.embedModel != "" {
		cfg.Embedding.Model = f.embedModel
	}
	if f.apiKey != "" {
		cfg.Embedding.APIKey = f.apiKey
	}
	return cfg
}

func runInteractiveConfig(reader *bufio.Reader, cfg *Config) {
	fmt.Println("RIE Project Configuration")
	fmt.Println("=========================")
	fmt.Println()

	cfg.ProjectID = prompt(reader, "Project ID", cfg.ProjectID)
	cfg.Output.Dir = prompt(reader, "Output directory", cfg.Output.Dir)

	fmt.Println()
	fmt.Println("Input sources (leave empty to configure later in .rie/project.yaml)")
	cfg.Sources.FilingExport = prompt(reader, "Filing export file", cfg.Sources.FilingExport)

	fmt.Println()
	fmt.Println("Embedding Providers: ollama, openai, mock")
	cfg.Embedding.Provider = prompt(reader, "Embedding provider", cfg.Embedding.Provider)
	switch cfg.Embedding.Provider {
	case "ollama":
		cfg.Embedding.BaseURL = prompt(reader, "Ollama URL", cfg.Embedding.BaseURL)
		cfg.Embedding.Model = prompt(reader, "Embedding model", cfg.Embedding.Model)
	case "openai":
		cfg.Embedding.BaseURL = prompt(reader, "API base URL", "https://api.openai.com/v1")
		cfg.Embedding.Model = prompt(reader, "Embedding model", "text-embedding-3-small")
		cfg.Embedding.APIKey = prompt(reader, "API key", cfg.Embedding.APIKey)
	}
	fmt.Println()
}

func saveInitConfig(cwd, configPath string, cfg *Config) {
	rieDir := ConfigDir(cwd)
	if err := os.MkdirAll(rieDir, 0750); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot create .rie directory: %v\n", err)
		os.Exit(1)
	}
	if err := SaveConfig(cfg, configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot save configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created %s\n", configPath)
	addToGitignore(cwd)
}

func printNextSteps() {
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit .rie/project.yaml if needed")
	fmt.Println("  2. Run 'rie run' to ingest your sources")
	fmt.Println("  3. Run 'rie status' to verify the ingestion")
}

// prompt displays an interactive prompt and reads user input from stdin.
//
// If the user presses Enter without providing input, the defaultValue is
// returned. This is used during interactive configuration setup.
func prompt(reader *bufio.Reader, label, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", label, defaultValue)
	} else {
		fmt.Printf("%s: ", label)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultValue
	}
	return input
}

// addToGitignore adds .rie/ to the project's .gitignore file if not
// already present.
//
// It safely appends the entry to .gitignore, avoiding duplicates. If
// .gitignore does not exist or cannot be modified, the function silently
// returns without error.
func addToGitignore(dir string) {
	gitignorePath := filepath.Join(dir, ".gitignore")

	content, err := os.ReadFile(gitignorePath) //nolint:gosec // G304: gitignorePath built from project dir
	if err != nil {
		// No .gitignore, nothing to do
		return
	}

	lines := strings.Split(string(content), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == ".rie/" || line == ".rie" || line == "/.rie/" || line == "/.rie" {
			return // Already present
		}
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_WRONLY, 0600) //nolint:gosec // G304: gitignorePath built from project dir
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	// Add newline if file doesn't end with one
	if len(content) > 0 && content[len(content)-1] != '\n' {
		_, _ = f.WriteString("\n")
	}

	_, _ = f.WriteString("\n# RIE configuration\n.rie/\n")
	fmt.Println("Added .rie/ to .gitignore")
}
