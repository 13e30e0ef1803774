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
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the project configuration stored in .rie/project.yaml.
type Config struct {
	ProjectID string          `yaml:"project_id"`
	Sources   SourcesConfig   `yaml:"sources"`
	Output    OutputConfig    `yaml:"output"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// SourcesConfig lists the input sources for a run. At least one of the
// three must be set before 'rie run' can do anything.
type SourcesConfig struct {
	FilingExport string   `yaml:"filing_export,omitempty"`
	PDFs         []string `yaml:"pdfs,omitempty"`
	Tabular      []string `yaml:"tabular,omitempty"`
}

// OutputConfig controls where the index tree and vector store land.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// IngestConfig holds tunables for the ingestion pipeline.
type IngestConfig struct {
	PageWorkers int `yaml:"page_workers,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults for the
// given project identifier.
func DefaultConfig(projectID string) *Config {
	cfg := &Config{ProjectID: projectID}
	cfg.Output.Dir = "rie-data"
	cfg.Embedding.Provider = "ollama"
	cfg.Embedding.BaseURL = "http://localhost:11434"
	cfg.Embedding.Model = "nomic-embed-text"
	return cfg
}

// ConfigDir returns the .rie directory under dir.
func ConfigDir(dir string) string {
	return filepath.Join(dir, ".rie")
}

// ConfigPath returns the project.yaml path under dir.
func ConfigPath(dir string) string {
	return filepath.Join(ConfigDir(dir), "project.yaml")
}

// LoadConfig reads the configuration from path, or from
// ./.rie/project.yaml when path is empty.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("cannot get current directory: %w", err)
		}
		path = ConfigPath(cwd)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the user's own --config flag
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no configuration found at %s (run 'rie init' first)", path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("config %s has no project_id", path)
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "rie-data"
	}
	return &cfg, nil
}

// SaveConfig writes the configuration as YAML to path.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# RIE project configuration\n# See 'rie init --help' for field descriptions.\n")
	if err := os.WriteFile(path, append(header, data...), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
