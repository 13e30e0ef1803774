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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("demo")
	if cfg.ProjectID != "demo" {
		t.Errorf("ProjectID = %q, want %q", cfg.ProjectID, "demo")
	}
	if cfg.Output.Dir == "" {
		t.Error("default output dir is empty")
	}
	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("default provider = %q, want ollama", cfg.Embedding.Provider)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.yaml")

	cfg := DefaultConfig("roundtrip")
	cfg.Sources.FilingExport = "filings.txt"
	cfg.Sources.Tabular = []string{"registrations.json"}
	cfg.Ingest.PageWorkers = 6

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.ProjectID != "roundtrip" {
		t.Errorf("ProjectID = %q, want %q", loaded.ProjectID, "roundtrip")
	}
	if loaded.Sources.FilingExport != "filings.txt" {
		t.Errorf("FilingExport = %q, want filings.txt", loaded.Sources.FilingExport)
	}
	if len(loaded.Sources.Tabular) != 1 || loaded.Sources.Tabular[0] != "registrations.json" {
		t.Errorf("Tabular = %v, want [registrations.json]", loaded.Sources.Tabular)
	}
	if loaded.Ingest.PageWorkers != 6 {
		t.Errorf("PageWorkers = %d, want 6", loaded.Ingest.PageWorkers)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config")
	}
	if !strings.Contains(err.Error(), "rie init") {
		t.Errorf("error %q should point the user at 'rie init'", err)
	}
}

func TestLoadConfigRequiresProjectID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.yaml")
	if err := os.WriteFile(path, []byte("output:\n  dir: data\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for config without project_id")
	}
}

func TestLoadConfigDefaultsOutputDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.yaml")
	if err := os.WriteFile(path, []byte("project_id: p\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Output.Dir == "" {
		t.Error("output dir not defaulted")
	}
}
