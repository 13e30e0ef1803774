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
)

// Checkpoint tracks ingestion progress for restartability. Fully
// processed PDFs are skipped on resume; filing exports and tabular
// sources are cheap to re-parse and always rerun so decomposition and
// analysis see the complete entity set.
type Checkpoint struct {
	ProjectID          string            `json:"project_id"`
	CompletedPDFs      []string          `json:"completed_pdfs,omitempty"` // pdf names with a written document index
	FilingsDone        bool              `json:"filings_done"`             // filing export fully decomposed
	TabularDone        []string          `json:"tabular_done,omitempty"`   // tabular sources fully loaded
	EntitiesProcessed  int               `json:"entities_processed"`
	ChildrenWritten    int               `json:"children_written"`
	EmbeddingsComputed int               `json:"embeddings_computed"`
	SourceHashes       map[string]string `json:"source_hashes,omitempty"` // source path -> content hash (for detecting modified inputs)
	StartTime          string            `json:"start_time"`
	LastUpdateTime     string            `json:"last_update_time"`
}

// HasPDF reports whether the named PDF was already fully processed.
func (c *Checkpoint) HasPDF(name string) bool {
	for _, p := range c.CompletedPDFs {
		if p == name {
			return true
		}
	}
	return false
}

// DropPDF removes the named PDF from the completed list so it is
// reprocessed on the next pass. Used when a source file's content hash
// changed since the checkpoint was written.
func (c *Checkpoint) DropPDF(name string) {
	kept := c.CompletedPDFs[:0]
	for _, p := range c.CompletedPDFs {
		if p != name {
			kept = append(kept, p)
		}
	}
	c.CompletedPDFs = kept
}

// HasTabular reports whether the named tabular source was already loaded.
func (c *Checkpoint) HasTabular(name string) bool {
	for _, t := range c.TabularDone {
		if t == name {
			return true
		}
	}
	return false
}

// CheckpointManager manages checkpoint persistence.
type CheckpointManager struct {
	checkpointPath string
}

// NewCheckpointManager creates a new checkpoint manager.
func NewCheckpointManager(checkpointPath string) *CheckpointManager {
	return &CheckpointManager{
		checkpointPath: checkpointPath,
	}
}

// LoadCheckpoint loads a checkpoint from disk.
func (cm *CheckpointManager) LoadCheckpoint(projectID string) (*Checkpoint, error) {
	path := cm.getCheckpointPath(projectID)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No checkpoint exists
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}

	if checkpoint.SourceHashes == nil {
		checkpoint.SourceHashes = make(map[string]string)
	}

	return &checkpoint, nil
}

// SaveCheckpoint saves a checkpoint to disk.
func (cm *CheckpointManager) SaveCheckpoint(checkpoint *Checkpoint) error {
	path := cm.getCheckpointPath(checkpoint.ProjectID)

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	// Write atomically (temp file + rename)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint temp: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) // Cleanup on error (ignore error as rename already failed)
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}

// ClearCheckpoint removes a checkpoint file.
func (cm *CheckpointManager) ClearCheckpoint(projectID string) error {
	path := cm.getCheckpointPath(projectID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}
	return nil
}

// getCheckpointPath returns the checkpoint file path for a project.
func (cm *CheckpointManager) getCheckpointPath(projectID string) string {
	if cm.checkpointPath != "" {
		return filepath.Join(cm.checkpointPath, fmt.Sprintf("checkpoint-%s.json", projectID))
	}
	// Default: current directory
	return fmt.Sprintf("checkpoint-%s.json", projectID)
}
