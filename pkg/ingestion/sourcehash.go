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

package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
)

// Source change detection. Input sources are plain files, so changes
// are detected by content hash rather than version control: a source
// whose hash differs from the one recorded in the checkpoint must be
// reprocessed even if the checkpoint marks it complete.

// SourceDelta compares the current input sources against the hashes
// recorded by a previous run.
type SourceDelta struct {
	// Added are sources with no recorded hash (first seen this run).
	Added []string

	// Modified are sources whose content hash changed.
	Modified []string

	// Unchanged are sources whose content hash matches the record.
	Unchanged []string

	// Hashes maps every current source path to its content hash.
	Hashes map[string]string
}

// Changed reports whether a source is new or modified since the
// recorded hashes.
func (d *SourceDelta) Changed(path string) bool {
	for _, p := range d.Added {
		if p == path {
			return true
		}
	}
	for _, p := range d.Modified {
		if p == path {
			return true
		}
	}
	return false
}

// HasChanges returns true if any source is new or modified.
func (d *SourceDelta) HasChanges() bool {
	return len(d.Added)+len(d.Modified) > 0
}

// HashSource returns the hex SHA-256 of a file's contents.
func HashSource(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is a configured input source
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash source %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DetectSourceChanges hashes every path and buckets it against the
// previously recorded hashes. Paths are processed in sorted order so
// the delta is deterministic.
func DetectSourceChanges(paths []string, previous map[string]string) (*SourceDelta, error) {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	delta := &SourceDelta{Hashes: make(map[string]string, len(sorted))}
	for _, path := range sorted {
		hash, err := HashSource(path)
		if err != nil {
			return nil, err
		}
		delta.Hashes[path] = hash

		prev, ok := previous[path]
		switch {
		case !ok:
			delta.Added = append(delta.Added, path)
		case prev != hash:
			delta.Modified = append(delta.Modified, path)
		default:
			delta.Unchanged = append(delta.Unchanged, path)
		}
	}
	return delta, nil
}
