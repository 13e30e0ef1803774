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

// Package vectorstore implements a flat L2 vector index with a binary
// on-disk sidecar and a JSON metadata map keyed by content id.
package vectorstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"log/slog"
)

const (
	indexFileName = "index.bin"
	metaFileName  = "metadata.json"

	// indexMagic marks the binary index file format.
	indexMagic uint32 = 0x52494556 // "RIEV"

	// maxMetaText bounds the text stored per entry in the metadata map.
	maxMetaText = 500
)

// Encoder turns query text into an embedding vector. Satisfied by the
// ingestion Embedder.
type Encoder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Entry is the metadata stored per content id.
type Entry struct {
	Source    string         `json:"source"`
	Text      string         `json:"text"`
	Slot      int            `json:"vector_index_slot"`
	CreatedAt string         `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Result is one search hit, ordered by ascending L2 distance.
type Result struct {
	ContentID  string         `json:"content_id"`
	Source     string         `json:"source"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Distance   float64        `json:"distance"`
	Similarity float64        `json:"similarity"`
}

// Store is an in-memory flat L2 index of fixed dimension with two
// persistent sidecar files: a binary vector file and a JSON metadata
// map. Upserts by content id are idempotent; slots are assigned
// monotonically and never reused within a run.
type Store struct {
	dir     string
	dim     int
	encoder Encoder
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	closed  bool
	vectors []float32 // flat, len = dim * slots
	ids     []string  // slot -> content id
	meta    map[string]*Entry
}

// Open loads the store from dir, creating it when absent. A corrupt or
// dimension-mismatched sidecar is logged and replaced by a fresh empty
// index rather than failing the run.
func Open(dir string, dim int, encoder Encoder, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dim)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", dir, err)
	}

	s := &Store{
		dir:     dir,
		dim:     dim,
		encoder: encoder,
		logger:  logger,
		now:     time.Now,
		meta:    make(map[string]*Entry),
	}

	if err := s.load(); err != nil {
		logger.Warn("vectorstore.load.failed", "dir", dir, "error", err)
		s.vectors = nil
		s.ids = nil
		s.meta = make(map[string]*Entry)
	}
	return s, nil
}

// SetClock overrides the timestamp source for created_at fields.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Len returns the number of stored vectors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Dimension returns the index dimension.
func (s *Store) Dimension() int { return s.dim }

// Has reports whether a content id is already stored.
func (s *Store) Has(contentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.meta[contentID]
	return ok
}

// Vector returns a copy of the stored vector for a content id.
func (s *Store) Vector(contentID string) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.meta[contentID]
	if !ok {
		return nil, false
	}
	start := entry.Slot * s.dim
	return append([]float32(nil), s.vectors[start:start+s.dim]...), true
}

// Upsert stores a vector under its content id. A second upsert of the
// same id is a no-op: the metadata map and index size are unchanged.
// Returns the assigned slot.
func (s *Store) Upsert(ctx context.Context, contentID, source, text string, vector []float32, metadata map[string]any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	if entry, ok := s.meta[contentID]; ok {
		return entry.Slot, nil
	}
	if len(vector) != s.dim {
		return 0, fmt.Errorf("vector dimension %d does not match index dimension %d", len(vector), s.dim)
	}

	if len(text) > maxMetaText {
		text = text[:maxMetaText]
	}
	slot := len(s.ids)
	s.ids = append(s.ids, contentID)
	s.vectors = append(s.vectors, vector...)
	s.meta[contentID] = &Entry{
		Source:    source,
		Text:      text,
		Slot:      slot,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
		Metadata:  metadata,
	}
	return slot, nil
}

// Search encodes the query text and returns the topK nearest stored
// vectors by ascending L2 distance, each augmented with
// similarity = 1 / (1 + distance).
func (s *Store) Search(ctx context.Context, queryText string, topK int) ([]Result, error) {
	if s.encoder == nil {
		return nil, fmt.Errorf("store has no encoder for query text")
	}
	rows, err := s.encoder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	return s.SearchVector(ctx, rows[0], topK)
}

// SearchVector searches with an already-encoded query vector.
func (s *Store) SearchVector(ctx context.Context, query []float32, topK int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), s.dim)
	}

	results := make([]Result, 0, len(s.ids))
	for slot, id := range s.ids {
		dist := s.distance(slot, query)
		entry := s.meta[id]
		results = append(results, Result{
			ContentID:  id,
			Source:     entry.Source,
			Text:       entry.Text,
			Metadata:   entry.Metadata,
			Distance:   dist,
			Similarity: 1.0 / (1.0 + dist),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *Store) distance(slot int, query []float32) float64 {
	base := slot * s.dim
	var sum float64
	for i := 0; i < s.dim; i++ {
		d := float64(s.vectors[base+i]) - float64(query[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Save writes both sidecar files atomically.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if err := s.saveIndex(); err != nil {
		return err
	}
	return s.saveMeta()
}

// Close saves and marks the store closed. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if err := s.saveIndex(); err != nil {
		return err
	}
	if err := s.saveMeta(); err != nil {
		return err
	}
	s.closed = true
	return nil
}

func (s *Store) saveIndex() error {
	path := filepath.Join(s.dir, indexFileName)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}

	header := []uint32{indexMagic, uint32(s.dim), uint32(len(s.ids))}
	if err := binary.Write(f, binary.LittleEndian, header); err != nil {
		_ = f.Close()
		return fmt.Errorf("write index header: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, s.vectors); err != nil {
		_ = f.Close()
		return fmt.Errorf("write index vectors: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize index file: %w", err)
	}
	return nil
}

func (s *Store) saveMeta() error {
	path := filepath.Join(s.dir, metaFileName)
	tmp := path + ".tmp"

	data, err := json.MarshalIndent(s.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize metadata: %w", err)
	}
	return nil
}

func (s *Store) load() error {
	indexPath := filepath.Join(s.dir, indexFileName)
	metaPath := filepath.Join(s.dir, metaFileName)

	indexData, err := os.ReadFile(indexPath)
	if os.IsNotExist(err) {
		return nil // fresh store
	}
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	metaData, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}

	if len(indexData) < 12 {
		return fmt.Errorf("index file truncated (%d bytes)", len(indexData))
	}
	magic := binary.LittleEndian.Uint32(indexData[0:4])
	dim := binary.LittleEndian.Uint32(indexData[4:8])
	count := binary.LittleEndian.Uint32(indexData[8:12])
	if magic != indexMagic {
		return fmt.Errorf("index file has wrong magic %#x", magic)
	}
	if int(dim) != s.dim {
		return fmt.Errorf("index dimension %d does not match configured %d", dim, s.dim)
	}
	want := 12 + int(count)*s.dim*4
	if len(indexData) != want {
		return fmt.Errorf("index file size %d, want %d for %d vectors", len(indexData), want, count)
	}

	vectors := make([]float32, int(count)*s.dim)
	for i := range vectors {
		bits := binary.LittleEndian.Uint32(indexData[12+i*4:])
		vectors[i] = math.Float32frombits(bits)
	}

	meta := make(map[string]*Entry)
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return fmt.Errorf("parse metadata: %w", err)
	}
	if len(meta) != int(count) {
		return fmt.Errorf("metadata has %d entries, index has %d vectors", len(meta), count)
	}

	ids := make([]string, count)
	for id, entry := range meta {
		if entry.Slot < 0 || entry.Slot >= int(count) {
			return fmt.Errorf("metadata slot %d out of range", entry.Slot)
		}
		if ids[entry.Slot] != "" {
			return fmt.Errorf("duplicate metadata slot %d", entry.Slot)
		}
		ids[entry.Slot] = id
	}

	s.vectors = vectors
	s.ids = ids
	s.meta = meta
	s.logger.Debug("vectorstore.load.complete", "dir", s.dir, "vectors", count)
	return nil
}
