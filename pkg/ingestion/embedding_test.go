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
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

func TestMockProvider_Deterministic(t *testing.T) {
	p := NewMockEmbeddingProvider(384, nil)
	ctx := context.Background()

	a, err := p.Embed(ctx, "Acme Holdings LLC")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, err := p.Embed(ctx, "Acme Holdings LLC")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(a) != 384 {
		t.Fatalf("dimension = %d, want 384", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embeddings differ at %d: %v vs %v", i, a[i], b[i])
		}
	}

	c, err := p.Embed(ctx, "Beta Corp")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical embeddings")
	}
}

func TestMockProvider_UnitNorm(t *testing.T) {
	p := NewMockEmbeddingProvider(384, nil)
	vec, err := p.Embed(context.Background(), "some record text")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if math.Abs(norm-1.0) > 1e-5 {
		t.Errorf("L2 norm = %f, want 1.0", norm)
	}
}

func TestEmbedder_EmptyTextZeroVector(t *testing.T) {
	e := NewEmbedder(func() (EmbeddingProvider, error) {
		return NewMockEmbeddingProvider(8, nil), nil
	}, nil)

	rows, err := e.Embed(context.Background(), []string{"", "   ", "real text"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	for i := 0; i < 2; i++ {
		for _, v := range rows[i] {
			if v != 0 {
				t.Fatalf("row %d not zero: %v", i, rows[i])
			}
		}
	}
	var norm float64
	for _, v := range rows[2] {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		t.Error("non-empty text produced a zero vector")
	}
}

func TestEmbedder_TruncatesLongText(t *testing.T) {
	e := NewEmbedder(func() (EmbeddingProvider, error) {
		return NewMockEmbeddingProvider(8, nil), nil
	}, nil)

	long := ""
	for len(long) <= maxEmbedChars {
		long += "page text repeated many times. "
	}
	if _, err := e.Embed(context.Background(), []string{long}); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if e.TruncatedCount() != 1 {
		t.Errorf("truncated = %d, want 1", e.TruncatedCount())
	}
}

func TestEmbedder_ProviderLoadFailureIsFatal(t *testing.T) {
	e := NewEmbedder(func() (EmbeddingProvider, error) {
		return nil, errors.New("model download failed")
	}, nil)

	if _, err := e.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error from failed provider load")
	}
	if _, err := e.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("load failure must persist on subsequent calls")
	}
}

// flakyProvider fails with a retryable error until failures is
// exhausted, then succeeds.
type flakyProvider struct {
	failures int
	calls    int
}

func (f *flakyProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, fmt.Errorf("http request: connection refused")
	}
	return []float32{1, 0, 0, 0}, nil
}

func (f *flakyProvider) Model() string  { return "flaky" }
func (f *flakyProvider) Dimension() int { return 4 }

func TestEmbedder_RetriesTransientErrors(t *testing.T) {
	fp := &flakyProvider{failures: 2}
	e := NewEmbedder(func() (EmbeddingProvider, error) { return fp, nil }, nil)
	e.SetRetryConfig(RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2.0})

	rows, err := e.Embed(context.Background(), []string{"text"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if fp.calls != 3 {
		t.Errorf("calls = %d, want 3", fp.calls)
	}
	if rows[0][0] != 1 {
		t.Errorf("row = %v", rows[0])
	}
	if e.ErrorCount() != 0 {
		t.Errorf("error count = %d, want 0", e.ErrorCount())
	}
}

func TestEmbedder_ExhaustedRetriesYieldZeroVector(t *testing.T) {
	fp := &flakyProvider{failures: 10}
	e := NewEmbedder(func() (EmbeddingProvider, error) { return fp, nil }, nil)
	e.SetRetryConfig(RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2.0})

	rows, err := e.Embed(context.Background(), []string{"text"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for _, v := range rows[0] {
		if v != 0 {
			t.Fatalf("failed text must produce a zero vector, got %v", rows[0])
		}
	}
	if e.ErrorCount() != 1 {
		t.Errorf("error count = %d, want 1", e.ErrorCount())
	}
}

func TestIsRetryableEmbeddingError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("context deadline exceeded"), true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("unexpected EOF"), true},
		{errors.New("ollama API error (status 503 ): overloaded"), true},
		{errors.New("invalid model name"), false},
		{errors.New("api key is required"), false},
	}
	for _, tt := range tests {
		if got := isRetryableEmbeddingError(tt.err); got != tt.want {
			t.Errorf("isRetryableEmbeddingError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestComputeBackoffWithJitter_Capped(t *testing.T) {
	capDur := 50 * time.Millisecond
	for attempt := 0; attempt < 8; attempt++ {
		d := computeBackoffWithJitter(10*time.Millisecond, attempt, 2.0, capDur)
		if d < 0 || d > capDur {
			t.Errorf("attempt %d: backoff %v outside [0, %v]", attempt, d, capDur)
		}
	}
}

func TestNormalizeEmbedding_ZeroVectorUnchanged(t *testing.T) {
	zero := []float32{0, 0, 0}
	out := normalizeEmbedding(zero)
	for _, v := range out {
		if v != 0 {
			t.Fatalf("zero vector changed: %v", out)
		}
	}
}

func TestCreateEmbeddingProvider(t *testing.T) {
	if _, err := CreateEmbeddingProvider("mock", "", "", "", nil); err != nil {
		t.Errorf("mock: %v", err)
	}
	if _, err := CreateEmbeddingProvider("ollama", "", "", "", nil); err != nil {
		t.Errorf("ollama: %v", err)
	}
	if _, err := CreateEmbeddingProvider("openai", "", "", "", nil); err == nil {
		t.Error("openai without api key must fail")
	}
	if _, err := CreateEmbeddingProvider("bogus", "", "", "", nil); err == nil {
		t.Error("unknown provider must fail")
	}
}
