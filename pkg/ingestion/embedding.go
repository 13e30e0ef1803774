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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"log/slog"
)

// EmbeddingProvider generates embeddings for record text.
type EmbeddingProvider interface {
	// Embed generates an embedding vector for the given text.
	// Returns a normalized vector (L2 norm = 1.0) or error.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Model returns the provider's model name for index metadata.
	Model() string

	// Dimension returns the embedding dimension D.
	Dimension() int
}

// RetryConfig controls retry behavior for transient provider errors.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// maxEmbedChars bounds the text handed to a provider. Record text
// representations are short; pages of scanned filings are not.
const maxEmbedChars = 2000

// MockEmbeddingProvider generates deterministic mock embeddings for
// testing and offline runs.
type MockEmbeddingProvider struct {
	dimension int
	model     string
	logger    *slog.Logger
}

// NewMockEmbeddingProvider creates a mock embedding provider.
func NewMockEmbeddingProvider(dimension int, logger *slog.Logger) *MockEmbeddingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockEmbeddingProvider{
		dimension: dimension,
		model:     "mock-minilm",
		logger:    logger,
	}
}

// Embed generates a deterministic mock embedding based on text hash.
func (m *MockEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	// Deterministic pseudo-random values from the text hash. Not
	// semantically meaningful, but stable across runs.
	hash := hashString(text)

	embedding := make([]float32, m.dimension)
	for i := 0; i < m.dimension; i++ {
		val := float32((hash+uint64(i)*7919)%10000) / 10000.0
		embedding[i] = val*2.0 - 1.0 // Map to [-1, 1]
	}

	return normalizeEmbedding(embedding), nil
}

// Model returns the mock model name.
func (m *MockEmbeddingProvider) Model() string { return m.model }

// Dimension returns the configured dimension.
func (m *MockEmbeddingProvider) Dimension() int { return m.dimension }

func hashString(s string) uint64 {
	var hash uint64 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint64(c)
	}
	return hash
}

// Embedder wraps a provider behind one-time lazy initialization and
// maps ordered batches of texts to unit-norm vectors. Empty strings
// map to the zero vector; over-long texts are truncated.
//
// The Embedder is safe for concurrent use: initialization is guarded
// by a mutex, and providers are re-entrant after init.
type Embedder struct {
	mu       sync.Mutex
	provider EmbeddingProvider
	newFn    func() (EmbeddingProvider, error)
	logger   *slog.Logger
	retry    RetryConfig

	truncated int
	errors    int
}

// NewEmbedder creates an Embedder whose provider is constructed by
// newFn on first use.
func NewEmbedder(newFn func() (EmbeddingProvider, error), logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		newFn:  newFn,
		logger: logger,
		retry:  RetryConfig{MaxRetries: 3, InitialBackoff: 200 * time.Millisecond, MaxBackoff: 2 * time.Second, Multiplier: 2.0},
	}
}

// SetRetryConfig sets the retry configuration for embedding operations.
func (e *Embedder) SetRetryConfig(cfg RetryConfig) {
	// Basic sanity defaults to avoid zero values causing busy loops
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 2 * time.Second
	}
	if cfg.Multiplier <= 1.0 {
		cfg.Multiplier = 2.0
	}
	e.mu.Lock()
	e.retry = cfg
	e.mu.Unlock()
}

// init constructs the provider once. A load failure is permanent and
// surfaces on every subsequent call: the pipeline treats it as a hard
// abort.
func (e *Embedder) init() (EmbeddingProvider, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.provider != nil {
		return e.provider, nil
	}
	provider, err := e.newFn()
	if err != nil {
		return nil, fmt.Errorf("load embedding provider: %w", err)
	}
	e.provider = provider
	e.logger.Debug("embedding.provider.loaded", "model", provider.Model(), "dimension", provider.Dimension())
	return provider, nil
}

// Model returns the provider's model name, initializing it if needed.
func (e *Embedder) Model() (string, error) {
	p, err := e.init()
	if err != nil {
		return "", err
	}
	return p.Model(), nil
}

// Dimension returns the embedding dimension, initializing the
// provider if needed.
func (e *Embedder) Dimension() (int, error) {
	p, err := e.init()
	if err != nil {
		return 0, err
	}
	return p.Dimension(), nil
}

// Embed maps an ordered batch of texts to a matrix of unit-norm rows.
// Row i corresponds to texts[i]. Empty strings produce zero vectors;
// a provider failure after retries produces a zero vector for that
// row, logged, never fatal.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	provider, err := e.init()
	if err != nil {
		return nil, err
	}
	dim := provider.Dimension()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			out[i] = make([]float32, dim)
			continue
		}
		vec, err := e.embedOne(ctx, provider, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.mu.Lock()
			e.errors++
			e.mu.Unlock()
			e.logger.Error("embedding.text.failed", "text_len", len(text), "error", err)
			vec = make([]float32, dim)
		}
		out[i] = vec
	}
	return out, nil
}

// embedOne embeds a single text with classified retry and jittered
// backoff.
func (e *Embedder) embedOne(ctx context.Context, provider EmbeddingProvider, text string) ([]float32, error) {
	if len(text) > maxEmbedChars {
		text = text[:maxEmbedChars]
		e.mu.Lock()
		e.truncated++
		e.mu.Unlock()
	}

	var embedding []float32
	var err error
	maxRetries := e.retry.MaxRetries
	for attempt := 0; attempt < maxRetries; attempt++ {
		embedding, err = provider.Embed(ctx, text)
		if err == nil {
			return embedding, nil
		}
		if !isRetryableEmbeddingError(err) || attempt == maxRetries-1 {
			break
		}
		sleep := computeBackoffWithJitter(e.retry.InitialBackoff, attempt, e.retry.Multiplier, e.retry.MaxBackoff)
		recordEmbedRetry()
		e.logger.Warn("embedding.retry", "attempt", attempt+1, "sleep_ms", sleep.Milliseconds(), "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, err
}

// TruncatedCount reports how many texts were truncated so far.
func (e *Embedder) TruncatedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.truncated
}

// ErrorCount reports how many texts failed after retries so far.
func (e *Embedder) ErrorCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errors
}

// isRetryableEmbeddingError classifies provider errors: network/timeout and HTTP 5xx/429 are retryable.
func isRetryableEmbeddingError(err error) bool {
	if err == nil {
		return false
	}
	// Best-effort classification based on error text to avoid importing provider internals
	msg := err.Error()
	retrySubstr := []string{"timeout", "temporarily unavailable", "connection refused", "connection reset", "deadline exceeded", "EOF"}
	for _, s := range retrySubstr {
		if containsFold(msg, s) {
			return true
		}
	}
	// HTTP status codes if present in message: treat 429 and 5xx as retryable
	httpRetry := []string{" 429 ", " 500 ", " 502 ", " 503 ", " 504 "}
	for _, s := range httpRetry {
		if containsFold(msg, s) {
			return true
		}
	}
	return false
}

// computeBackoffWithJitter returns exponential backoff with full jitter
func computeBackoffWithJitter(base time.Duration, attempt int, mult float64, capDur time.Duration) time.Duration {
	exp := float64(base)
	for i := 0; i < attempt; i++ {
		exp *= mult
	}
	d := time.Duration(exp)
	if d > capDur {
		d = capDur
	}
	// full jitter [0, d]
	if d <= 0 {
		return base
	}
	return time.Duration(randInt63n(int64(d) + 1))
}

// containsFold is a lightweight strings.ContainsFold
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// randInt63n returns [0,n). Separate to avoid importing math/rand globally here.
var randMu sync.Mutex
var randSeed int64

func randInt63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	randMu.Lock()
	defer randMu.Unlock()
	// simple LCG for deterministic-ish jitter without extra deps
	const a = 6364136223846793005
	const c = 1
	const m = 1<<63 - 1
	if randSeed == 0 {
		randSeed = time.Now().UnixNano() & m
	}
	randSeed = (a*randSeed + c) & m
	if randSeed < 0 {
		randSeed = -randSeed
	}
	return randSeed % n
}

// CreateEmbeddingProvider creates an embedding provider from config.
// Supported providers:
//   - "mock": deterministic embeddings, no external service (384 dimensions)
//   - "ollama": local Ollama server
//   - "openai": OpenAI-compatible API
func CreateEmbeddingProvider(providerType, baseURL, model, apiKey string, logger *slog.Logger) (EmbeddingProvider, error) {
	switch providerType {
	case "mock", "":
		return NewMockEmbeddingProvider(384, logger), nil

	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaEmbeddingProvider(baseURL, model, logger), nil

	case "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("api key is required for openai provider")
		}
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		if model == "" {
			model = "text-embedding-3-small"
		}
		return NewOpenAIEmbeddingProvider(apiKey, baseURL, model, logger), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: mock, ollama, openai)", providerType)
	}
}

// =============================================================================
// OLLAMA EMBEDDING PROVIDER
// =============================================================================

// OllamaEmbeddingProvider generates embeddings using a local Ollama
// server.
type OllamaEmbeddingProvider struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
	logger     *slog.Logger

	mu sync.Mutex
}

// OllamaEmbedRequest represents the request body for Ollama embeddings API.
type OllamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// OllamaEmbedResponse represents the response from Ollama embeddings API.
type OllamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// OllamaErrorResponse represents an error response from Ollama.
type OllamaErrorResponse struct {
	Error string `json:"error"`
}

// isNomicModel checks if the model is a Nomic embedding model that supports
// asymmetric search prefixes (search_document/search_query).
func isNomicModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "nomic")
}

// NewOllamaEmbeddingProvider creates a new Ollama embedding provider.
func NewOllamaEmbeddingProvider(baseURL, model string, logger *slog.Logger) *OllamaEmbeddingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaEmbeddingProvider{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // Local models may be slower
		},
		logger: logger,
	}
}

// Embed generates an embedding for the given text using local Ollama.
func (o *OllamaEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	// For nomic-embed-text and similar models, add "search_document:"
	// prefix to enable asymmetric embeddings.
	prompt := text
	if isNomicModel(o.model) {
		prompt = "search_document: " + text
	}

	reqBody := OllamaEmbedRequest{
		Model:  o.model,
		Prompt: prompt,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := o.baseURL + "/api/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request (is Ollama running at %s?): %w", o.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp OllamaErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var embedResp OllamaEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if len(embedResp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned empty embedding")
	}

	embedding := make([]float32, len(embedResp.Embedding))
	for i, v := range embedResp.Embedding {
		embedding[i] = float32(v)
	}

	o.mu.Lock()
	if o.dimension == 0 {
		o.dimension = len(embedding)
	}
	o.mu.Unlock()

	return normalizeEmbedding(embedding), nil
}

// Model returns the Ollama model name.
func (o *OllamaEmbeddingProvider) Model() string { return o.model }

// Dimension returns the embedding dimension once known; 768 (the
// nomic-embed-text dimension) before the first call.
func (o *OllamaEmbeddingProvider) Dimension() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dimension == 0 {
		return 768
	}
	return o.dimension
}

// =============================================================================
// OPENAI-COMPATIBLE EMBEDDING PROVIDER
// =============================================================================

// OpenAIEmbeddingProvider generates embeddings using OpenAI or compatible APIs.
// Works with OpenAI, Azure OpenAI, Anyscale, Together AI, etc.
type OpenAIEmbeddingProvider struct {
	apiKey     string
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
	logger     *slog.Logger

	mu sync.Mutex
}

// OpenAIEmbedRequest represents the request body for OpenAI embeddings API.
type OpenAIEmbedRequest struct {
	Input          string `json:"input"`
	Model          string `json:"model"`
	EncodingFormat string `json:"encoding_format,omitempty"` // "float" or "base64"
}

// OpenAIEmbedResponse represents the response from OpenAI embeddings API.
type OpenAIEmbedResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// OpenAIErrorResponse represents an error response from OpenAI API.
type OpenAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewOpenAIEmbeddingProvider creates a new OpenAI embedding provider.
func NewOpenAIEmbeddingProvider(apiKey, baseURL, model string, logger *slog.Logger) *OpenAIEmbeddingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIEmbeddingProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// Embed generates an embedding for the given text using the OpenAI API.
func (o *OpenAIEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := OpenAIEmbedRequest{
		Input:          text,
		Model:          o.model,
		EncodingFormat: "float",
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := o.baseURL + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp OpenAIErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, string(body))
	}

	var embedResp OpenAIEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if len(embedResp.Data) == 0 || len(embedResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai returned empty embedding")
	}

	embedding := make([]float32, len(embedResp.Data[0].Embedding))
	for i, v := range embedResp.Data[0].Embedding {
		embedding[i] = float32(v)
	}

	o.mu.Lock()
	if o.dimension == 0 {
		o.dimension = len(embedding)
	}
	o.mu.Unlock()

	return normalizeEmbedding(embedding), nil
}

// Model returns the OpenAI model name.
func (o *OpenAIEmbeddingProvider) Model() string { return o.model }

// Dimension returns the embedding dimension once known; 1536 (the
// text-embedding-3-small dimension) before the first call.
func (o *OpenAIEmbeddingProvider) Dimension() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dimension == 0 {
		return 1536
	}
	return o.dimension
}

// normalizeEmbedding normalizes an embedding vector to unit length (L2 norm = 1).
func normalizeEmbedding(embedding []float32) []float32 {
	if len(embedding) == 0 {
		return embedding
	}

	var norm float64
	for _, v := range embedding {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)

	// Avoid division by zero
	if norm == 0 {
		return embedding
	}

	normf := float32(norm)
	for i := range embedding {
		embedding[i] /= normf
	}

	return embedding
}
