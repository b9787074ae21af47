package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperjump/ragkit/internal/models"
	"github.com/hyperjump/ragkit/pkg/utils"
	"go.uber.org/zap"
)

// HTTPEmbedder calls an embeddings endpoint speaking either the OpenAI shape
// ({"data":[{"embedding":[...],"index":0}]}) or the Ollama /api/embed shape ({"embeddings":[[...]]}).
type HTTPEmbedder struct {
	endpoint   string
	model      string
	apiKey     string
	dimensions int
	batchSize  int
	workers    int
	timeout    time.Duration
	retry      RetryConfig
	client     *http.Client
	cache      *EmbeddingCache
	logger     *zap.Logger
}

// HTTPOption configures an HTTPEmbedder.
type HTTPOption func(*HTTPEmbedder)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(e *HTTPEmbedder) { e.client = c }
}

// WithRetryConfig replaces the default retry policy.
func WithRetryConfig(rc RetryConfig) HTTPOption {
	return func(e *HTTPEmbedder) { e.retry = rc }
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l *zap.Logger) HTTPOption {
	return func(e *HTTPEmbedder) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithWorkers bounds the number of concurrent requests made by EmbedBatch.
func WithWorkers(n int) HTTPOption {
	return func(e *HTTPEmbedder) { e.workers = n }
}

// WithCache sets the embedding cache. A nil cache disables caching.
func WithCache(c *EmbeddingCache) HTTPOption {
	return func(e *HTTPEmbedder) { e.cache = c }
}

// NewHTTPEmbedder returns an embedder backed by a remote model server.
func NewHTTPEmbedder(cfg ModelConfig, dimensions int, opts ...HTTPOption) (*HTTPEmbedder, error) {
	cfg = cfg.withDefaults()
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: http runtime requires an endpoint", models.ErrConfiguration)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", models.ErrConfiguration)
	}
	e := &HTTPEmbedder{
		endpoint:   cfg.Endpoint,
		model:      cfg.Name,
		apiKey:     cfg.APIKey,
		dimensions: dimensions,
		batchSize:  cfg.BatchSize,
		workers:    DefaultWorkers,
		timeout:    cfg.Timeout,
		retry:      DefaultRetryConfig(),
		client:     &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Embed returns the embedding for one text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in request batches, preserving input order. Cached texts are not sent.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var pending []int
	for i, text := range texts {
		if vec, ok := e.cache.Get(text); ok {
			out[i] = vec
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return out, nil
	}

	nBatches := (len(pending) + e.batchSize - 1) / e.batchSize
	err := runParallel(ctx, nBatches, e.workers, func(ctx context.Context, b int) error {
		idx := pending[b*e.batchSize : min((b+1)*e.batchSize, len(pending))]
		batch := make([]string, len(idx))
		for j, i := range idx {
			batch[j] = texts[i]
		}
		vecs, err := e.request(ctx, batch)
		if err != nil {
			return err
		}
		for j, i := range idx {
			out[i] = vecs[j]
			e.cache.Set(texts[i], vecs[j])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *HTTPEmbedder) request(ctx context.Context, batch []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	vecs, err := retryWithBackoff(ctx, e.retry, func() ([][]float32, error) {
		return e.call(ctx, batch)
	})
	if err != nil {
		e.logger.Warn("embedding request failed",
			zap.String("endpoint", e.endpoint),
			zap.Int("texts", len(batch)),
			zap.Error(err))
		return nil, classifyError(err)
	}
	e.logger.Debug("embedded batch",
		zap.Int("texts", len(batch)),
		zap.Duration("took", time.Since(start)))
	return vecs, nil
}

type embedRequest struct {
	Model string   `json:"model,omitempty"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *HTTPEmbedder) call(ctx context.Context, batch []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: batch})
	if err != nil {
		return nil, permanent(fmt.Errorf("marshal request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call embeddings endpoint: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("embeddings endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			return nil, permanent(err)
		}
		return nil, err
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, permanent(fmt.Errorf("decode response: %w", err))
	}
	vecs, err := parsed.vectors(len(batch))
	if err != nil {
		return nil, permanent(err)
	}
	for _, v := range vecs {
		if len(v) != e.dimensions {
			return nil, permanent(fmt.Errorf("model returned %d dimensions, expected %d", len(v), e.dimensions))
		}
		utils.NormalizeL2(v)
	}
	return vecs, nil
}

func (r *embedResponse) vectors(n int) ([][]float32, error) {
	if len(r.Data) > 0 {
		if len(r.Data) != n {
			return nil, fmt.Errorf("expected %d embeddings, got %d", n, len(r.Data))
		}
		out := make([][]float32, n)
		for _, d := range r.Data {
			if d.Index < 0 || d.Index >= n || out[d.Index] != nil {
				return nil, fmt.Errorf("invalid embedding index %d", d.Index)
			}
			out[d.Index] = d.Embedding
		}
		return out, nil
	}
	if len(r.Embeddings) != n {
		return nil, fmt.Errorf("expected %d embeddings, got %d", n, len(r.Embeddings))
	}
	return r.Embeddings, nil
}

// Dimensions returns the configured embedding dimension.
func (e *HTTPEmbedder) Dimensions() int {
	return e.dimensions
}

// Backend returns BackendModel.
func (e *HTTPEmbedder) Backend() string {
	return BackendModel
}

// Close releases idle connections.
func (e *HTTPEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
