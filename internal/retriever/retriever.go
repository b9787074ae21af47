// Package retriever answers text queries with ranked passages from a vector store.
package retriever

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/hyperjump/ragkit/internal/embedding"
	"github.com/hyperjump/ragkit/internal/models"
	"github.com/hyperjump/ragkit/internal/vector"
	"go.uber.org/zap"
)

// DefaultSeparator joins passages in RetrieveContext.
const DefaultSeparator = "\n\n"

// Retriever embeds queries and projects store hits into RetrievedDocuments.
type Retriever struct {
	embedder embedding.Embedder
	store    *vector.Store
	topK     atomic.Int64
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns a retriever with the given default top-k.
func New(embedder embedding.Embedder, store *vector.Store, topK int, opts ...Option) (*Retriever, error) {
	r := &Retriever{embedder: embedder, store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.SetTopK(topK); err != nil {
		return nil, err
	}
	return r, nil
}

// TopK returns the default number of results.
func (r *Retriever) TopK() int {
	return int(r.topK.Load())
}

// SetTopK changes the default number of results for subsequent calls.
func (r *Retriever) SetTopK(k int) error {
	if k <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", models.ErrValidation, k)
	}
	r.topK.Store(int64(k))
	return nil
}

// Retrieve returns up to k passages most similar to query, best first. k == 0 uses TopK.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.RetrievedDocument, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", models.ErrValidation)
	}
	if k == 0 {
		k = r.TopK()
	}
	if k < 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrValidation, k)
	}

	qvec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := r.store.Search(ctx, qvec, k)
	if err != nil {
		return nil, err
	}

	docs := make([]models.RetrievedDocument, 0, len(hits))
	for _, h := range hits {
		entry, ok := r.store.Entry(h.ID)
		if !ok {
			// deleted between search and lookup
			continue
		}
		meta := entry.Chunk.MetadataWithIndex()
		meta[models.MetaEntryID] = entry.ID
		docs = append(docs, models.RetrievedDocument{
			Content:        entry.Chunk.Content,
			Metadata:       meta,
			RelevanceScore: clamp(h.Score),
		})
	}
	r.logger.Debug("retrieved",
		zap.String("query", query),
		zap.Int("k", k),
		zap.Int("results", len(docs)))
	return docs, nil
}

// RetrieveContext joins the contents of the retrieved passages with separator.
// An empty separator selects DefaultSeparator.
func (r *Retriever) RetrieveContext(ctx context.Context, query string, k int, separator string) (string, error) {
	docs, err := r.Retrieve(ctx, query, k)
	if err != nil {
		return "", err
	}
	if separator == "" {
		separator = DefaultSeparator
	}
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return strings.Join(parts, separator), nil
}

// AsMaps renders documents as plain maps with content, metadata and relevance_score keys.
func AsMaps(docs []models.RetrievedDocument) []map[string]any {
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = map[string]any{
			"content":         d.Content,
			"metadata":        d.Metadata,
			"relevance_score": d.RelevanceScore,
		}
	}
	return out
}

func clamp(score float64) float64 {
	return min(max(score, -1), 1)
}
