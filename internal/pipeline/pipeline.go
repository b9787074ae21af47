// Package pipeline wires loading, splitting, embedding and vector search into one indexing
// and retrieval engine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/hyperjump/ragkit/internal/embedding"
	"github.com/hyperjump/ragkit/internal/loader"
	"github.com/hyperjump/ragkit/internal/models"
	"github.com/hyperjump/ragkit/internal/retriever"
	"github.com/hyperjump/ragkit/internal/splitter"
	"github.com/hyperjump/ragkit/internal/storage"
	"github.com/hyperjump/ragkit/internal/vector"
	"go.uber.org/zap"
)

// Pipeline indexes documents and answers retrieval queries. It is safe for concurrent use.
type Pipeline struct {
	cfg       Config
	logger    *zap.Logger
	loader    *loader.Loader
	splitter  *splitter.Splitter
	strategy  splitter.Strategy
	embedder  embedding.Embedder
	store     *vector.Store
	retriever *retriever.Retriever
	catalog   storage.Storage

	ownsEmbedder bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger shared by the pipeline and the components it builds.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithEmbedder uses e instead of building one from the config. Its dimension must match.
func WithEmbedder(e embedding.Embedder) Option {
	return func(p *Pipeline) { p.embedder = e }
}

// WithLoader uses ld for file and directory indexing.
func WithLoader(ld *loader.Loader) Option {
	return func(p *Pipeline) { p.loader = ld }
}

// WithStorage attaches a catalog. Stored entries are loaded at construction and every
// indexing or removal is written through.
func WithStorage(s storage.Storage) Option {
	return func(p *Pipeline) { p.catalog = s }
}

// New validates cfg and builds the pipeline. Configuration problems are reported here,
// never on first use.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}

	p.splitter, _ = splitter.New(cfg.ChunkSize, cfg.ChunkOverlap)
	p.strategy, _ = splitter.ParseStrategy(cfg.SplitStrategy)

	if p.loader == nil {
		ld, err := loader.New(loader.WithLogger(p.logger))
		if err != nil {
			return nil, err
		}
		p.loader = ld
	}

	if p.embedder == nil {
		e, err := p.newEmbedder()
		if err != nil {
			return nil, err
		}
		p.embedder = e
		p.ownsEmbedder = true
	}
	if d := p.embedder.Dimensions(); d != cfg.EmbeddingDim {
		p.closeEmbedder()
		return nil, fmt.Errorf("%w: embedder produces %d dimensions, embedding_dim is %d", models.ErrConfiguration, d, cfg.EmbeddingDim)
	}

	index, err := p.newIndex()
	if err != nil {
		p.closeEmbedder()
		return nil, err
	}
	p.store = vector.NewStore(index)

	p.retriever, err = retriever.New(p.embedder, p.store, cfg.TopK, retriever.WithLogger(p.logger))
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	if p.catalog != nil {
		if err := p.hydrate(context.Background()); err != nil {
			_ = p.Close()
			return nil, err
		}
	}

	p.logger.Info("pipeline ready",
		zap.String("embedding_backend", p.EffectiveEmbeddingBackend()),
		zap.String("vector_backend", p.EffectiveVectorBackend()),
		zap.Int("embedding_dim", cfg.EmbeddingDim),
		zap.Int("chunk_size", cfg.ChunkSize),
		zap.Int("chunk_overlap", cfg.ChunkOverlap),
		zap.String("split_strategy", string(p.strategy)))
	return p, nil
}

func (p *Pipeline) newEmbedder() (embedding.Embedder, error) {
	e, err := embedding.New(p.cfg.embeddingConfig(), p.logger)
	if err == nil {
		return e, nil
	}
	if !p.cfg.AllowFallback || p.cfg.EmbeddingBackend == embedding.BackendDemo {
		return nil, err
	}
	p.logger.Warn("embedding backend unavailable, falling back to demo",
		zap.String("configured", p.cfg.EmbeddingBackend),
		zap.Error(err))
	return embedding.NewHashEmbedder(p.cfg.EmbeddingDim, p.cfg.Embedding.Seed), nil
}

func (p *Pipeline) newIndex() (vector.Index, error) {
	opts := vector.Options{ANNDescription: p.cfg.ANNDescription}
	idx, err := vector.NewIndex(p.cfg.VectorBackend, p.cfg.EmbeddingDim, opts)
	if err == nil {
		return idx, nil
	}
	if !p.cfg.AllowFallback || !errors.Is(err, vector.ErrANNUnavailable) {
		if errors.Is(err, models.ErrConfiguration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", models.ErrConfiguration, err)
	}
	p.logger.Warn("vector backend unavailable, falling back to memory",
		zap.String("configured", p.cfg.VectorBackend),
		zap.Error(err))
	return vector.NewIndex(vector.BackendMemory, p.cfg.EmbeddingDim, opts)
}

// hydrate checks the catalog against this pipeline and loads its entries into the store.
func (p *Pipeline) hydrate(ctx context.Context) error {
	n, err := p.catalog.CountEntries(ctx)
	if err != nil {
		return fmt.Errorf("count catalog entries: %w", err)
	}
	if n > 0 {
		if err := p.checkCatalog(ctx); err != nil {
			return err
		}
		entries, err := p.catalog.ListEntries(ctx)
		if err != nil {
			return fmt.Errorf("load catalog entries: %w", err)
		}
		if err := p.store.Restore(ctx, entries); err != nil {
			return fmt.Errorf("restore catalog entries: %w", err)
		}
		p.logger.Info("catalog loaded", zap.Int("entries", len(entries)))
	}
	meta := map[string]string{
		storage.MetaEmbeddingDim:     strconv.Itoa(p.cfg.EmbeddingDim),
		storage.MetaEmbeddingBackend: p.EffectiveEmbeddingBackend(),
		storage.MetaVectorBackend:    p.EffectiveVectorBackend(),
	}
	for k, v := range meta {
		if err := p.catalog.SetMeta(ctx, k, v); err != nil {
			return fmt.Errorf("write catalog metadata: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) checkCatalog(ctx context.Context) error {
	dim, ok, err := p.catalog.GetMeta(ctx, storage.MetaEmbeddingDim)
	if err != nil {
		return fmt.Errorf("read catalog metadata: %w", err)
	}
	if ok && dim != strconv.Itoa(p.cfg.EmbeddingDim) {
		return fmt.Errorf("%w: catalog was built with %s dimensions, embedding_dim is %d; re-index after changing the embedder",
			models.ErrDimensionMismatch, dim, p.cfg.EmbeddingDim)
	}
	backend, ok, err := p.catalog.GetMeta(ctx, storage.MetaEmbeddingBackend)
	if err != nil {
		return fmt.Errorf("read catalog metadata: %w", err)
	}
	if ok && backend != p.EffectiveEmbeddingBackend() {
		return fmt.Errorf("%w: catalog was built with the %s embedder, pipeline uses %s; re-index after changing the embedder",
			models.ErrConfiguration, backend, p.EffectiveEmbeddingBackend())
	}
	return nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// EffectiveEmbeddingBackend reports the embedding backend actually in use.
func (p *Pipeline) EffectiveEmbeddingBackend() string {
	return p.embedder.Backend()
}

// EffectiveVectorBackend reports the vector backend actually in use.
func (p *Pipeline) EffectiveVectorBackend() string {
	return p.store.Backend()
}

// Loader returns the loader used for file and directory indexing.
func (p *Pipeline) Loader() *loader.Loader {
	return p.loader
}

// Stats describes the current index.
type Stats struct {
	Entries          int    `json:"entries"`
	Sources          int    `json:"sources"`
	EmbeddingBackend string `json:"embedding_backend"`
	VectorBackend    string `json:"vector_backend"`
	EmbeddingDim     int    `json:"embedding_dim"`
	ChunkSize        int    `json:"chunk_size"`
	ChunkOverlap     int    `json:"chunk_overlap"`
	TopK             int    `json:"top_k"`
	SplitStrategy    string `json:"split_strategy"`
	Persistent       bool   `json:"persistent"`
}

// Stats returns a snapshot of index statistics.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Entries:          p.store.Size(),
		Sources:          p.store.Sources(),
		EmbeddingBackend: p.EffectiveEmbeddingBackend(),
		VectorBackend:    p.EffectiveVectorBackend(),
		EmbeddingDim:     p.cfg.EmbeddingDim,
		ChunkSize:        p.cfg.ChunkSize,
		ChunkOverlap:     p.cfg.ChunkOverlap,
		TopK:             p.retriever.TopK(),
		SplitStrategy:    string(p.strategy),
		Persistent:       p.catalog != nil,
	}
}

func (p *Pipeline) closeEmbedder() {
	if p.ownsEmbedder && p.embedder != nil {
		_ = p.embedder.Close()
	}
}

// Close releases the index and any embedder the pipeline built. An injected embedder or
// catalog is left open for its owner to close.
func (p *Pipeline) Close() error {
	var errs []error
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.ownsEmbedder && p.embedder != nil {
		if err := p.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
