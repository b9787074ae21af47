package pipeline

import (
	"fmt"

	"github.com/hyperjump/ragkit/internal/embedding"
	"github.com/hyperjump/ragkit/internal/models"
	"github.com/hyperjump/ragkit/internal/splitter"
	"github.com/hyperjump/ragkit/internal/vector"
)

// Defaults for DefaultConfig.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultTopK         = 5
)

// Config is fixed for the lifetime of a Pipeline. Changing backends means building a new one.
type Config struct {
	EmbeddingBackend string
	VectorBackend    string
	ChunkSize        int
	ChunkOverlap     int
	TopK             int
	EmbeddingDim     int
	SplitStrategy    string
	// AllowFallback replaces an unavailable model or ann-index backend with demo or memory.
	AllowFallback bool

	Embedding      EmbeddingSettings
	ANNDescription string
}

// EmbeddingSettings carries the embedder options that do not select the backend.
type EmbeddingSettings struct {
	Seed      uint64
	Workers   int
	CacheSize int
	Model     embedding.ModelConfig
}

// DefaultConfig returns the demo/memory configuration.
func DefaultConfig() Config {
	return Config{
		EmbeddingBackend: embedding.BackendDemo,
		VectorBackend:    vector.BackendMemory,
		ChunkSize:        DefaultChunkSize,
		ChunkOverlap:     DefaultChunkOverlap,
		TopK:             DefaultTopK,
		EmbeddingDim:     embedding.DefaultDimensions,
		SplitStrategy:    string(splitter.DefaultStrategy),
		ANNDescription:   vector.DefaultANNDescription,
	}
}

// Validate reports the first problem with c as an ErrConfiguration.
func (c Config) Validate() error {
	if err := splitter.Validate(c.ChunkSize, c.ChunkOverlap); err != nil {
		return err
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", models.ErrConfiguration, c.TopK)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("%w: embedding_dim must be positive, got %d", models.ErrConfiguration, c.EmbeddingDim)
	}
	switch c.EmbeddingBackend {
	case embedding.BackendDemo, embedding.BackendModel:
	default:
		return fmt.Errorf("%w: unknown embedding_backend %q (supported: demo, model)", models.ErrConfiguration, c.EmbeddingBackend)
	}
	switch c.VectorBackend {
	case vector.BackendMemory, vector.BackendANN:
	default:
		return fmt.Errorf("%w: unknown vector_backend %q (supported: memory, ann-index)", models.ErrConfiguration, c.VectorBackend)
	}
	if _, err := splitter.ParseStrategy(c.SplitStrategy); err != nil {
		return err
	}
	return nil
}

func (c Config) embeddingConfig() embedding.Config {
	return embedding.Config{
		Backend:    c.EmbeddingBackend,
		Dimensions: c.EmbeddingDim,
		Seed:       c.Embedding.Seed,
		Workers:    c.Embedding.Workers,
		CacheSize:  c.Embedding.CacheSize,
		Model:      c.Embedding.Model,
	}
}
