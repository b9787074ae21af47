// Package embedding turns text into fixed-dimension vectors.
package embedding

import (
	"context"
	"time"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions is known before any call is made.
	Dimensions() int
	// Backend reports the backend name, "demo" or "model".
	Backend() string
	Close() error
}

// Backend names.
const (
	BackendDemo  = "demo"
	BackendModel = "model"
)

// Runtimes of the model backend.
const (
	RuntimeONNX = "onnx"
	RuntimeHTTP = "http"
)

// Defaults.
const (
	DefaultDimensions = 384
	DefaultMaxTokens  = 256
	DefaultTimeout    = 30 * time.Second
	DefaultBatchSize  = 32
	DefaultWorkers    = 4
	DefaultCacheSize  = 10000
)

// Config selects and parameterizes an embedder.
type Config struct {
	Backend    string
	Dimensions int
	// Seed perturbs the demo backend's hash so independent stores do not share vectors.
	Seed      uint64
	Workers   int
	CacheSize int
	Model     ModelConfig
}

// ModelConfig configures the model backend.
type ModelConfig struct {
	Runtime   string
	ModelPath string
	MaxTokens int
	Endpoint  string
	Name      string
	APIKey    string
	Timeout   time.Duration
	BatchSize int
}

func (c ModelConfig) withDefaults() ModelConfig {
	if c.Runtime == "" {
		c.Runtime = RuntimeONNX
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	return c
}
