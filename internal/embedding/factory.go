package embedding

import (
	"fmt"

	"github.com/hyperjump/ragkit/internal/models"
	"go.uber.org/zap"
)

// New builds the embedder selected by cfg.Backend. An empty backend selects demo.
func New(cfg Config, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: embedding dimensions must be positive, got %d", models.ErrConfiguration, cfg.Dimensions)
	}
	switch cfg.Backend {
	case BackendDemo, "":
		return NewHashEmbedder(cfg.Dimensions, cfg.Seed), nil
	case BackendModel:
		return newModelEmbedder(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown embedding backend %q (supported: demo, model)", models.ErrConfiguration, cfg.Backend)
	}
}

func newModelEmbedder(cfg Config, logger *zap.Logger) (Embedder, error) {
	model := cfg.Model.withDefaults()
	cacheSize := cfg.CacheSize
	if cacheSize == 0 {
		cacheSize = DefaultCacheSize
	}
	switch model.Runtime {
	case RuntimeONNX:
		if model.ModelPath == "" {
			return nil, fmt.Errorf("%w: onnx runtime requires model_path", models.ErrConfiguration)
		}
		e, err := NewONNXEmbedder(model, cfg.Dimensions, cacheSize)
		if err != nil {
			return nil, err
		}
		logger.Info("onnx embedder ready", zap.String("model", model.ModelPath), zap.Int("dimensions", cfg.Dimensions))
		return e, nil
	case RuntimeHTTP:
		workers := cfg.Workers
		if workers <= 0 {
			workers = DefaultWorkers
		}
		e, err := NewHTTPEmbedder(model, cfg.Dimensions,
			WithHTTPLogger(logger),
			WithWorkers(workers),
			WithCache(NewEmbeddingCache(cacheSize)))
		if err != nil {
			return nil, err
		}
		logger.Info("http embedder ready", zap.String("endpoint", model.Endpoint), zap.String("model", model.Name))
		return e, nil
	default:
		return nil, fmt.Errorf("%w: unknown model runtime %q (supported: onnx, http)", models.ErrConfiguration, model.Runtime)
	}
}
