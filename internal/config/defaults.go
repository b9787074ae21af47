package config

import (
	"fmt"
	"strings"

	"github.com/hyperjump/ragkit/internal/embedding"
	"github.com/hyperjump/ragkit/internal/loader"
	"github.com/hyperjump/ragkit/internal/models"
	"github.com/hyperjump/ragkit/internal/pipeline"
	"github.com/hyperjump/ragkit/internal/splitter"
	"github.com/hyperjump/ragkit/internal/vector"
)

// DefaultDatabasePath is relative to the home directory.
const DefaultDatabasePath = ".ragkit/ragkit.db"

// DefaultExtensions are the file types loaded when none are configured.
var DefaultExtensions = []string{".txt", ".md", ".markdown", ".rst", ".pdf", ".docx", ".xlsx", ".pptx", ".odp", ".ods", ".odt", ".rtf"}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Pipeline.ChunkSize == 0 {
		cfg.Pipeline.ChunkSize = pipeline.DefaultChunkSize
	}
	if cfg.Pipeline.ChunkOverlap == nil {
		o := pipeline.DefaultChunkOverlap
		cfg.Pipeline.ChunkOverlap = &o
	}
	if cfg.Pipeline.TopK == 0 {
		cfg.Pipeline.TopK = pipeline.DefaultTopK
	}
	if cfg.Pipeline.SplitStrategy == "" {
		cfg.Pipeline.SplitStrategy = string(splitter.DefaultStrategy)
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = embedding.BackendDemo
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = embedding.DefaultDimensions
	}
	if cfg.Embedding.Workers == 0 {
		cfg.Embedding.Workers = embedding.DefaultWorkers
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = embedding.DefaultCacheSize
	}
	if cfg.Embedding.Backend == embedding.BackendModel {
		applyModelDefaults(&cfg.Embedding.Model)
	}
	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = vector.BackendMemory
	}
	if cfg.Vector.ANNDescription == "" {
		cfg.Vector.ANNDescription = vector.DefaultANNDescription
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = DefaultDatabasePath
	}
	if cfg.Loader.Extensions == nil {
		cfg.Loader.Extensions = append([]string(nil), DefaultExtensions...)
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}

func applyModelDefaults(m *ModelConfig) {
	if m.Runtime == "" {
		m.Runtime = embedding.RuntimeONNX
	}
	if m.MaxTokens == 0 {
		m.MaxTokens = embedding.DefaultMaxTokens
	}
	if m.Timeout == 0 {
		m.Timeout = embedding.DefaultTimeout
	}
	if m.BatchSize == 0 {
		m.BatchSize = embedding.DefaultBatchSize
	}
}

// validateExtensions rejects loader extensions that have no built-in extractor.
func validateExtensions(exts []string) error {
	known := make(map[string]struct{})
	for _, ext := range loader.BuiltinExtensions() {
		known[ext] = struct{}{}
	}
	for _, ext := range exts {
		norm := strings.ToLower(strings.TrimSpace(ext))
		if norm != "" && !strings.HasPrefix(norm, ".") {
			norm = "." + norm
		}
		if _, ok := known[norm]; !ok {
			return fmt.Errorf("%w: loader.extensions: no built-in extractor for %q", models.ErrConfiguration, ext)
		}
	}
	return nil
}
