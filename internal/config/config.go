// Package config provides configuration loading and structs for ragkit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/ragkit/internal/embedding"
	"github.com/hyperjump/ragkit/internal/pipeline"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Storage   StorageConfig   `yaml:"storage"`
	Loader    LoaderConfig    `yaml:"loader"`
	Watch     WatchConfig     `yaml:"watch"`
}

// PipelineConfig holds chunking and retrieval settings.
type PipelineConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is a pointer so an explicit 0 survives ApplyDefaults.
	ChunkOverlap  *int   `yaml:"chunk_overlap"`
	TopK          int    `yaml:"top_k"`
	SplitStrategy string `yaml:"split_strategy"`
	AllowFallback bool   `yaml:"allow_fallback"`
}

// OverlapOrDefault returns the configured overlap, or the pipeline default when unset.
func (p *PipelineConfig) OverlapOrDefault() int {
	if p.ChunkOverlap != nil {
		return *p.ChunkOverlap
	}
	return pipeline.DefaultChunkOverlap
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Backend    string      `yaml:"backend"`
	Dimensions int         `yaml:"dimensions"`
	Seed       uint64      `yaml:"seed"`
	Workers    int         `yaml:"workers"`
	CacheSize  int         `yaml:"cache_size"`
	Model      ModelConfig `yaml:"model"`
}

// ModelConfig holds settings for the model backend's ONNX or HTTP runtime.
type ModelConfig struct {
	Runtime   string        `yaml:"runtime"`
	ModelPath string        `yaml:"model_path"`
	MaxTokens int           `yaml:"max_tokens"`
	Endpoint  string        `yaml:"endpoint"`
	Name      string        `yaml:"name"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
	BatchSize int           `yaml:"batch_size"`
}

// VectorConfig selects the vector backend.
type VectorConfig struct {
	Backend        string `yaml:"backend"`
	ANNDescription string `yaml:"ann_description"`
}

// StorageConfig holds the catalog location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoaderConfig lists the file extensions to load.
type LoaderConfig struct {
	Extensions []string `yaml:"extensions"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed, or names an unknown loader extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := validateExtensions(cfg.Loader.Extensions); err != nil {
		return nil, err
	}
	cfg.expandPaths(filepath.Dir(path))
	return &cfg, nil
}

// Default returns the configuration used when no file is present. Relative paths resolve
// against dir.
func Default(dir string) *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.expandPaths(dir)
	return cfg
}

func (c *Config) expandPaths(configDir string) {
	c.Storage.DatabasePath = expandPath(c.Storage.DatabasePath, configDir)
	if c.Embedding.Model.ModelPath != "" {
		c.Embedding.Model.ModelPath = expandPath(c.Embedding.Model.ModelPath, configDir)
	}
	for i := range c.Watch.Directories {
		c.Watch.Directories[i] = expandPath(c.Watch.Directories[i], configDir)
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ToPipeline converts the file configuration into a pipeline configuration.
// The API key is read from the environment variable named by api_key_env.
func (c *Config) ToPipeline() pipeline.Config {
	var apiKey string
	if c.Embedding.Model.APIKeyEnv != "" {
		apiKey = os.Getenv(c.Embedding.Model.APIKeyEnv)
	}
	return pipeline.Config{
		EmbeddingBackend: c.Embedding.Backend,
		VectorBackend:    c.Vector.Backend,
		ChunkSize:        c.Pipeline.ChunkSize,
		ChunkOverlap:     c.Pipeline.OverlapOrDefault(),
		TopK:             c.Pipeline.TopK,
		EmbeddingDim:     c.Embedding.Dimensions,
		SplitStrategy:    c.Pipeline.SplitStrategy,
		AllowFallback:    c.Pipeline.AllowFallback,
		Embedding: pipeline.EmbeddingSettings{
			Seed:      c.Embedding.Seed,
			Workers:   c.Embedding.Workers,
			CacheSize: c.Embedding.CacheSize,
			Model: embedding.ModelConfig{
				Runtime:   c.Embedding.Model.Runtime,
				ModelPath: c.Embedding.Model.ModelPath,
				MaxTokens: c.Embedding.Model.MaxTokens,
				Endpoint:  c.Embedding.Model.Endpoint,
				Name:      c.Embedding.Model.Name,
				APIKey:    apiKey,
				Timeout:   c.Embedding.Model.Timeout,
				BatchSize: c.Embedding.Model.BatchSize,
			},
		},
		ANNDescription: c.Vector.ANNDescription,
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" and other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return path
}
