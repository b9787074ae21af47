package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/ragkit/internal/embedding"
	"github.com/hyperjump/ragkit/internal/loader"
	"github.com/hyperjump/ragkit/internal/models"
	"github.com/hyperjump/ragkit/internal/pipeline"
	"github.com/hyperjump/ragkit/internal/vector"
)

func writeConfig(t *testing.T, content string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return dir, path
}

func TestLoad(t *testing.T) {
	_, path := writeConfig(t, `
pipeline:
  chunk_size: 500
  top_k: 3
  split_strategy: sentence
embedding:
  backend: model
  dimensions: 768
  model:
    runtime: http
    endpoint: "http://localhost:11434/api/embed"
    name: nomic-embed-text
    timeout: 5s
vector:
  backend: ann-index
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Pipeline.ChunkSize != 500 || cfg.Pipeline.TopK != 3 || cfg.Pipeline.SplitStrategy != "sentence" {
		t.Errorf("unexpected pipeline config: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.OverlapOrDefault() != pipeline.DefaultChunkOverlap {
		t.Errorf("overlap: got %d", cfg.Pipeline.OverlapOrDefault())
	}
	if cfg.Embedding.Model.Timeout != 5*time.Second {
		t.Errorf("timeout: got %v", cfg.Embedding.Model.Timeout)
	}
	if cfg.Embedding.Model.BatchSize != embedding.DefaultBatchSize {
		t.Errorf("model defaults should apply for the model backend: %+v", cfg.Embedding.Model)
	}
	if cfg.Vector.ANNDescription != vector.DefaultANNDescription {
		t.Errorf("ann description: got %q", cfg.Vector.ANNDescription)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_explicitZeroOverlap(t *testing.T) {
	_, path := writeConfig(t, `
pipeline:
  chunk_size: 50
  chunk_overlap: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Pipeline.OverlapOrDefault(); got != 0 {
		t.Errorf("explicit zero overlap replaced with %d", got)
	}
}

func TestLoad_debugTrue(t *testing.T) {
	_, path := writeConfig(t, "debug: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	_, path := writeConfig(t, "pipeline: [not, a, map]\n")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir, path := writeConfig(t, `
storage:
  database_path: "./data/ragkit.db"
embedding:
  model:
    model_path: "./models/minilm.onnx"
watch:
  directories: ["./dev/sample"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "ragkit.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	if want := filepath.Join(dir, "models", "minilm.onnx"); cfg.Embedding.Model.ModelPath != want {
		t.Errorf("model_path = %s, want %s", cfg.Embedding.Model.ModelPath, want)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	wantWatch := filepath.Join(dir, "dev", "sample")
	if cfg.Watch.Directories[0] != wantWatch {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], wantWatch)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in, want string
	}{
		{"/abs/path", "/abs/path"},
		{"./rel", filepath.Join("/cfg", "rel")},
		{".", "/cfg"},
		{"~/docs", filepath.Join(home, "docs")},
		{".ragkit/ragkit.db", filepath.Join(home, ".ragkit", "ragkit.db")},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in, "/cfg"); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Pipeline.ChunkSize != 1000 || cfg.Pipeline.OverlapOrDefault() != 200 || cfg.Pipeline.TopK != 5 {
		t.Errorf("pipeline defaults: %+v", cfg.Pipeline)
	}
	if cfg.Embedding.Backend != embedding.BackendDemo || cfg.Embedding.Dimensions != 384 {
		t.Errorf("embedding defaults: %+v", cfg.Embedding)
	}
	if cfg.Embedding.Model.Runtime != "" {
		t.Errorf("model defaults should not apply to the demo backend: %+v", cfg.Embedding.Model)
	}
	if cfg.Vector.Backend != vector.BackendMemory {
		t.Errorf("vector backend: got %s", cfg.Vector.Backend)
	}
	if cfg.Storage.DatabasePath != DefaultDatabasePath {
		t.Errorf("database path: got %s", cfg.Storage.DatabasePath)
	}
	if len(cfg.Loader.Extensions) != len(DefaultExtensions) || cfg.Loader.Extensions[0] != ".txt" {
		t.Errorf("loader extensions: got %v", cfg.Loader.Extensions)
	}
	if cfg.Watch.Recursive != nil {
		t.Error("recursive should stay unset without directories")
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Directories: []string{"/tmp/docs"}}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestToPipeline(t *testing.T) {
	t.Setenv("RAGKIT_TEST_KEY", "secret")
	cfg := Default(t.TempDir())
	cfg.Embedding.Model.APIKeyEnv = "RAGKIT_TEST_KEY"
	zero := 0
	cfg.Pipeline.ChunkOverlap = &zero

	pc := cfg.ToPipeline()
	if err := pc.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if pc.ChunkOverlap != 0 || pc.ChunkSize != 1000 || pc.EmbeddingDim != 384 {
		t.Errorf("got %+v", pc)
	}
	if pc.Embedding.Model.APIKey != "secret" {
		t.Errorf("api key not resolved from environment: %q", pc.Embedding.Model.APIKey)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := Default(dir)
	cfg.Pipeline.TopK = 9
	cfg.Embedding.Model.Timeout = 2 * time.Second
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Pipeline.TopK != 9 {
		t.Errorf("loaded top_k: got %d", loaded.Pipeline.TopK)
	}
	if loaded.Embedding.Model.Timeout != 2*time.Second {
		t.Errorf("loaded timeout: got %v", loaded.Embedding.Model.Timeout)
	}
	if loaded.Storage.DatabasePath != cfg.Storage.DatabasePath {
		t.Errorf("database path: got %s, want %s", loaded.Storage.DatabasePath, cfg.Storage.DatabasePath)
	}
}

func TestLoad_LoaderExtensions(t *testing.T) {
	_, path := writeConfig(t, `
loader:
  extensions: ["TXT", "pdf", ".docx"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Loader.Extensions) != 3 {
		t.Errorf("extensions: got %v", cfg.Loader.Extensions)
	}

	_, path = writeConfig(t, `
loader:
  extensions: [".txt", ".exe"]
`)
	_, err = Load(path)
	if !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("Load with unknown extension: got %v, want ErrConfiguration", err)
	}
}

func TestDefaultExtensions_AllBuiltin(t *testing.T) {
	if err := validateExtensions(DefaultExtensions); err != nil {
		t.Error(err)
	}
	if len(DefaultExtensions) != len(loader.BuiltinExtensions()) {
		t.Errorf("defaults %v do not cover builtins %v", DefaultExtensions, loader.BuiltinExtensions())
	}
}
