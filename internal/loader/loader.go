// Package loader reads files into documents through a registry of per-extension extractors.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/ragkit/internal/models"
	"go.uber.org/zap"
)

// ExtractFunc turns raw file content into plain text.
type ExtractFunc func(content []byte) (string, error)

// DefaultExtensions are registered by New.
var DefaultExtensions = []string{".txt", ".md", ".markdown"}

// Loader maps file extensions to extractors.
type Loader struct {
	formats map[string]ExtractFunc
	logger  *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader) error

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) error {
		if l != nil {
			ld.logger = l
		}
		return nil
	}
}

// WithFormat registers fn for ext, replacing any existing extractor.
func WithFormat(ext string, fn ExtractFunc) Option {
	return func(ld *Loader) error {
		ld.formats[normalizeExt(ext)] = fn
		return nil
	}
}

// WithExtensions registers the built-in extractors for exts.
func WithExtensions(exts ...string) Option {
	return func(ld *Loader) error {
		for _, ext := range exts {
			fn, ok := Builtin(ext)
			if !ok {
				return fmt.Errorf("%w: no built-in extractor for %q", models.ErrConfiguration, ext)
			}
			ld.formats[normalizeExt(ext)] = fn
		}
		return nil
	}
}

// New returns a loader for DefaultExtensions plus whatever opts register.
func New(opts ...Option) (*Loader, error) {
	ld := &Loader{
		formats: make(map[string]ExtractFunc),
		logger:  zap.NewNop(),
	}
	for _, ext := range DefaultExtensions {
		fn, _ := Builtin(ext)
		ld.formats[ext] = fn
	}
	for _, opt := range opts {
		if err := opt(ld); err != nil {
			return nil, err
		}
	}
	return ld, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Extensions returns the registered extensions, sorted.
func (ld *Loader) Extensions() []string {
	out := make([]string, 0, len(ld.formats))
	for ext := range ld.formats {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether path has a registered extension.
func (ld *Loader) Supports(path string) bool {
	_, ok := ld.formats[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Load reads a single file. A missing path is ErrNotFound; an unregistered extension is ErrUnsupportedFormat.
func (ld *Loader) Load(ctx context.Context, path string) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", models.ErrUnsupportedFormat, path)
	}
	ext := strings.ToLower(filepath.Ext(abs))
	extract, ok := ld.formats[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q (%s)", models.ErrUnsupportedFormat, ext, path)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	text, err := extract(content)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}

	doc := models.NewDocument(text, abs, strings.TrimPrefix(ext, "."))
	doc.Metadata[models.MetaFileName] = info.Name()
	doc.Metadata[models.MetaSizeBytes] = strconv.FormatInt(info.Size(), 10)
	doc.Metadata[models.MetaModifiedAt] = info.ModTime().UTC().Format(time.RFC3339)
	ld.logger.Debug("loaded document",
		zap.String("source", abs),
		zap.Int("chars", len(text)))
	return &doc, nil
}

// LoadResult is the outcome of a directory load. Files that could not be loaded are
// listed in Skipped rather than failing the whole load.
type LoadResult struct {
	Documents []models.Document
	Skipped   []models.SkippedSource
}

// LoadDirectory loads every supported file under dir, recursively and in lexical order.
// Hidden directories are not descended into.
func (ld *Loader) LoadDirectory(ctx context.Context, dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrNotFound, dir)
		}
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", models.ErrValidation, dir)
	}

	result := &LoadResult{}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			ld.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(walkErr))
			result.Skipped = append(result.Skipped, models.SkippedSource{Source: path, Reason: walkErr.Error()})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !ld.Supports(path) {
			ld.logger.Info("skipping unsupported file", zap.String("path", path))
			result.Skipped = append(result.Skipped, models.SkippedSource{Source: path, Reason: models.ErrUnsupportedFormat.Error()})
			return nil
		}
		doc, err := ld.Load(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ld.logger.Warn("skipping file", zap.String("path", path), zap.Error(err))
			result.Skipped = append(result.Skipped, models.SkippedSource{Source: path, Reason: err.Error()})
			return nil
		}
		result.Documents = append(result.Documents, *doc)
		return nil
	})
	if err != nil {
		return result, err
	}
	ld.logger.Info("loaded directory",
		zap.String("dir", dir),
		zap.Int("documents", len(result.Documents)),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}
