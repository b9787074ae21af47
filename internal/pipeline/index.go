package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hyperjump/ragkit/internal/models"
	"go.uber.org/zap"
)

const reasonEmpty = "empty document"

// IndexDocuments splits, embeds and stores docs one at a time. A document that cannot be
// split is recorded in the report's Skipped list. An embedder, store or catalog failure stops
// the batch: documents already indexed stay indexed and the partial report is returned with
// the error. Indexing the same document twice yields two sets of entries.
func (p *Pipeline) IndexDocuments(ctx context.Context, docs []models.Document) (*models.IndexReport, error) {
	report := &models.IndexReport{}
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		source := doc.Source()
		if source == "" {
			source = fmt.Sprintf("document[%d]", i)
		}

		chunks, err := p.splitter.SplitDocument(doc, p.strategy)
		if err != nil {
			p.logger.Warn("skipping document", zap.String("source", source), zap.Error(err))
			report.Skip(source, err.Error())
			continue
		}
		if len(chunks) == 0 {
			p.logger.Debug("skipping empty document", zap.String("source", source))
			report.Skip(source, reasonEmpty)
			continue
		}

		texts := make([]string, len(chunks))
		for j, c := range chunks {
			texts[j] = c.Content
		}
		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return report, fmt.Errorf("embed %s: %w", source, err)
		}
		ids, err := p.store.Add(ctx, vectors, chunks)
		if err != nil {
			return report, fmt.Errorf("store %s: %w", source, err)
		}
		if err := p.persist(ctx, ids); err != nil {
			if _, rmErr := p.store.DeleteMany(ctx, ids); rmErr != nil {
				p.logger.Error("failed to roll back unpersisted entries", zap.String("source", source), zap.Error(rmErr))
			}
			return report, fmt.Errorf("persist %s: %w", source, err)
		}

		report.DocumentsIndexed++
		report.ChunksIndexed += len(ids)
		report.EntryIDs = append(report.EntryIDs, ids...)
		p.logger.Debug("document indexed", zap.String("source", source), zap.Int("chunks", len(ids)))
	}
	return report, nil
}

func (p *Pipeline) persist(ctx context.Context, ids []string) error {
	if p.catalog == nil {
		return nil
	}
	entries := make([]*models.IndexEntry, 0, len(ids))
	for _, id := range ids {
		if e, ok := p.store.Entry(id); ok {
			entries = append(entries, e)
		}
	}
	return p.catalog.SaveEntries(ctx, entries)
}

// IndexFromFile loads and indexes a single file.
func (p *Pipeline) IndexFromFile(ctx context.Context, path string) (*models.IndexReport, error) {
	doc, err := p.loader.Load(ctx, path)
	if err != nil {
		return &models.IndexReport{}, err
	}
	return p.IndexDocuments(ctx, []models.Document{*doc})
}

// IndexFromDirectory loads every supported file under dir and indexes them. Files the
// loader could not read are listed in the report's Skipped entries.
func (p *Pipeline) IndexFromDirectory(ctx context.Context, dir string) (*models.IndexReport, error) {
	loaded, err := p.loader.LoadDirectory(ctx, dir)
	if err != nil {
		return &models.IndexReport{}, err
	}
	report, err := p.IndexDocuments(ctx, loaded.Documents)
	report.Skipped = append(loaded.Skipped, report.Skipped...)
	p.logger.Info("directory indexed",
		zap.String("dir", dir),
		zap.Int("documents", report.DocumentsIndexed),
		zap.Int("chunks", report.ChunksIndexed),
		zap.Int("skipped", len(report.Skipped)))
	return report, err
}

// Index indexes source, which may be a file or a directory.
func (p *Pipeline) Index(ctx context.Context, source string) (*models.IndexReport, error) {
	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &models.IndexReport{}, fmt.Errorf("%w: %s", models.ErrNotFound, source)
		}
		return &models.IndexReport{}, fmt.Errorf("stat %s: %w", source, err)
	}
	if info.IsDir() {
		return p.IndexFromDirectory(ctx, source)
	}
	return p.IndexFromFile(ctx, source)
}

// RemoveSource deletes every entry whose chunk came from source and returns how many were removed.
// File paths are matched both as given and in absolute form.
func (p *Pipeline) RemoveSource(ctx context.Context, source string) (int, error) {
	entries := p.store.EntriesBySource(source)
	if abs, err := filepath.Abs(source); err == nil && abs != source {
		entries = append(entries, p.store.EntriesBySource(abs)...)
	}
	if len(entries) == 0 {
		return 0, nil
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	// Catalog first: a failed delete leaves the store and the catalog in agreement.
	if p.catalog != nil {
		if _, err := p.catalog.DeleteEntries(ctx, ids); err != nil {
			return 0, fmt.Errorf("delete catalog entries: %w", err)
		}
	}
	n, err := p.store.DeleteMany(ctx, ids)
	if err != nil {
		return 0, err
	}
	p.logger.Debug("source removed", zap.String("source", source), zap.Int("entries", n))
	return n, nil
}

// ReindexFile replaces the entries of path with a fresh load of the file.
func (p *Pipeline) ReindexFile(ctx context.Context, path string) (*models.IndexReport, error) {
	if _, err := p.RemoveSource(ctx, path); err != nil {
		return &models.IndexReport{}, err
	}
	return p.IndexFromFile(ctx, path)
}
