// Package storage persists index entries so a pipeline can be rebuilt across processes.
package storage

import (
	"context"

	"github.com/hyperjump/ragkit/internal/models"
)

// Metadata keys recorded alongside the entries.
const (
	MetaEmbeddingDim     = "embedding_dim"
	MetaEmbeddingBackend = "embedding_backend"
	MetaVectorBackend    = "vector_backend"
)

// Storage defines index entry persistence operations.
type Storage interface {
	// Entry operations
	SaveEntries(ctx context.Context, entries []*models.IndexEntry) error
	DeleteEntries(ctx context.Context, ids []string) (int, error)
	// ListEntries returns every entry in insertion (seq) order.
	ListEntries(ctx context.Context) ([]*models.IndexEntry, error)

	// Index metadata
	GetMeta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error

	// Stats
	CountEntries(ctx context.Context) (int64, error)
	CountSources(ctx context.Context) (int64, error)

	// Clear removes all entries and metadata.
	Clear(ctx context.Context) error
	Close() error
}
