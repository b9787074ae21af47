// Package vector stores embeddings and answers nearest-neighbor queries by cosine similarity.
package vector

import (
	"context"
	"errors"
)

// Index is a vector backend.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	// Search returns at most k hits ordered by descending score.
	Search(ctx context.Context, query []float32, k int) ([]*Hit, error)
	// Remove deletes the given ids and reports how many were present.
	Remove(ctx context.Context, ids []string) (int, error)
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// Hit is a single backend search result.
type Hit struct {
	ID    string
	Score float64
}

// ErrANNUnavailable is returned when the ann-index backend was not compiled in.
var ErrANNUnavailable = errors.New("ann-index backend not available: build with -tags=faiss and install the FAISS C library")
