package vector

import (
	"fmt"

	"github.com/hyperjump/ragkit/internal/models"
)

// Backend names.
const (
	// BackendMemory is exact brute-force search.
	BackendMemory = "memory"
	// BackendANN is approximate search on FAISS. Requires -tags=faiss.
	BackendANN = "ann-index"

	DefaultANNDescription = "HNSW32"
)

// Options tunes backend construction.
type Options struct {
	// ANNDescription is the FAISS index_factory description for the ann-index backend.
	ANNDescription string
}

// NewIndex creates the backend named by backend. An empty backend selects memory.
func NewIndex(backend string, dimensions int, opts Options) (Index, error) {
	switch backend {
	case BackendMemory, "":
		idx, err := NewMemoryIndex(dimensions)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case BackendANN:
		desc := opts.ANNDescription
		if desc == "" {
			desc = DefaultANNDescription
		}
		idx, err := NewFAISSIndex(dimensions, desc)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("%w: unknown vector backend %q (supported: memory, ann-index)", models.ErrConfiguration, backend)
	}
}

// IsANNAvailable reports whether the ann-index backend was compiled in.
func IsANNAvailable() bool {
	idx, err := NewFAISSIndex(1, "Flat")
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
