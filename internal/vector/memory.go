package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/ragkit/internal/models"
)

// memorySnapshot is immutable once published.
type memorySnapshot struct {
	ids     []string
	vectors [][]float32
	norms   []float64
}

// MemoryIndex is an exact, brute-force cosine index. Readers scan an immutable snapshot;
// writers publish a new snapshot atomically, so a search never sees a partial update.
type MemoryIndex struct {
	dimensions int
	snap       atomic.Pointer[memorySnapshot]
	mu         sync.Mutex // serializes writers
}

// NewMemoryIndex creates an in-memory index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", models.ErrConfiguration)
	}
	m := &MemoryIndex{dimensions: dimensions}
	m.snap.Store(&memorySnapshot{})
	return m, nil
}

// Type returns the backend name.
func (m *MemoryIndex) Type() string {
	return BackendMemory
}

// Dimensions returns the vector dimension.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

// Add appends vectors. Either all vectors are added or none are.
func (m *MemoryIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("%w: %d ids for %d vectors", models.ErrValidation, len(ids), len(vectors))
	}
	for _, v := range vectors {
		if len(v) != m.dimensions {
			return fmt.Errorf("%w: got %d, expected %d", models.ErrDimensionMismatch, len(v), m.dimensions)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.snap.Load()
	n := len(old.ids)
	next := &memorySnapshot{
		ids:     append(old.ids[:n:n], ids...),
		vectors: old.vectors[:n:n],
		norms:   old.norms[:n:n],
	}
	for _, v := range vectors {
		vec := append([]float32(nil), v...)
		next.vectors = append(next.vectors, vec)
		next.norms = append(next.norms, L2Norm(vec))
	}
	m.snap.Store(next)
	return nil
}

// Search returns the top-k vectors by cosine similarity. Equal scores keep insertion order.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrValidation, k)
	}
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d", models.ErrDimensionMismatch, len(query), m.dimensions)
	}
	snap := m.snap.Load()
	if len(snap.ids) == 0 {
		return nil, nil
	}

	qnorm := L2Norm(query)
	hits := make([]*Hit, len(snap.ids))
	for i, vec := range snap.vectors {
		score := 0.0
		if qnorm > 0 && snap.norms[i] > 0 {
			score = InnerProduct(query, vec) / (qnorm * snap.norms[i])
		}
		hits[i] = &Hit{ID: snap.ids[i], Score: score}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Remove drops the given ids.
func (m *MemoryIndex) Remove(ctx context.Context, ids []string) (int, error) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.snap.Load()
	next := &memorySnapshot{
		ids:     make([]string, 0, len(old.ids)),
		vectors: make([][]float32, 0, len(old.ids)),
		norms:   make([]float64, 0, len(old.ids)),
	}
	for i, id := range old.ids {
		if _, ok := drop[id]; ok {
			continue
		}
		next.ids = append(next.ids, id)
		next.vectors = append(next.vectors, old.vectors[i])
		next.norms = append(next.norms, old.norms[i])
	}
	removed := len(old.ids) - len(next.ids)
	if removed > 0 {
		m.snap.Store(next)
	}
	return removed, nil
}

// Size returns the number of vectors.
func (m *MemoryIndex) Size() int {
	return len(m.snap.Load().ids)
}

// Close is a no-op.
func (m *MemoryIndex) Close() error {
	return nil
}
