//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/index_factory_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"unsafe"

	"github.com/hyperjump/ragkit/internal/models"
	"github.com/hyperjump/ragkit/pkg/utils"
)

// FAISSIndex is an approximate nearest-neighbor index built with the FAISS index factory.
// Vectors are L2-normalized before insertion so inner product equals cosine similarity.
// FAISS graph indexes cannot delete, so removed ids are tombstoned and filtered at search time.
type FAISSIndex struct {
	index       *C.FaissIndex
	dimensions  int
	description string
	idToLabel   map[string]int64
	labelToID   map[int64]string
	nextLabel   int64
	removed     int
	mu          sync.RWMutex
}

// NewFAISSIndex creates an inner-product index from an index_factory description such as "HNSW32" or "Flat".
func NewFAISSIndex(dimensions int, description string) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", models.ErrConfiguration)
	}
	cDesc := C.CString(description)
	defer C.free(unsafe.Pointer(cDesc))

	var index *C.FaissIndex
	if ret := C.faiss_index_factory(&index, C.int(dimensions), cDesc, C.METRIC_INNER_PRODUCT); ret != 0 {
		return nil, fmt.Errorf("%w: create FAISS index %q: %s", models.ErrConfiguration, description, faissLastError())
	}
	return &FAISSIndex{
		index:       index,
		dimensions:  dimensions,
		description: description,
		idToLabel:   make(map[string]int64),
		labelToID:   make(map[int64]string),
	}, nil
}

func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Add inserts normalized copies of vectors.
func (f *FAISSIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("%w: %d ids for %d vectors", models.ErrValidation, len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}
	flat := make([]float32, len(vectors)*f.dimensions)
	for i, vec := range vectors {
		if len(vec) != f.dimensions {
			return fmt.Errorf("%w: got %d, expected %d", models.ErrDimensionMismatch, len(vec), f.dimensions)
		}
		row := flat[i*f.dimensions : (i+1)*f.dimensions]
		copy(row, vec)
		utils.NormalizeL2(row)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := C.faiss_Index_add(f.index, C.idx_t(len(vectors)), (*C.float)(unsafe.Pointer(&flat[0]))); ret != 0 {
		return fmt.Errorf("add vectors to FAISS index: %s", faissLastError())
	}
	for _, id := range ids {
		f.idToLabel[id] = f.nextLabel
		f.labelToID[f.nextLabel] = id
		f.nextLabel++
	}
	return nil
}

// Search returns approximately the k most similar live vectors.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]*Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrValidation, k)
	}
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d", models.ErrDimensionMismatch, len(query), f.dimensions)
	}
	q := append([]float32(nil), query...)
	utils.NormalizeL2(q)

	f.mu.RLock()
	defer f.mu.RUnlock()
	ntotal := int(C.faiss_Index_ntotal(f.index))
	if ntotal == 0 || len(f.idToLabel) == 0 {
		return nil, nil
	}
	// Over-fetch by the tombstone count so removed vectors do not crowd out live ones.
	fetch := min(k+f.removed, ntotal)
	distances := make([]float32, fetch)
	labels := make([]int64, fetch)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&q[0])),
		C.idx_t(fetch),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	hits := make([]*Hit, 0, k)
	for i := 0; i < fetch && len(hits) < k; i++ {
		if labels[i] < 0 {
			continue
		}
		id, ok := f.labelToID[labels[i]]
		if !ok {
			continue
		}
		hits = append(hits, &Hit{ID: id, Score: float64(distances[i])})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}

// Remove tombstones ids.
func (f *FAISSIndex) Remove(ctx context.Context, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range ids {
		if label, ok := f.idToLabel[id]; ok {
			delete(f.labelToID, label)
			delete(f.idToLabel, id)
			n++
		}
	}
	f.removed += n
	return n, nil
}

// Size returns the number of live vectors.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.idToLabel)
}

// Dimensions returns the vector dimension.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Close frees the FAISS index.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}

// Type returns the backend name.
func (f *FAISSIndex) Type() string {
	return BackendANN
}
