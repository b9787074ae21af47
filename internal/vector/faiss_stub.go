//go:build !faiss || !cgo
// +build !faiss !cgo

package vector

import "context"

// FAISSIndex is a stub used when FAISS is not compiled in.
type FAISSIndex struct{}

// NewFAISSIndex returns ErrANNUnavailable.
func NewFAISSIndex(dimensions int, description string) (*FAISSIndex, error) {
	return nil, ErrANNUnavailable
}

func (f *FAISSIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	return ErrANNUnavailable
}

func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]*Hit, error) {
	return nil, ErrANNUnavailable
}

func (f *FAISSIndex) Remove(ctx context.Context, ids []string) (int, error) {
	return 0, ErrANNUnavailable
}

func (f *FAISSIndex) Size() int { return 0 }

func (f *FAISSIndex) Dimensions() int { return 0 }

func (f *FAISSIndex) Close() error { return nil }

func (f *FAISSIndex) Type() string { return BackendANN }
