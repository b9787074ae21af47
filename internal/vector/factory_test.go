package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/ragkit/internal/models"
)

func TestNewIndex_Memory(t *testing.T) {
	for _, backend := range []string{BackendMemory, ""} {
		idx, err := NewIndex(backend, 3, Options{})
		if err != nil {
			t.Fatalf("NewIndex(%q): %v", backend, err)
		}
		if idx.Type() != BackendMemory {
			t.Errorf("Type=%s", idx.Type())
		}
		if err := idx.Add(context.Background(), []string{"a"}, [][]float32{{1, 0, 0}}); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if idx.Size() != 1 {
			t.Errorf("Size=%d, want 1", idx.Size())
		}
		_ = idx.Close()
	}
}

func TestNewIndex_Unknown(t *testing.T) {
	_, err := NewIndex("faiss-gpu", 3, Options{})
	if !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestNewIndex_InvalidDimension(t *testing.T) {
	if _, err := NewIndex(BackendMemory, 0, Options{}); err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestNewIndex_ANN(t *testing.T) {
	if !IsANNAvailable() {
		_, err := NewIndex(BackendANN, 3, Options{})
		if !errors.Is(err, ErrANNUnavailable) {
			t.Errorf("expected ErrANNUnavailable, got %v", err)
		}
		return
	}
	idx, err := NewIndex(BackendANN, 3, Options{ANNDescription: "Flat"})
	if err != nil {
		t.Fatalf("NewIndex(ann-index): %v", err)
	}
	defer idx.Close()
	if idx.Type() != BackendANN {
		t.Errorf("Type=%s", idx.Type())
	}
}
