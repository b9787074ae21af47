package models

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"backend", fmt.Errorf("%w: model crashed", ErrEmbeddingBackend), true},
		{"timeout", fmt.Errorf("%w: %w", ErrEmbeddingTimeout, context.DeadlineExceeded), true},
		{"validation", fmt.Errorf("%w: k must be positive", ErrValidation), false},
		{"dimension", ErrDimensionMismatch, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTimeoutKeepsCause(t *testing.T) {
	err := fmt.Errorf("%w: %w", ErrEmbeddingTimeout, context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected wrapped deadline to be preserved")
	}
}

func TestChunkMetadataWithIndex(t *testing.T) {
	doc := NewDocument("hello", "/tmp/a.txt", "txt")
	c := Chunk{Content: "hello", Metadata: doc.Metadata, ChunkIndex: 3}
	meta := c.MetadataWithIndex()
	if meta[MetaChunkIndex] != "3" {
		t.Errorf("chunk_index = %q, want 3", meta[MetaChunkIndex])
	}
	if meta[MetaSource] != "/tmp/a.txt" {
		t.Errorf("source = %q", meta[MetaSource])
	}
	if _, ok := doc.Metadata[MetaChunkIndex]; ok {
		t.Error("parent metadata must not be modified")
	}
}

func TestIndexReportMerge(t *testing.T) {
	r := &IndexReport{DocumentsIndexed: 1, ChunksIndexed: 2, EntryIDs: []string{"a", "b"}}
	r.Skip("x.bin", "unsupported format")
	r.Merge(&IndexReport{DocumentsIndexed: 2, ChunksIndexed: 3, EntryIDs: []string{"c"}})
	r.Merge(nil)
	if r.DocumentsIndexed != 3 || r.ChunksIndexed != 5 || len(r.EntryIDs) != 3 || len(r.Skipped) != 1 {
		t.Errorf("unexpected merged report: %+v", r)
	}
}
