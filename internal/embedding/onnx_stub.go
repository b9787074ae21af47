//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/ragkit/internal/models"
)

// ONNXEmbedder is unavailable without cgo.
type ONNXEmbedder struct{}

// NewONNXEmbedder always fails when built without cgo.
func NewONNXEmbedder(_ ModelConfig, _, _ int) (*ONNXEmbedder, error) {
	return nil, fmt.Errorf("%w: onnx runtime requires cgo (build with CGO_ENABLED=1)", models.ErrEmbeddingBackend)
}

func (e *ONNXEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: onnx runtime not available", models.ErrEmbeddingBackend)
}

func (e *ONNXEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: onnx runtime not available", models.ErrEmbeddingBackend)
}

func (e *ONNXEmbedder) Dimensions() int { return 0 }

func (e *ONNXEmbedder) Backend() string { return BackendModel }

func (e *ONNXEmbedder) Close() error { return nil }
