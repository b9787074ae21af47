package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"

	"github.com/hyperjump/ragkit/pkg/utils"
)

// HashEmbedder is the demo backend. It derives a unit vector from a seeded SHA-256 of the
// text, so identical text always maps to the same vector and any change diverges.
// The vectors carry no semantic meaning.
type HashEmbedder struct {
	dimensions int
	seed       uint64
}

// NewHashEmbedder returns a demo embedder. Non-positive dimensions select DefaultDimensions.
func NewHashEmbedder(dimensions int, seed uint64) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashEmbedder{dimensions: dimensions, seed: seed}
}

// Embed returns the vector for text. The empty string is a valid input.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], e.seed)
	h := sha256.New()
	h.Write(seed[:])
	h.Write([]byte(text))
	sum := h.Sum(nil)

	rng := rand.New(rand.NewPCG(binary.LittleEndian.Uint64(sum[0:8]), binary.LittleEndian.Uint64(sum[8:16])))
	vec := make([]float32, e.dimensions)
	for i := range vec {
		vec[i] = float32(rng.NormFloat64())
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Backend returns BackendDemo.
func (e *HashEmbedder) Backend() string {
	return BackendDemo
}

// Close is a no-op.
func (e *HashEmbedder) Close() error {
	return nil
}
