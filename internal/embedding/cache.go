package embedding

import (
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"
)

// EmbeddingCache is an LRU cache of embeddings keyed by a hash of the text.
// A nil cache is valid and never hits.
type EmbeddingCache struct {
	lru *lru.Cache[[32]byte, []float32]
}

// NewEmbeddingCache creates a cache holding up to capacity embeddings.
// A non-positive capacity disables caching and returns nil.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	if capacity <= 0 {
		return nil
	}
	c, err := lru.New[[32]byte, []float32](capacity)
	if err != nil {
		return nil
	}
	return &EmbeddingCache{lru: c}
}

// Get returns a copy of the cached embedding for text.
func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.lru.Get(sha256.Sum256([]byte(text)))
	if !ok {
		return nil, false
	}
	return append([]float32(nil), v...), true
}

// Set stores a copy of the embedding for text, evicting the least recently used entry when full.
func (c *EmbeddingCache) Set(text string, value []float32) {
	if c == nil {
		return
	}
	c.lru.Add(sha256.Sum256([]byte(text)), append([]float32(nil), value...))
}

// Len returns the number of cached embeddings.
func (c *EmbeddingCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
