package embedding

import (
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len=%d, want 2", c.Len())
	}
}

func TestEmbeddingCache_ReturnsCopies(t *testing.T) {
	c := NewEmbeddingCache(4)
	src := []float32{1, 2}
	c.Set("k", src)
	src[0] = 9
	v, _ := c.Get("k")
	if v[0] != 1 {
		t.Errorf("cache should copy on Set, got %v", v)
	}
	v[1] = 7
	again, _ := c.Get("k")
	if again[1] != 2 {
		t.Errorf("cache should copy on Get, got %v", again)
	}
}

func TestEmbeddingCache_Disabled(t *testing.T) {
	c := NewEmbeddingCache(0)
	if c != nil {
		t.Fatal("zero capacity should disable the cache")
	}
	c.Set("a", []float32{1})
	if _, ok := c.Get("a"); ok {
		t.Error("disabled cache should never hit")
	}
	if c.Len() != 0 {
		t.Error("disabled cache should be empty")
	}
}
