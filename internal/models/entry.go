package models

// IndexEntry is a chunk and its embedding as held by a vector store.
// Entries are created on add and removed on delete; they are never mutated.
type IndexEntry struct {
	ID     string    `json:"id"`
	Vector []float32 `json:"-"`
	Chunk  Chunk     `json:"chunk"`
	// Seq is the insertion sequence within the store, used to break score ties.
	Seq uint64 `json:"seq"`
}

// SearchHit is a single nearest-neighbor result.
type SearchHit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}
