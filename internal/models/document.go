// Package models defines the core data structures shared by the indexing and retrieval flows.
package models

import "strconv"

// Well-known metadata keys.
const (
	MetaSource     = "source"
	MetaFileType   = "file_type"
	MetaFileName   = "file_name"
	MetaSizeBytes  = "size_bytes"
	MetaModifiedAt = "modified_at"
	MetaChunkIndex = "chunk_index"
	MetaEntryID    = "entry_id"
)

// Document is a unit of source text produced by a loader. It is not modified after creation.
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// NewDocument returns a document whose metadata records source and fileType.
func NewDocument(content, source, fileType string) Document {
	return Document{
		Content: content,
		Metadata: map[string]string{
			MetaSource:   source,
			MetaFileType: fileType,
		},
	}
}

// Source returns the document origin, or "" when unset.
func (d Document) Source() string {
	return d.Metadata[MetaSource]
}

// Chunk is a contiguous slice of a parent document's text.
// Start and End are rune offsets into the text the chunk was cut from.
type Chunk struct {
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	ChunkIndex int               `json:"chunk_index"`
	Start      int               `json:"start"`
	End        int               `json:"end"`
}

// Source returns the source of the parent document.
func (c Chunk) Source() string {
	return c.Metadata[MetaSource]
}

// MetadataWithIndex returns a copy of the chunk metadata including chunk_index.
func (c Chunk) MetadataWithIndex() map[string]string {
	out := CloneMetadata(c.Metadata)
	out[MetaChunkIndex] = strconv.Itoa(c.ChunkIndex)
	return out
}

// CloneMetadata returns a shallow copy of m. A nil map yields an empty map.
func CloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}
