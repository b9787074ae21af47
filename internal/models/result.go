package models

// RetrievedDocument is the per-query projection of an index entry.
type RetrievedDocument struct {
	Content        string            `json:"content"`
	Metadata       map[string]string `json:"metadata"`
	RelevanceScore float64           `json:"relevance_score"`
}

// SkippedSource records an input that was not indexed and why.
type SkippedSource struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// IndexReport summarizes an indexing call. A report is returned alongside an error
// when a batch aborts part way, describing what was indexed before the failure.
type IndexReport struct {
	DocumentsIndexed int             `json:"documents_indexed"`
	ChunksIndexed    int             `json:"chunks_indexed"`
	EntryIDs         []string        `json:"entry_ids,omitempty"`
	Skipped          []SkippedSource `json:"skipped,omitempty"`
}

// Skip records a skipped source.
func (r *IndexReport) Skip(source, reason string) {
	r.Skipped = append(r.Skipped, SkippedSource{Source: source, Reason: reason})
}

// Merge folds other into r.
func (r *IndexReport) Merge(other *IndexReport) {
	if other == nil {
		return
	}
	r.DocumentsIndexed += other.DocumentsIndexed
	r.ChunksIndexed += other.ChunksIndexed
	r.EntryIDs = append(r.EntryIDs, other.EntryIDs...)
	r.Skipped = append(r.Skipped, other.Skipped...)
}
