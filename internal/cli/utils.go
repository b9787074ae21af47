// Package cli renders ragkit results for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/ragkit/internal/models"
	"github.com/hyperjump/ragkit/internal/pipeline"
	"github.com/hyperjump/ragkit/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one result per line.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// previewLen is the number of runes of content shown per result in text output.
const previewLen = 200

// compactWords caps the content shown on a compact line.
const compactWords = 16

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact:
		return OutputCompact, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// QueryResponse is the JSON shape of a query result set.
type QueryResponse struct {
	Query   string                     `json:"query"`
	Total   int                        `json:"total"`
	Results []models.RetrievedDocument `json:"results"`
}

// WriteResults writes retrieved passages to w in the given format.
func WriteResults(w io.Writer, query string, docs []models.RetrievedDocument, format OutputFormat) error {
	switch format {
	case OutputJSON:
		if docs == nil {
			docs = []models.RetrievedDocument{}
		}
		return writeJSON(w, QueryResponse{Query: query, Total: len(docs), Results: docs})
	case OutputCompact:
		for i, d := range docs {
			fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n", i+1, d.RelevanceScore, sourceOf(d), oneLine(TruncateWords(d.Content, compactWords)))
		}
		return nil
	default:
		writeResultsText(w, query, docs)
		return nil
	}
}

func writeResultsText(w io.Writer, query string, docs []models.RetrievedDocument) {
	fmt.Fprintf(w, "\nFound %d results for %q\n\n", len(docs), query)
	for i, d := range docs {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", i+1, d.RelevanceScore)
		if src := sourceOf(d); src != "" {
			fmt.Fprintf(w, "Source: %s", src)
			if idx := d.Metadata[models.MetaChunkIndex]; idx != "" {
				fmt.Fprintf(w, " (chunk %s)", idx)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "\n%s\n", utils.Truncate(d.Content, previewLen))
		fmt.Fprintln(w)
	}
}

func sourceOf(d models.RetrievedDocument) string {
	return d.Metadata[models.MetaSource]
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// WriteIndexReport writes an indexing summary.
func WriteIndexReport(w io.Writer, report *models.IndexReport, format OutputFormat) error {
	if report == nil {
		report = &models.IndexReport{}
	}
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Indexed %d document(s), %d chunk(s)\n", report.DocumentsIndexed, report.ChunksIndexed)
	if len(report.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped %d source(s):\n", len(report.Skipped))
		for _, s := range report.Skipped {
			fmt.Fprintf(w, "  %s: %s\n", s.Source, s.Reason)
		}
	}
	return nil
}

// Status is the shape reported by the status command.
type Status struct {
	pipeline.Stats
	ConfigPath     string `json:"config_path,omitempty"`
	DatabasePath   string `json:"database_path,omitempty"`
	DiskUsageBytes *int64 `json:"disk_usage_bytes,omitempty"`
}

// WriteStatus writes index status in text or json.
func WriteStatus(w io.Writer, status Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "entries:            %d   # indexed chunks\n", status.Entries)
	fmt.Fprintf(w, "sources:            %d   # distinct sources\n", status.Sources)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # catalog on disk\n", *status.DiskUsageBytes)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	fmt.Fprintf(w, "embedding_backend:  %s\n", status.EmbeddingBackend)
	fmt.Fprintf(w, "vector_backend:     %s\n", status.VectorBackend)
	fmt.Fprintf(w, "embedding_dim:      %d\n", status.EmbeddingDim)
	fmt.Fprintf(w, "chunk_size:         %d\n", status.ChunkSize)
	fmt.Fprintf(w, "chunk_overlap:      %d\n", status.ChunkOverlap)
	fmt.Fprintf(w, "top_k:              %d\n", status.TopK)
	fmt.Fprintf(w, "split_strategy:     %s\n", status.SplitStrategy)
	if status.ConfigPath != "" {
		fmt.Fprintf(w, "config_path:        %s\n", status.ConfigPath)
	}
	if status.DatabasePath != "" {
		fmt.Fprintf(w, "database_path:      %s\n", status.DatabasePath)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
