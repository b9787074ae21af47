// Package splitter cuts document text into bounded, overlapping chunks.
package splitter

import (
	"fmt"

	"github.com/hyperjump/ragkit/internal/models"
)

// Strategy selects how text is divided into chunks.
type Strategy string

const (
	// StrategyCharacter cuts fixed windows of runes, backing off to whitespace.
	StrategyCharacter Strategy = "character"
	// StrategySentence packs whole sentences into chunks.
	StrategySentence Strategy = "sentence"
	// StrategyRecursive packs sentences and splits oversize sentences by character.
	StrategyRecursive Strategy = "recursive"

	DefaultStrategy = StrategyRecursive
)

// ParseStrategy maps a configuration value to a Strategy. An empty value selects the default.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return DefaultStrategy, nil
	case StrategyCharacter, StrategySentence, StrategyRecursive:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: unknown split strategy %q (supported: character, sentence, recursive)", models.ErrConfiguration, s)
	}
}

// Splitter holds a validated chunk size and overlap, both measured in runes.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

// span is a half-open rune range.
type span struct {
	start, end int
}

func (s span) len() int { return s.end - s.start }

// New returns a splitter. The overlap must be non-negative and smaller than the chunk size.
func New(chunkSize, chunkOverlap int) (*Splitter, error) {
	if err := Validate(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Validate checks a chunk size and overlap pair.
func Validate(chunkSize, chunkOverlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", models.ErrConfiguration, chunkSize)
	}
	if chunkOverlap < 0 {
		return fmt.Errorf("%w: chunk_overlap must not be negative, got %d", models.ErrConfiguration, chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)", models.ErrConfiguration, chunkOverlap, chunkSize)
	}
	return nil
}

// ChunkSize returns the maximum chunk length in runes.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// ChunkOverlap returns the overlap in runes.
func (s *Splitter) ChunkOverlap() int { return s.chunkOverlap }

// Split cuts text into chunks. Empty text yields no chunks. The returned chunks carry no metadata.
func (s *Splitter) Split(text string, strategy Strategy) ([]models.Chunk, error) {
	if text == "" {
		return nil, nil
	}
	runes := []rune(text)
	var spans []span
	switch strategy {
	case StrategyCharacter:
		spans = s.characterSpans(runes, 0, len(runes))
	case StrategySentence:
		spans = s.packSentences(runes, s.hardSpans)
	case StrategyRecursive, "":
		spans = s.packSentences(runes, func(sp span) []span {
			return s.characterSpans(runes, sp.start, sp.end)
		})
	default:
		return nil, fmt.Errorf("%w: unknown split strategy %q", models.ErrConfiguration, strategy)
	}

	chunks := make([]models.Chunk, len(spans))
	for i, sp := range spans {
		chunks[i] = models.Chunk{
			Content:    string(runes[sp.start:sp.end]),
			ChunkIndex: i,
			Start:      sp.start,
			End:        sp.end,
		}
	}
	return chunks, nil
}

// SplitDocument splits doc and gives every chunk a copy of the document metadata.
func (s *Splitter) SplitDocument(doc models.Document, strategy Strategy) ([]models.Chunk, error) {
	chunks, err := s.Split(doc.Content, strategy)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Metadata = models.CloneMetadata(doc.Metadata)
	}
	return chunks, nil
}
