package splitter

import (
	"strings"
	"testing"
	"unicode"

	"github.com/hyperjump/ragkit/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reconstruct concatenates chunks, dropping each chunk's overlap with its predecessor.
func reconstruct(chunks []models.Chunk) string {
	var b strings.Builder
	prevEnd := 0
	for i, c := range chunks {
		if i == 0 {
			b.WriteString(c.Content)
		} else {
			b.WriteString(string([]rune(c.Content)[prevEnd-c.Start:]))
		}
		prevEnd = c.End
	}
	return b.String()
}

const sample = "Retrieval systems split documents into chunks. Each chunk is embedded into a vector! " +
	"Queries are embedded the same way? The nearest chunks are returned to the caller. " +
	"Short. Another sentence follows here, with a comma and some more words to pad it out. " +
	"Supercalifragilisticexpialidocious words can be long too."

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
		wantErr       bool
	}{
		{"valid", 100, 20, false},
		{"zero overlap", 10, 0, false},
		{"overlap equals size", 10, 10, true},
		{"overlap exceeds size", 10, 11, true},
		{"zero size", 0, 0, true},
		{"negative overlap", 10, -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.size, tt.overlap)
			if tt.wantErr {
				require.ErrorIs(t, err, models.ErrConfiguration)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyRecursive, s)

	s, err = ParseStrategy("sentence")
	require.NoError(t, err)
	assert.Equal(t, StrategySentence, s)

	_, err = ParseStrategy("paragraph")
	require.ErrorIs(t, err, models.ErrConfiguration)
}

func TestSplit_Properties(t *testing.T) {
	strategies := []Strategy{StrategyCharacter, StrategySentence, StrategyRecursive}
	sizes := []struct{ size, overlap int }{{40, 10}, {25, 0}, {60, 30}, {1000, 200}, {7, 3}}
	for _, strategy := range strategies {
		for _, sz := range sizes {
			s, err := New(sz.size, sz.overlap)
			require.NoError(t, err)
			chunks, err := s.Split(sample, strategy)
			require.NoError(t, err)
			require.NotEmpty(t, chunks, "%s %v", strategy, sz)

			runes := []rune(sample)
			for i, c := range chunks {
				assert.LessOrEqual(t, len([]rune(c.Content)), sz.size, "%s %v chunk %d too long", strategy, sz, i)
				assert.Equal(t, i, c.ChunkIndex)
				assert.Equal(t, string(runes[c.Start:c.End]), c.Content)
				if i > 0 {
					assert.LessOrEqual(t, c.Start, chunks[i-1].End, "%s %v chunk %d leaves a gap", strategy, sz, i)
					assert.Greater(t, c.End, chunks[i-1].End, "%s %v chunk %d makes no progress", strategy, sz, i)
				}
			}
			assert.Equal(t, sample, reconstruct(chunks), "%s %v", strategy, sz)
		}
	}
}

func TestSplit_CharacterOverlapIsExact(t *testing.T) {
	s, err := New(12, 3)
	require.NoError(t, err)
	text := "one two three four five six seven eight nine ten eleven"
	chunks, err := s.Split(text, StrategyCharacter)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	runes := []rune(text)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].End-3, chunks[i].Start, "chunk %d overlap", i)
	}
	for i, c := range chunks[:len(chunks)-1] {
		cutInWord := !unicode.IsSpace(runes[c.End-1]) && !unicode.IsSpace(runes[c.End])
		assert.False(t, cutInWord, "chunk %d %q splits a word", i, c.Content)
	}
	assert.Equal(t, text, reconstruct(chunks))
}

func TestSplit_CharacterHardCutWithoutWhitespace(t *testing.T) {
	s, err := New(10, 2)
	require.NoError(t, err)
	text := strings.Repeat("x", 25)
	chunks, err := s.Split(text, StrategyCharacter)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, 10, len(chunks[0].Content))
	assert.Equal(t, 8, chunks[1].Start)
	assert.Equal(t, text, reconstruct(chunks))
}

func TestSplit_ShortAndEmpty(t *testing.T) {
	s, err := New(50, 10)
	require.NoError(t, err)

	for _, strategy := range []Strategy{StrategyCharacter, StrategySentence, StrategyRecursive} {
		chunks, err := s.Split("", strategy)
		require.NoError(t, err)
		assert.Empty(t, chunks)

		text := "The quick brown fox jumps over the lazy dog."
		chunks, err = s.Split(text, strategy)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, text, chunks[0].Content)

		chunks, err = s.Split("   \n\t ", strategy)
		require.NoError(t, err)
		assert.Len(t, chunks, 1)
	}
}

func TestSplit_CountsRunes(t *testing.T) {
	s, err := New(6, 0)
	require.NoError(t, err)
	chunks, err := s.Split("héllo wörld ñandú", StrategyCharacter)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "héllo ", chunks[0].Content)
	assert.Equal(t, "wörld ", chunks[1].Content)
	assert.Equal(t, "ñandú", chunks[2].Content)
}

func TestSplit_SentencePacking(t *testing.T) {
	text := "First sentence here. Second one is here. Third sentence now. Fourth."

	s, err := New(45, 0)
	require.NoError(t, err)
	chunks, err := s.Split(text, StrategySentence)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "First sentence here. Second one is here. ", chunks[0].Content)
	assert.Equal(t, "Third sentence now. Fourth.", chunks[1].Content)

	s, err = New(45, 20)
	require.NoError(t, err)
	chunks, err = s.Split(text, StrategySentence)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "Second one is here. Third sentence now. ", chunks[1].Content)
	assert.Equal(t, "Third sentence now. Fourth.", chunks[2].Content)
	assert.Equal(t, text, reconstruct(chunks))
}

func TestSentenceSpans_Boundaries(t *testing.T) {
	text := []rune(`e.g. this stays together. "Quoted end!" Then (another one.) Last`)
	spans := sentenceSpans(text, 0, len(text))
	var got []string
	for _, sp := range spans {
		got = append(got, string(text[sp.start:sp.end]))
	}
	assert.Equal(t, []string{
		"e.g. this stays together. ",
		`"Quoted end!" `,
		"Then (another one.) ",
		"Last",
	}, got)
}

func TestSplit_OversizeSentence(t *testing.T) {
	long := "This sentence keeps going with many words and never seems to reach its end at all."
	text := "Tiny. " + long + " Done."

	s, err := New(30, 8)
	require.NoError(t, err)

	recursive, err := s.Split(text, StrategyRecursive)
	require.NoError(t, err)
	sentence, err := s.Split(text, StrategySentence)
	require.NoError(t, err)

	assert.Equal(t, "Tiny. ", recursive[0].Content)
	assert.Equal(t, "Tiny. ", sentence[0].Content)
	for _, c := range append(recursive, sentence...) {
		assert.LessOrEqual(t, len([]rune(c.Content)), 30)
	}
	// The recursive strategy overlaps the pieces of the long sentence; the sentence strategy does not.
	assert.Equal(t, recursive[1].End-8, recursive[2].Start)
	assert.Equal(t, sentence[1].End, sentence[2].Start)
	assert.Equal(t, text, reconstruct(recursive))
	assert.Equal(t, text, reconstruct(sentence))
}

func TestSplit_UnknownStrategy(t *testing.T) {
	s, err := New(10, 0)
	require.NoError(t, err)
	_, err = s.Split("text", Strategy("words"))
	require.ErrorIs(t, err, models.ErrConfiguration)
}

func TestSplitDocument_PreservesMetadata(t *testing.T) {
	s, err := New(20, 5)
	require.NoError(t, err)
	doc := models.NewDocument("Alpha beta gamma. Delta epsilon zeta eta. Theta iota kappa.", "/docs/greek.txt", "txt")
	chunks, err := s.SplitDocument(doc, StrategyRecursive)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, "/docs/greek.txt", c.Source())
		assert.Equal(t, "txt", c.Metadata[models.MetaFileType])
		assert.Equal(t, i, c.ChunkIndex)
	}
	chunks[0].Metadata["extra"] = "x"
	assert.NotContains(t, chunks[1].Metadata, "extra")
	assert.NotContains(t, doc.Metadata, "extra")
}
