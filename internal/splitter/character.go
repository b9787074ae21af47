package splitter

import "unicode"

// characterSpans cuts runes[from:to] into windows of chunkSize. Each window after the
// first starts exactly chunkOverlap runes before the end of the previous one.
func (s *Splitter) characterSpans(runes []rune, from, to int) []span {
	if from >= to {
		return nil
	}
	var spans []span
	start := from
	for {
		end := start + s.chunkSize
		if end >= to {
			return append(spans, span{start, to})
		}
		end = s.backoff(runes, start, end)
		spans = append(spans, span{start, end})
		start = end - s.chunkOverlap
	}
}

// backoff moves a cut that lands inside a word to just after the nearest preceding
// whitespace. The window must stay longer than the overlap, otherwise the cut is kept.
func (s *Splitter) backoff(runes []rune, start, end int) int {
	if unicode.IsSpace(runes[end-1]) || unicode.IsSpace(runes[end]) {
		return end
	}
	for i := end - 1; i > start+s.chunkOverlap; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

// hardSpans cuts a span into consecutive windows of chunkSize with no overlap.
func (s *Splitter) hardSpans(sp span) []span {
	var spans []span
	for start := sp.start; start < sp.end; start += s.chunkSize {
		spans = append(spans, span{start, min(start+s.chunkSize, sp.end)})
	}
	return spans
}
