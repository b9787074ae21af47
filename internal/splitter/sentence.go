package splitter

import "unicode"

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’':
		return true
	}
	return false
}

// sentenceSpans partitions runes[from:to] into sentences. A sentence ends after terminal
// punctuation (and any closing quotes) followed by whitespace, unless the next word starts
// with a lower-case letter. Trailing whitespace belongs to the sentence it follows.
func sentenceSpans(runes []rune, from, to int) []span {
	var spans []span
	start := from
	i := from
	for i < to {
		if !isTerminal(runes[i]) {
			i++
			continue
		}
		j := i + 1
		for j < to && (isTerminal(runes[j]) || isCloser(runes[j])) {
			j++
		}
		if j >= to {
			break
		}
		if !unicode.IsSpace(runes[j]) {
			i = j
			continue
		}
		k := j
		for k < to && unicode.IsSpace(runes[k]) {
			k++
		}
		if k < to && unicode.IsLower(runes[k]) {
			i = k
			continue
		}
		spans = append(spans, span{start, k})
		start = k
		i = k
	}
	if start < to {
		spans = append(spans, span{start, to})
	}
	return spans
}

// packSentences greedily groups consecutive sentences into chunks no longer than chunkSize.
// Sentences longer than chunkSize are handed to oversize and emitted as their own chunks.
func (s *Splitter) packSentences(runes []rune, oversize func(span) []span) []span {
	var out, group []span
	for _, sent := range sentenceSpans(runes, 0, len(runes)) {
		if sent.len() > s.chunkSize {
			if len(group) > 0 {
				out = append(out, span{group[0].start, group[len(group)-1].end})
				group = nil
			}
			out = append(out, oversize(sent)...)
			continue
		}
		if len(group) > 0 && sent.end-group[0].start > s.chunkSize {
			out = append(out, span{group[0].start, group[len(group)-1].end})
			group = s.overlapTail(group)
			for len(group) > 0 && sent.end-group[0].start > s.chunkSize {
				group = group[1:]
			}
		}
		group = append(group, sent)
	}
	if len(group) > 0 {
		out = append(out, span{group[0].start, group[len(group)-1].end})
	}
	return out
}

// overlapTail returns the longest proper suffix of group spanning at most chunkOverlap runes.
func (s *Splitter) overlapTail(group []span) []span {
	end := group[len(group)-1].end
	i := len(group)
	for i > 1 && end-group[i-1].start <= s.chunkOverlap {
		i--
	}
	return append([]span(nil), group[i:]...)
}
