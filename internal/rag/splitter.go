package rag

import "strings"

// Splitter cuts document text into overlapping chunks. Text is split on
// progressively finer separators (paragraph, line, word) and adjacent pieces
// are merged back into chunks of at most ChunkSize runes, carrying up to
// Overlap runes between consecutive chunks. The overlap is trimmed when a
// full carry would push a chunk past ChunkSize.
type Splitter struct {
	ChunkSize int // max chunk length in runes
	Overlap   int // runes carried from the end of one chunk into the next
}

// DefaultSplitter matches the indexer's defaults.
func DefaultSplitter() Splitter {
	return Splitter{ChunkSize: 1000, Overlap: 200}
}

var separators = []string{"\n\n", "\n", " "}

// Split returns the chunks for text. Whitespace-only input yields nothing.
func (s Splitter) Split(text string) []string {
	if s.ChunkSize <= 0 {
		s.ChunkSize = 1000
	}
	if s.Overlap < 0 || s.Overlap >= s.ChunkSize {
		s.Overlap = 0
	}

	pieces := split(text, 0, s.ChunkSize)

	var chunks []string
	var current []rune
	for _, piece := range pieces {
		runes := []rune(piece)
		if len(current)+len(runes) > s.ChunkSize && len(current) > 0 {
			chunk := strings.TrimSpace(string(current))
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			keep := s.Overlap
			if max := s.ChunkSize - len(runes); keep > max {
				keep = max
			}
			if keep < 0 {
				keep = 0
			}
			if keep > len(current) {
				keep = len(current)
			}
			current = append([]rune(nil), current[len(current)-keep:]...)
		}
		current = append(current, runes...)
	}
	if chunk := strings.TrimSpace(string(current)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// split recursively breaks text into pieces no longer than limit runes,
// preferring coarse separators and falling back to a hard cut.
func split(text string, sepIdx, limit int) []string {
	if len([]rune(text)) <= limit {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	if sepIdx >= len(separators) {
		runes := []rune(text)
		var out []string
		for len(runes) > limit {
			out = append(out, string(runes[:limit]))
			runes = runes[limit:]
		}
		if len(runes) > 0 {
			out = append(out, string(runes))
		}
		return out
	}

	sep := separators[sepIdx]
	parts := strings.Split(text, sep)
	var out []string
	for i, part := range parts {
		if i < len(parts)-1 {
			part += sep
		}
		out = append(out, split(part, sepIdx+1, limit)...)
	}
	return out
}
