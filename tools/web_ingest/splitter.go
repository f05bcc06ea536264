package web_ingest

import (
	"strings"
	"unicode"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 250
)

// separators are tried in order when looking for a place to end a chunk.
var separators = []string{"\n\n", "\n", ". ", " "}

// Splitter cuts text into windows of at most Size characters (runes), each
// starting Overlap characters before the previous one ended. A window ends
// at the last separator in its back half when there is one.
type Splitter struct {
	Size    int
	Overlap int
}

func (s Splitter) Split(text string) []string {
	size, overlap := s.Size, s.Overlap
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{string(runes)}
	}

	var chunks []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			chunks = appendChunk(chunks, runes[start:])
			break
		}
		end = cutPoint(runes, start+size/2, end)
		chunks = appendChunk(chunks, runes[start:end])
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// cutPoint returns the index just past the last separator within
// runes[lo:hi], or hi when none is found.
func cutPoint(runes []rune, lo, hi int) int {
	window := string(runes[lo:hi])
	for _, sep := range separators {
		if i := strings.LastIndex(window, sep); i >= 0 {
			return lo + len([]rune(window[:i+len(sep)]))
		}
	}
	return hi
}

func appendChunk(chunks []string, part []rune) []string {
	s := strings.TrimFunc(string(part), unicode.IsSpace)
	if s == "" {
		return chunks
	}
	return append(chunks, s)
}
