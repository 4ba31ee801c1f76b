// Package textsplit splits document text into overlapping chunks for
// embedding and indexing. Splits prefer natural boundaries (sections,
// paragraphs, sentences) over hard cuts.
package textsplit

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MinChunkLen is the minimum length of an emitted chunk. Shorter
// fragments carry too little signal to be worth a vector.
const MinChunkLen = 50

// defaultSeparators in priority order: section break, paragraph, line,
// sentence end, clause, word.
var defaultSeparators = []string{
	"\n\n\n",
	"\n\n",
	"\n",
	". ",
	"! ",
	"? ",
	"; ",
	", ",
	" ",
}

// Splitter produces overlapping chunks of at most chunkSize bytes,
// with overlap bytes carried between consecutive chunks. The output
// for a given input is deterministic.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// New creates a Splitter. overlap must be smaller than chunkSize,
// otherwise the window could not advance.
func New(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("textsplit: chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("textsplit: overlap must not be negative, got %d", overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("textsplit: overlap %d must be smaller than chunk size %d", overlap, chunkSize)
	}
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: defaultSeparators,
	}, nil
}

// Split chunks text. Empty or whitespace-only input yields no chunks.
// Input no longer than chunkSize is returned as a single chunk.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= s.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0

	for start < len(text) {
		end := start + s.chunkSize

		if end >= len(text) {
			// Trailing remainder below the minimum length is dropped.
			chunk := strings.TrimSpace(text[start:])
			if len(chunk) >= MinChunkLen {
				chunks = append(chunks, chunk)
			}
			break
		}

		best := s.findSplit(text, start, end)

		chunk := strings.TrimSpace(text[start:best])
		if len(chunk) >= MinChunkLen {
			chunks = append(chunks, chunk)
		}

		// Hard cuts backed up for rune alignment can land inside the
		// overlap region; step past them without overlap rather than
		// stall.
		next := best - s.overlap
		if next <= start {
			next = best
		}
		start = next
	}

	return chunks
}

// findSplit returns the end of the chunk starting at start: the
// position just past the right-most occurrence of the highest-priority
// separator inside (start, end), or end itself when no separator
// matches. Separators ending within the first overlap bytes of the
// window are ignored: cutting there would move the next window start
// at or before the current one and the scan would never advance.
func (s *Splitter) findSplit(text string, start, end int) int {
	for _, sep := range s.separators {
		if pos := strings.LastIndex(text[start:end], sep); pos >= 0 && pos+len(sep) > s.overlap {
			return start + pos + len(sep)
		}
	}
	// Hard cut; back up so multi-byte runes stay intact.
	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}
