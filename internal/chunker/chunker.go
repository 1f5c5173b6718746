package chunker

import (
	"strings"
	"unicode/utf8"

	"youkb/internal/domain"
)

// DefaultSizeBudget is the chunk character budget used when none is configured.
const DefaultSizeBudget = 1000

// Chunk groups entries into passages of at most sizeBudget characters by
// greedy accumulation. A chunk's offset is the start offset of the first
// entry folded into it. A single entry larger than the budget becomes its own
// oversized chunk; entries are never split or dropped. Identical input always
// produces identical boundaries.
func Chunk(entries []domain.Entry, sizeBudget int) []domain.Chunk {
	if sizeBudget <= 0 {
		sizeBudget = DefaultSizeBudget
	}
	var chunks []domain.Chunk
	var buf strings.Builder
	var start float64

	seal := func() {
		text := strings.TrimSpace(buf.String())
		if text != "" {
			chunks = append(chunks, domain.Chunk{Text: text, StartSec: start})
		}
		buf.Reset()
	}

	for _, e := range entries {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		if buf.Len() == 0 {
			start = e.StartSec
			buf.WriteString(text)
			continue
		}
		if utf8.RuneCountInString(buf.String())+1+utf8.RuneCountInString(text) > sizeBudget {
			seal()
			start = e.StartSec
			buf.WriteString(text)
			continue
		}
		buf.WriteString(" ")
		buf.WriteString(text)
	}
	seal()
	return chunks
}
