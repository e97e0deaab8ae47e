// Package ingest turns documents into searchable embeddings: split the
// extracted text into overlapping chunks, embed them, and store them in
// the vector index.
package ingest

import (
	"strings"

	"github.com/novatech/supportiq/internal/rag"
)

// Page is one page of extracted document text. Sources without page
// structure (plain text, markdown) use a single page numbered 0.
type Page struct {
	PageNumber int
	Text       string
}

// separators tried in order when looking for a chunk boundary:
// paragraph break, line break, sentence end, word break.
var separators = []string{"\n\n", "\n", ". ", " "}

// Chunker splits text into overlapping windows measured in characters.
// Small chunks keep retrieval precise; the overlap preserves context
// across boundaries so a sentence split mid-thought still matches.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a Chunker. Config validation guarantees
// 0 <= overlap < size.
func NewChunker(size, overlap int) *Chunker {
	return &Chunker{size: size, overlap: overlap}
}

// Split chunks a single flat text. Chunk indices are sequential from 0.
func (c *Chunker) Split(text string) []rag.Chunk {
	return c.SplitPages([]Page{{Text: text}})
}

// SplitPages chunks page-separated text. Chunks never span pages, and
// indices are sequential across the whole document so (document,
// index) stays a unique identity.
func (c *Chunker) SplitPages(pages []Page) []rag.Chunk {
	var chunks []rag.Chunk
	idx := 0
	for _, page := range pages {
		for _, text := range c.splitText(page.Text) {
			chunks = append(chunks, rag.Chunk{
				Text:       text,
				Index:      idx,
				PageNumber: page.PageNumber,
			})
			idx++
		}
	}
	return chunks
}

// splitText produces windows of at most size characters, preferring to
// cut at the strongest separator available inside each window, with
// overlap characters carried into the next window.
func (c *Chunker) splitText(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.size {
		return []string{string(runes)}
	}

	var out []string
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			if piece := strings.TrimSpace(string(runes[start:])); piece != "" {
				out = append(out, piece)
			}
			break
		}

		cut := c.findBreak(runes, start, end)
		if piece := strings.TrimSpace(string(runes[start:cut])); piece != "" {
			out = append(out, piece)
		}

		next := cut - c.overlap
		if next <= start {
			// Guarantee forward progress even for pathological input.
			next = start + 1
		}
		start = next
	}
	return out
}

// findBreak returns the cut position in (start, end] closest to end at
// the strongest separator found, or end itself when the window has no
// separator at all.
func (c *Chunker) findBreak(runes []rune, start, end int) int {
	window := string(runes[start:end])
	for _, sep := range separators {
		if pos := strings.LastIndex(window, sep); pos > 0 {
			// Cut after the separator so sentence punctuation stays
			// with its sentence.
			return start + len([]rune(window[:pos+len(sep)]))
		}
	}
	return end
}
