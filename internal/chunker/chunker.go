// Package chunker splits page-tagged text into overlapping chunks.
//
// Pages are split independently, so every chunk carries exactly the page it
// was cut from and no chunk spans a page boundary.
package chunker

import (
	"unicode"

	"study-notes-platform/models"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 100

// Chunker cuts text into chunks of at most size characters.
type Chunker struct {
	size    int
	overlap int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

func New(opts ...Option) *Chunker {
	c := &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

// Span is one chunk of a text with rune offsets [Start, End).
type Span struct {
	Start int
	End   int
	Text  string
}

// Split chunks every page in order. Each non-empty page yields at least one
// chunk; empty input yields no chunks.
func (c *Chunker) Split(documentID, fileName string, pages []models.PageText) []models.Chunk {
	var chunks []models.Chunk
	for _, page := range pages {
		for _, sp := range c.SplitText(page.Text) {
			chunks = append(chunks, models.Chunk{
				Content: sp.Text,
				Metadata: models.ChunkMetadata{
					PageIndex:   page.Index,
					SlideTitle:  page.Title,
					Source:      documentID,
					FileName:    fileName,
					ChunkIndex:  len(chunks),
					StartOffset: sp.Start,
				},
			})
		}
	}
	return chunks
}

// SplitText greedily fills chunks up to the size limit, preferring to end at
// a paragraph break, then a sentence end, then a line break, then a space.
// Each following chunk starts overlap characters before the previous end,
// moved forward to the next word start when one is inside the overlap.
func (c *Chunker) SplitText(text string) []Span {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	spans := make([]Span, 0, n/(c.size-c.overlap)+1)
	start := 0
	for start < n {
		end := start + c.size
		if end >= n {
			end = n
		} else {
			end = c.breakPoint(runes, start, end)
		}
		spans = append(spans, Span{Start: start, End: end, Text: string(runes[start:end])})
		if end >= n {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = alignToWord(runes, next, end)
	}
	return spans
}

// breakPoint returns the best cut in (start+size/2, limit], or limit.
func (c *Chunker) breakPoint(runes []rune, start, limit int) int {
	floor := start + c.size/2
	if floor < start+1 {
		floor = start + 1
	}

	matchers := []func(i int) bool{
		// paragraph
		func(i int) bool { return i-2 >= start && runes[i-1] == '\n' && runes[i-2] == '\n' },
		// sentence
		func(i int) bool { return i-2 >= start && isSpace(runes[i-1]) && isSentenceEnd(runes[i-2]) },
		// line
		func(i int) bool { return runes[i-1] == '\n' },
		// word
		func(i int) bool { return isSpace(runes[i-1]) },
	}
	for _, match := range matchers {
		for i := limit; i > floor; i-- {
			if match(i) {
				return i
			}
		}
	}
	return limit
}

func alignToWord(runes []rune, pos, limit int) int {
	if pos == 0 || isSpace(runes[pos-1]) {
		return pos
	}
	for i := pos; i < limit; i++ {
		if isSpace(runes[i]) {
			return i + 1
		}
	}
	return pos
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r)
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
