// Package chunker splits document text into bounded, sentence-aware segments
// suitable for embedding.
//
// Splitting is paragraph- then sentence-aware: chunks target a character
// budget and never break mid-sentence when avoidable. A single sentence
// longer than the budget is emitted as one oversized chunk rather than
// dropped or truncated.
package chunker

import (
	"regexp"
	"strings"
)

// Defaults applied when options are omitted or out of range.
const (
	// DefaultChunkSize is the target character budget per chunk.
	DefaultChunkSize = 1000

	// DefaultOverlap is the number of trailing sentences repeated at the
	// start of the next chunk, preserving context across boundaries.
	DefaultOverlap = 1
)

// sentenceSplitter matches sentence-terminated runs of text. Text after the
// last terminator is handled separately as a trailing fragment.
var sentenceSplitter = regexp.MustCompile(`(?s)[^.!?\n]+[.!?]+['")\]]*|[^.!?\n]+\n`)

// Chunk is one bounded text segment. Index is zero-based within the source
// document; Total is the document's chunk count, identical across siblings.
type Chunk struct {
	Text  string
	Index int
	Total int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the target character budget per chunk.
// Non-positive values keep the default.
func WithChunkSize(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithOverlap sets how many sentences adjacent chunks share.
// Negative values keep the default.
func WithOverlap(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlap = n
		}
	}
}

// Chunker splits text under a character budget. Safe for concurrent use.
type Chunker struct {
	chunkSize int
	overlap   int
}

// New creates a Chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	// Overlap must leave room for progress; cap it below the budget in
	// sentences by clamping at split time instead.
	return c
}

// Split divides text into chunks. Empty or whitespace-only input yields zero
// chunks; callers decide whether that is an error (the indexing pipeline
// treats it as one).
func (c *Chunker) Split(text string) []Chunk {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var texts []string
	var current []string
	currentLen := 0

	for i := 0; i < len(sentences); i++ {
		s := sentences[i]
		if currentLen > 0 && currentLen+len(s)+1 > c.chunkSize {
			texts = append(texts, strings.Join(current, " "))

			// Carry trailing sentences into the next chunk. Never carry the
			// whole window, or the loop would stop making progress.
			carry := c.overlap
			if carry >= len(current) {
				carry = len(current) - 1
			}
			if carry > 0 {
				current = append([]string(nil), current[len(current)-carry:]...)
				currentLen = joinedLen(current)
			} else {
				current = nil
				currentLen = 0
			}
		}
		current = append(current, s)
		currentLen += len(s)
		if len(current) > 1 {
			currentLen++ // joining space
		}
	}
	if len(current) > 0 {
		texts = append(texts, strings.Join(current, " "))
	}

	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{Text: t, Index: i, Total: len(texts)}
	}
	return chunks
}

// Placeholder wraps a non-text input (image, binary attachment) as a single
// explicit chunk whose text is a display label. This path is deliberate: the
// pipeline calls it for known non-text content types, never as a fallback
// for failed extraction.
func (*Chunker) Placeholder(label string) []Chunk {
	return []Chunk{{Text: label, Index: 0, Total: 1}}
}

// splitSentences breaks text into trimmed sentences, paragraph boundaries
// first. A document with no sentence terminators becomes one sentence.
func splitSentences(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	idxs := sentenceSplitter.FindAllStringIndex(trimmed, -1)

	var sentences []string
	end := 0
	for _, loc := range idxs {
		if s := strings.TrimSpace(trimmed[loc[0]:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		end = loc[1]
	}
	// Whatever trails the last terminator is a sentence too.
	if rest := strings.TrimSpace(trimmed[end:]); rest != "" {
		sentences = append(sentences, rest)
	}

	if len(sentences) == 0 {
		return []string{trimmed}
	}
	return sentences
}

func joinedLen(parts []string) int {
	n := 0
	for i, p := range parts {
		n += len(p)
		if i > 0 {
			n++
		}
	}
	return n
}
