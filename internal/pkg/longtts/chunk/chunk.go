// Package chunk splits long text into sentence-bounded pieces small enough
// for a single model call.
package chunk

import (
	"strings"
	"unicode/utf8"
)

const DefaultMaxChars = 300

// Splitter breaks text into sentences in reading order.
type Splitter interface {
	Split(text string) []string
}

type Options struct {
	MaxChars int
	// SplitLong breaks a sentence that cannot fit in a chunk on its own at
	// word boundaries. When false such a sentence is emitted whole.
	SplitLong bool
}

type Chunker struct {
	splitter Splitter
	opts     Options
}

func New(splitter Splitter, opts Options) *Chunker {
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	return &Chunker{splitter: splitter, opts: opts}
}

// Chunk returns the ordered chunks for text. Blank input yields no chunks.
func (c *Chunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := c.splitter.Split(text)
	if c.opts.SplitLong {
		var pieces []string
		for _, s := range sentences {
			pieces = append(pieces, SplitLong(s, c.opts.MaxChars)...)
		}
		sentences = pieces
	}

	return Pack(sentences, c.opts.MaxChars)
}

// Pack greedily joins sentences with single spaces while the chunk stays
// strictly under maxChars code points, counting the separator. A sentence
// that does not fit starts a new chunk, even if it alone exceeds maxChars.
func Pack(sentences []string, maxChars int) []string {
	var (
		chunks  []string
		current strings.Builder
		curLen  int
	)

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, current.String())
		}
		current.Reset()
		curLen = 0
	}

	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		n := utf8.RuneCountInString(s)

		if curLen+n+1 < maxChars {
			if curLen > 0 {
				current.WriteByte(' ')
				curLen++
			}
			current.WriteString(s)
			curLen += n
			continue
		}

		flush()
		current.WriteString(s)
		curLen = n
	}
	flush()

	return chunks
}

// SplitLong cuts a sentence that Pack could never place alongside anything
// into word-aligned pieces of at most maxChars-1 code points. A single word
// longer than that is kept whole.
func SplitLong(sentence string, maxChars int) []string {
	limit := maxChars - 1
	if limit < 1 || utf8.RuneCountInString(sentence) <= limit {
		return []string{sentence}
	}

	var (
		pieces  []string
		current strings.Builder
		curLen  int
	)

	for _, word := range strings.Fields(sentence) {
		n := utf8.RuneCountInString(word)
		if curLen > 0 && curLen+1+n > limit {
			pieces = append(pieces, current.String())
			current.Reset()
			curLen = 0
		}
		if curLen > 0 {
			current.WriteByte(' ')
			curLen++
		}
		current.WriteString(word)
		curLen += n
	}
	if curLen > 0 {
		pieces = append(pieces, current.String())
	}

	return pieces
}
