// Package chunker splits filing text into ordered, overlapping chunks
// bounded by a token budget, and tags each chunk with a heuristic
// section label.
package chunker

import (
	"strings"

	"github.com/jcamier/stock-rag/pkg/models"
)

// Defaults match the ingestion profile for 10-K filings.
const (
	DefaultTokenBudget = 600
	DefaultOverlap     = 2
)

// Chunker accumulates sentences into chunks of at most budget tokens,
// carrying the trailing overlap sentences of each chunk into the next.
type Chunker struct {
	budget  int
	overlap int
}

func New(budget, overlap int) *Chunker {
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	return &Chunker{budget: budget, overlap: overlap}
}

// Chunk splits text into ordered chunks. Index is contiguous from 0; ID
// and DocumentID are left for the caller to assign. Empty input yields
// an empty slice. A single sentence over the budget is emitted as its
// own chunk rather than split mid-sentence.
func (c *Chunker) Chunk(text string) []models.Chunk {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return []models.Chunk{}
	}

	var chunks []models.Chunk
	var buf []string
	bufTokens := 0

	flush := func() {
		joined := strings.Join(buf, " ")
		chunks = append(chunks, models.Chunk{
			Index:      len(chunks),
			Text:       joined,
			TokenCount: bufTokens,
			Section:    DetectSection(joined),
		})
	}

	for _, s := range sentences {
		st := EstimateTokens(s)

		// Close the running chunk before this sentence would overflow it
		if len(buf) > 0 && bufTokens+st > c.budget {
			flush()
			buf = overlapTail(buf, c.overlap)
			bufTokens = 0
			for _, o := range buf {
				bufTokens += EstimateTokens(o)
			}
		}

		buf = append(buf, s)
		bufTokens += st
	}

	if len(buf) > 0 {
		flush()
	}

	return chunks
}

// overlapTail returns the sentences to seed the next chunk with: the
// trailing n sentences, or none when the closed chunk is no longer than
// the overlap itself.
func overlapTail(buf []string, n int) []string {
	if n == 0 || len(buf) <= n {
		return nil
	}
	tail := make([]string, n)
	copy(tail, buf[len(buf)-n:])
	return tail
}

// SplitSentences splits text at '.', '!' or '?' followed by whitespace.
// Whitespace-only units are dropped.
func SplitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 < len(runes) && isSpace(runes[i+1]) {
				if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// EstimateTokens approximates a cl100k-style subword count: one token
// per word plus one per four characters beyond the first four. It is
// deterministic and slightly conservative; token counts are a budget
// signal, not an exact tokenizer output.
func EstimateTokens(s string) int {
	n := 0
	for _, w := range strings.Fields(s) {
		n++
		if len(w) > 4 {
			n += (len(w) - 1) / 4
		}
	}
	return n
}
