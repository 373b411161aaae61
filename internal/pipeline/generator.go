package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jcamier/stock-rag/internal/ai"
	"github.com/jcamier/stock-rag/pkg/models"
)

const (
	// Fixed response when nothing was retrieved.
	noInformationAnswer = "No relevant information found for your query."

	// Extractive fallback returns this many characters of the best chunk.
	fallbackPrefixLen = 300

	ellipsis = "..."
)

// Generator synthesizes an answer from ranked units through an ordered
// list of completion tiers. Each tier is tried in sequence; any failure
// falls through to the next. The final extractive tier cannot fail, so
// Generate never returns an error.
type Generator struct {
	tiers   []ai.Completer
	timeout time.Duration
}

// NewGenerator builds a generator over the given tiers, in order of
// preference. Nil entries are skipped so callers can pass optional
// providers directly.
func NewGenerator(timeout time.Duration, tiers ...ai.Completer) *Generator {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	kept := make([]ai.Completer, 0, len(tiers))
	for _, t := range tiers {
		if t != nil {
			kept = append(kept, t)
		}
	}
	return &Generator{tiers: kept, timeout: timeout}
}

// Generate produces an answer grounded in units. Tier selection depends
// only on provider success, never on retrieval confidence.
func (g *Generator) Generate(ctx context.Context, query string, units []models.RetrievedUnit) string {
	if len(units) == 0 {
		return noInformationAnswer
	}

	prompt := BuildPrompt(query, units)

	for _, tier := range g.tiers {
		answer, err := g.complete(ctx, tier, prompt)
		if err != nil {
			log.Warn().Err(err).Str("provider", tier.Name()).Msg("generation tier failed, falling through")
			continue
		}
		return answer
	}

	return extractiveAnswer(units)
}

func (g *Generator) complete(ctx context.Context, tier ai.Completer, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return tier.Complete(ctx, prompt)
}

// BuildPrompt renders the fixed generation contract: the provider must
// answer from the supplied context alone and admit when the context
// does not contain the answer. Each unit is prefixed with its ordinal
// and section label.
func BuildPrompt(query string, units []models.RetrievedUnit) string {
	var b strings.Builder
	for i, u := range units {
		section := u.Chunk.Section
		if section == "" {
			section = "Unknown"
		}
		fmt.Fprintf(&b, "Source %d (Section: %s):\n%s\n\n", i+1, section, u.Chunk.Text)
	}

	return fmt.Sprintf(`You are a financial analyst assistant. Answer the following question based on the provided context from financial filings.

Context:
%s
Question: %s

Please provide a clear, accurate answer based only on the context. If the information is not available in the context, say so clearly.

Answer:`, b.String(), query)
}

// extractiveAnswer is the provider-free final tier: the prefix of the
// unit with the strictly highest similarity, first-encountered winning
// ties.
func extractiveAnswer(units []models.RetrievedUnit) string {
	best := units[0]
	for _, u := range units[1:] {
		if u.Similarity > best.Similarity {
			best = u
		}
	}
	return truncate(best.Chunk.Text, fallbackPrefixLen)
}

// truncate cuts s to at most n runes, appending an ellipsis marker when
// anything was cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + ellipsis
}
