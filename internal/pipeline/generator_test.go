package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jcamier/stock-rag/pkg/models"
)

// mockCompleter implements ai.Completer for tier testing
type mockCompleter struct {
	name         string
	CompleteFunc func(ctx context.Context, prompt string) (string, error)
	calls        int
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.calls++
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	return "", errors.New("not configured")
}

func (m *mockCompleter) Name() string { return m.name }

func singleUnit(text string, sim float64) []models.RetrievedUnit {
	return []models.RetrievedUnit{
		{
			Chunk:      models.Chunk{ID: "c1", Text: text, Section: "Risk Factors"},
			Company:    "Apple Inc.",
			Year:       2023,
			Similarity: sim,
		},
	}
}

func TestGenerate_EmptyUnits(t *testing.T) {
	g := NewGenerator(time.Second)

	got := g.Generate(context.Background(), "What was revenue?", nil)
	if got != noInformationAnswer {
		t.Errorf("expected %q, got %q", noInformationAnswer, got)
	}
}

func TestGenerate_FirstTierWins(t *testing.T) {
	first := &mockCompleter{
		name: "ollama",
		CompleteFunc: func(ctx context.Context, prompt string) (string, error) {
			return "local answer", nil
		},
	}
	second := &mockCompleter{
		name: "openai",
		CompleteFunc: func(ctx context.Context, prompt string) (string, error) {
			return "remote answer", nil
		},
	}
	g := NewGenerator(time.Second, first, second)

	got := g.Generate(context.Background(), "What was revenue?", singleUnit("Revenue grew.", 0.9))
	if got != "local answer" {
		t.Errorf("expected first tier answer, got %q", got)
	}
	if second.calls != 0 {
		t.Errorf("second tier must not be called when first succeeds, got %d calls", second.calls)
	}
}

func TestGenerate_FallsThroughOnFailure(t *testing.T) {
	first := &mockCompleter{
		name: "ollama",
		CompleteFunc: func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("connection refused")
		},
	}
	second := &mockCompleter{
		name: "openai",
		CompleteFunc: func(ctx context.Context, prompt string) (string, error) {
			return "remote answer", nil
		},
	}
	g := NewGenerator(time.Second, first, second)

	got := g.Generate(context.Background(), "What was revenue?", singleUnit("Revenue grew.", 0.9))
	if got != "remote answer" {
		t.Errorf("expected second tier answer, got %q", got)
	}
	if first.calls != 1 {
		t.Errorf("expected first tier attempted once, got %d", first.calls)
	}
}

func TestGenerate_AllTiersFailExtractiveFallback(t *testing.T) {
	failing := &mockCompleter{
		name: "ollama",
		CompleteFunc: func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("unavailable")
		},
	}
	g := NewGenerator(time.Second, failing, failing)

	text := strings.Repeat("X", 500)
	got := g.Generate(context.Background(), "What was revenue?", singleUnit(text, 0.9))

	expected := strings.Repeat("X", 300) + "..."
	if got != expected {
		t.Errorf("expected 300-char prefix with ellipsis, got %d chars", len(got))
	}
}

func TestGenerate_NoTiersGoesStraightToExtractive(t *testing.T) {
	g := NewGenerator(time.Second)

	got := g.Generate(context.Background(), "What was revenue?", singleUnit("Short chunk.", 0.9))
	if got != "Short chunk." {
		t.Errorf("expected unmodified short text, got %q", got)
	}
}

func TestExtractiveAnswer_PicksHighestSimilarity(t *testing.T) {
	units := []models.RetrievedUnit{
		{Chunk: models.Chunk{Text: "second best"}, Similarity: 0.7},
		{Chunk: models.Chunk{Text: "the best"}, Similarity: 0.9},
		{Chunk: models.Chunk{Text: "tied with best"}, Similarity: 0.9},
	}

	// ties go to the first encountered
	if got := extractiveAnswer(units); got != "the best" {
		t.Errorf("expected %q, got %q", "the best", got)
	}
}

func TestGenerate_NilTiersSkipped(t *testing.T) {
	working := &mockCompleter{
		name: "openai",
		CompleteFunc: func(ctx context.Context, prompt string) (string, error) {
			return "answer", nil
		},
	}
	g := NewGenerator(time.Second, nil, working, nil)

	got := g.Generate(context.Background(), "q", singleUnit("text.", 0.5))
	if got != "answer" {
		t.Errorf("expected nil tiers to be skipped, got %q", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	units := []models.RetrievedUnit{
		{Chunk: models.Chunk{Text: "Revenue was $383 billion.", Section: "Financial Statements"}},
		{Chunk: models.Chunk{Text: "Risks include supply chain.", Section: ""}},
	}

	prompt := BuildPrompt("What was total revenue?", units)

	for _, want := range []string{
		"Source 1 (Section: Financial Statements):",
		"Revenue was $383 billion.",
		"Source 2 (Section: Unknown):",
		"Question: What was total revenue?",
		"based only on the context",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		n        int
		expected string
	}{
		{"shorter than limit", "abc", 5, "abc"},
		{"exactly at limit", "abcde", 5, "abcde"},
		{"over limit", "abcdef", 5, "abcde..."},
		{"multibyte runes", "日本語テキスト", 3, "日本語..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.input, tt.n); got != tt.expected {
				t.Errorf("truncate(%q, %d) = %q, expected %q", tt.input, tt.n, got, tt.expected)
			}
		})
	}
}
