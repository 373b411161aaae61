package models

import (
	"time"

	"github.com/google/uuid"
)

// Document tracks a single ingested filing.
type Document struct {
	ID         uuid.UUID `json:"id"`
	Company    string    `json:"company"`
	Year       int       `json:"year"`
	FilingDate time.Time `json:"filing_date"`
	URL        string    `json:"url"`
	Status     string    `json:"status"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Document processing statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Chunk is one bounded unit of filing text. Index is contiguous per
// document (0..N-1) and assigned once at chunking time. Section is a
// heuristic keyword-derived label, advisory only.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
	Section    string `json:"section"`
}

// RetrievedUnit pairs a chunk with its query similarity. Computed per
// query, never persisted.
type RetrievedUnit struct {
	Chunk      Chunk   `json:"chunk"`
	Company    string  `json:"company"`
	Year       int     `json:"year"`
	Similarity float64 `json:"similarity"`
}

// Source is a citation entry in an answer.
type Source struct {
	ChunkID  string  `json:"chunk_id"`
	Document string  `json:"document"`
	Section  string  `json:"section"`
	Score    float64 `json:"relevance_score"`
	Snippet  string  `json:"snippet"`
}

// QueryRequest is a single question scoped to a filing year.
type QueryRequest struct {
	Query string `json:"query"`
	Year  int    `json:"year"`
	TopK  int    `json:"top_k"`
}

// AnswerResult is the complete outcome of one query. Constructed fresh
// per query and immutable once returned.
type AnswerResult struct {
	Query      string   `json:"query"`
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
	Year       int      `json:"year"`
}
