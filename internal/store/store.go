package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jcamier/stock-rag/pkg/models"
)

// Store provides methods to interact with the database.
type Store struct {
	pool *pgxpool.Pool
}

// ChunkStore defines the methods that the Store must implement.
type ChunkStore interface {
	Migrate(ctx context.Context, dim int) error
	InsertDocument(ctx context.Context, company string, year int, url string, filingDate time.Time) (uuid.UUID, error)
	SetDocumentStatus(ctx context.Context, id uuid.UUID, status string, chunkCount int) error
	UpsertChunk(ctx context.Context, c models.Chunk, vec []float32, modelVersion string) error
	Search(ctx context.Context, vec []float32, year, k int) ([]models.RetrievedUnit, error)
	RecordQuery(ctx context.Context, query string, year, responseTimeMs int, confidence float64, sourcesCount int) error
	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
}

// New creates a new Store instance connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Migrate applies necessary database migrations and schema setup. dim
// is the embedding dimensionality; it is fixed for the lifetime of the
// index, so a changed dimension needs a fresh embeddings table.
func (s *Store) Migrate(ctx context.Context, dim int) error {
	q := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
  id           UUID PRIMARY KEY,
  company      TEXT NOT NULL,
  year         INT NOT NULL,
  filing_date  DATE,
  url          TEXT NOT NULL DEFAULT '',
  status       TEXT NOT NULL DEFAULT 'pending',
  chunk_count  INT NOT NULL DEFAULT 0,
  created_at   TIMESTAMP WITH TIME ZONE DEFAULT now(),
  updated_at   TIMESTAMP WITH TIME ZONE DEFAULT now(),
  UNIQUE (company, year)
);

CREATE TABLE IF NOT EXISTS chunks (
  id           TEXT PRIMARY KEY,
  document_id  UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
  chunk_index  INT NOT NULL,
  chunk_text   TEXT NOT NULL,
  token_count  INT NOT NULL DEFAULT 0,
  section      TEXT,
  created_at   TIMESTAMP WITH TIME ZONE DEFAULT now(),
  UNIQUE (document_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS chunks_document_idx
  ON chunks (document_id);

CREATE TABLE IF NOT EXISTS embeddings (
  chunk_id       TEXT PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
  embedding      vector(%d) NOT NULL,
  model_version  TEXT NOT NULL DEFAULT '',
  created_at     TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE INDEX IF NOT EXISTS embeddings_cosine_idx
  ON embeddings USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);

CREATE TABLE IF NOT EXISTS query_history (
  id                BIGSERIAL PRIMARY KEY,
  query             TEXT NOT NULL,
  year              INT NOT NULL,
  response_time_ms  INT NOT NULL,
  confidence_score  DOUBLE PRECISION NOT NULL,
  sources_count     INT NOT NULL,
  created_at        TIMESTAMP WITH TIME ZONE DEFAULT now()
);
`
	_, err := s.pool.Exec(ctx, fmt.Sprintf(q, dim))
	return err
}

// InsertDocument records a filing and returns its id. A filing for the
// same company and year supersedes the previous row's metadata; its
// chunks remain until re-ingested over.
func (s *Store) InsertDocument(ctx context.Context, company string, year int, url string, filingDate time.Time) (uuid.UUID, error) {
	id := uuid.New()
	const q = `
		INSERT INTO documents (id, company, year, filing_date, url, status)
		VALUES ($1, $2, $3, $4, $5, 'processing')
		ON CONFLICT (company, year) DO UPDATE SET
			filing_date = EXCLUDED.filing_date,
			url         = EXCLUDED.url,
			status      = 'processing',
			updated_at  = now()
		RETURNING id`

	var got uuid.UUID
	if err := s.pool.QueryRow(ctx, q, id, company, year, filingDate, url).Scan(&got); err != nil {
		return uuid.Nil, err
	}
	return got, nil
}

// SetDocumentStatus updates the status of the specific document row.
func (s *Store) SetDocumentStatus(ctx context.Context, id uuid.UUID, status string, chunkCount int) error {
	const q = `
		UPDATE documents
		SET status = $2, chunk_count = $3, updated_at = now()
		WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, id, status, chunkCount)
	return err
}

// UpsertChunk writes a chunk and its embedding in one transaction.
// Re-running an ingest overwrites the same chunk identity rather than
// duplicating it.
func (s *Store) UpsertChunk(ctx context.Context, c models.Chunk, vec []float32, modelVersion string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const chunkQ = `
		INSERT INTO chunks (id, document_id, chunk_index, chunk_text, token_count, section)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (document_id, chunk_index) DO UPDATE SET
			chunk_text  = EXCLUDED.chunk_text,
			token_count = EXCLUDED.token_count,
			section     = EXCLUDED.section`
	if _, err := tx.Exec(ctx, chunkQ, c.ID, c.DocumentID, c.Index, c.Text, c.TokenCount, c.Section); err != nil {
		return err
	}

	const embedQ = `
		INSERT INTO embeddings (chunk_id, embedding, model_version)
		VALUES ($1, $2, $3)
		ON CONFLICT (chunk_id) DO UPDATE SET
			embedding     = EXCLUDED.embedding,
			model_version = EXCLUDED.model_version,
			created_at    = now()`
	if _, err := tx.Exec(ctx, embedQ, c.ID, pgvector.NewVector(vec), modelVersion); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Search returns the k nearest chunks to vec within the given filing
// year, ordered by the index's cosine distance. Similarity is
// 1 - distance; ordering and tie-breaks belong to the index, callers
// must not re-sort.
func (s *Store) Search(ctx context.Context, vec []float32, year, k int) ([]models.RetrievedUnit, error) {
	const q = `
		SELECT
			c.id,
			c.document_id,
			c.chunk_index,
			c.chunk_text,
			c.token_count,
			c.section,
			d.company,
			d.year,
			1 - (e.embedding <=> $1) AS similarity
		FROM chunks c
		JOIN documents d ON c.document_id = d.id
		JOIN embeddings e ON c.id = e.chunk_id
		WHERE d.year = $2
		ORDER BY e.embedding <=> $1
		LIMIT $3`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(vec), year, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RetrievedUnit
	for rows.Next() {
		var u models.RetrievedUnit
		var docID uuid.UUID
		if err := rows.Scan(
			&u.Chunk.ID, &docID, &u.Chunk.Index, &u.Chunk.Text,
			&u.Chunk.TokenCount, &u.Chunk.Section,
			&u.Company, &u.Year, &u.Similarity,
		); err != nil {
			return nil, err
		}
		u.Chunk.DocumentID = docID.String()
		out = append(out, u)
	}
	return out, rows.Err()
}

// RecordQuery appends a row to the query history.
func (s *Store) RecordQuery(ctx context.Context, query string, year, responseTimeMs int, confidence float64, sourcesCount int) error {
	const q = `
		INSERT INTO query_history (query, year, response_time_ms, confidence_score, sources_count)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.pool.Exec(ctx, q, query, year, responseTimeMs, confidence, sourcesCount)
	return err
}

// Stats holds aggregate counters for the reporting surface.
type Stats struct {
	DocumentsProcessed int     `json:"documents_processed"`
	TotalChunks        int     `json:"total_chunks"`
	TotalQueries       int     `json:"total_queries"`
	AvgResponseTimeMs  float64 `json:"avg_response_time_ms"`
}

// Stats returns aggregate document, chunk and query counters.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	const q = `
		SELECT
			(SELECT COUNT(*) FROM documents WHERE status = 'completed'),
			(SELECT COUNT(*) FROM chunks),
			(SELECT COUNT(*) FROM query_history),
			(SELECT COALESCE(AVG(response_time_ms), 0) FROM query_history)`
	err := s.pool.QueryRow(ctx, q).Scan(
		&st.DocumentsProcessed, &st.TotalChunks, &st.TotalQueries, &st.AvgResponseTimeMs,
	)
	if err != nil {
		return Stats{}, err
	}
	return st, nil
}

// Ping checks the database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
