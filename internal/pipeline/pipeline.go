// Package pipeline composes the chunker, embedder, vector store and
// generator into the two retrieval-augmented flows: ingest and answer.
package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jcamier/stock-rag/internal/ai"
	"github.com/jcamier/stock-rag/internal/chunker"
	"github.com/jcamier/stock-rag/internal/store"
	"github.com/jcamier/stock-rag/pkg/models"
)

const (
	maxQueryLen = 1000
	defaultTopK = 5
	maxTopK     = 20
	snippetLen  = 200
	callTimeout = 30 * time.Second
)

// IngestMeta scopes a filing being ingested.
type IngestMeta struct {
	Company    string
	Year       int
	URL        string
	FilingDate time.Time
}

// IngestResult reports a best-effort ingest run. ChunksFailed counts
// chunks whose embedding or store write failed; earlier chunks are not
// rolled back.
type IngestResult struct {
	DocumentID    string
	ChunksWritten int
	ChunksFailed  int
	SectionLabels []string
}

// Pipeline is stateless across invocations apart from aggregate
// counters; concurrent Ingest and Answer calls are independent.
type Pipeline struct {
	embedder  ai.Embedder
	store     store.ChunkStore
	chunker   *chunker.Chunker
	generator *Generator
	retriever *Retriever
	timeout   time.Duration

	chunksIndexed atomic.Int64
	queriesServed atomic.Int64
}

// New wires a pipeline. The embedder's dimension must match the store
// schema; that check belongs to startup (Migrate is called with
// embedder.Dim()), not to per-call handling.
func New(embedder ai.Embedder, st store.ChunkStore, ch *chunker.Chunker, gen *Generator, timeout time.Duration) *Pipeline {
	if ch == nil {
		ch = chunker.New(chunker.DefaultTokenBudget, chunker.DefaultOverlap)
	}
	if timeout == 0 {
		timeout = callTimeout
	}
	return &Pipeline{
		embedder:  embedder,
		store:     st,
		chunker:   ch,
		generator: gen,
		retriever: NewRetriever(st),
		timeout:   timeout,
	}
}

// ChunksIndexed returns the number of chunks written since startup.
func (p *Pipeline) ChunksIndexed() int64 { return p.chunksIndexed.Load() }

// QueriesServed returns the number of answered queries since startup.
func (p *Pipeline) QueriesServed() int64 { return p.queriesServed.Load() }

// Ingest chunks text, embeds each chunk and writes it to the vector
// store. Per-chunk failures are recorded and skipped; chunks already
// written stay written (at-least-once, the store dedupes re-runs).
// Empty text yields a zero-chunk result, not an error.
func (p *Pipeline) Ingest(ctx context.Context, text string, meta IngestMeta) (IngestResult, error) {
	docID, err := p.store.InsertDocument(ctx, meta.Company, meta.Year, meta.URL, meta.FilingDate)
	if err != nil {
		return IngestResult{}, &IndexError{Err: err}
	}

	result := IngestResult{DocumentID: docID.String()}

	chunks := p.chunker.Chunk(text)
	if len(chunks) == 0 {
		if err := p.store.SetDocumentStatus(ctx, docID, models.StatusCompleted, 0); err != nil {
			log.Warn().Err(err).Str("document_id", result.DocumentID).Msg("failed to update document status")
		}
		return result, nil
	}

	vecs := p.embedChunks(ctx, chunks)

	for i := range chunks {
		chunks[i].DocumentID = result.DocumentID
		chunks[i].ID = chunkID(result.DocumentID, chunks[i].Index)
		result.SectionLabels = append(result.SectionLabels, chunks[i].Section)

		if vecs[i] == nil {
			result.ChunksFailed++
			continue
		}

		wctx, cancel := context.WithTimeout(ctx, p.timeout)
		err := p.store.UpsertChunk(wctx, chunks[i], vecs[i], "")
		cancel()
		if err != nil {
			log.Error().Err(err).Str("chunk_id", chunks[i].ID).Int("index", chunks[i].Index).Msg("chunk write failed")
			result.ChunksFailed++
			continue
		}
		result.ChunksWritten++
	}

	status := models.StatusCompleted
	if result.ChunksWritten == 0 && result.ChunksFailed > 0 {
		status = models.StatusFailed
	}
	if err := p.store.SetDocumentStatus(ctx, docID, status, result.ChunksWritten); err != nil {
		log.Warn().Err(err).Str("document_id", result.DocumentID).Msg("failed to update document status")
	}

	p.chunksIndexed.Add(int64(result.ChunksWritten))
	return result, nil
}

// embedChunks embeds all chunk texts, preferring one batched call. If
// the batch fails, each chunk is retried individually so one bad item
// cannot sink the whole document. A nil vector marks a failed chunk.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []models.Chunk) [][]float32 {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	bctx, cancel := context.WithTimeout(ctx, p.timeout)
	vecs, err := p.embedder.EmbedBatch(bctx, texts)
	cancel()
	if err == nil && len(vecs) == len(chunks) {
		return vecs
	}
	if err != nil {
		log.Warn().Err(err).Int("chunks", len(chunks)).Msg("batch embedding failed, retrying per chunk")
	}

	vecs = make([][]float32, len(chunks))
	for i, t := range texts {
		ectx, cancel := context.WithTimeout(ctx, p.timeout)
		v, err := p.embedder.Embed(ectx, t)
		cancel()
		if err != nil {
			log.Error().Err(err).Int("index", i).Msg("chunk embedding failed")
			continue
		}
		vecs[i] = v
	}
	return vecs
}

// Answer runs the query flow: embed, retrieve, generate, assemble. It
// completes as a unit; embedding or index failures surface as a single
// error and no partial result is ever returned.
func (p *Pipeline) Answer(ctx context.Context, req models.QueryRequest) (models.AnswerResult, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.TopK == 0 {
		req.TopK = defaultTopK
	}
	if err := validate(req); err != nil {
		return models.AnswerResult{}, err
	}

	ectx, cancel := context.WithTimeout(ctx, p.timeout)
	vec, err := p.embedder.Embed(ectx, req.Query)
	cancel()
	if err != nil {
		return models.AnswerResult{}, &EmbeddingError{Err: err}
	}

	rctx, cancel := context.WithTimeout(ctx, p.timeout)
	units, confidence, err := p.retriever.Retrieve(rctx, vec, req.Year, req.TopK)
	cancel()
	if err != nil {
		return models.AnswerResult{}, err
	}

	result := models.AnswerResult{
		Query:      req.Query,
		Sources:    formatSources(units),
		Confidence: confidence,
		Year:       req.Year,
	}

	if len(units) == 0 {
		result.Answer = noInformationAnswer
		p.queriesServed.Add(1)
		return result, nil
	}

	result.Answer = p.generator.Generate(ctx, req.Query, units)
	p.queriesServed.Add(1)
	return result, nil
}

func validate(req models.QueryRequest) error {
	if req.Query == "" {
		return &ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if len(req.Query) > maxQueryLen {
		return &ValidationError{Field: "query", Reason: fmt.Sprintf("must be at most %d characters", maxQueryLen)}
	}
	if req.Year <= 0 {
		return &ValidationError{Field: "year", Reason: "must be a positive year"}
	}
	if req.TopK < 1 || req.TopK > maxTopK {
		return &ValidationError{Field: "top_k", Reason: fmt.Sprintf("must be between 1 and %d", maxTopK)}
	}
	return nil
}

// formatSources renders citation entries with bounded snippets.
func formatSources(units []models.RetrievedUnit) []models.Source {
	sources := make([]models.Source, 0, len(units))
	for _, u := range units {
		section := u.Chunk.Section
		if section == "" {
			section = "Unknown"
		}
		sources = append(sources, models.Source{
			ChunkID:  u.Chunk.ID,
			Document: fmt.Sprintf("%s-%d", u.Company, u.Year),
			Section:  section,
			Score:    u.Similarity,
			Snippet:  truncate(u.Chunk.Text, snippetLen),
		})
	}
	return sources
}

// chunkID derives a stable chunk identity from document and ordinal.
func chunkID(documentID string, index int) string {
	h := sha1.Sum([]byte(documentID + "#" + fmt.Sprintf("%d", index)))
	return hex.EncodeToString(h[:])
}
