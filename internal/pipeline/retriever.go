package pipeline

import (
	"context"

	"github.com/jcamier/stock-rag/pkg/models"
)

// Searcher is the similarity-search contract the retriever depends on.
// Results come back in the index's own order (descending similarity,
// index-owned tie-breaks).
type Searcher interface {
	Search(ctx context.Context, vec []float32, year, k int) ([]models.RetrievedUnit, error)
}

// Retriever ranks chunks for a query embedding and scores the result
// set as a whole.
type Retriever struct {
	store Searcher
}

func NewRetriever(store Searcher) *Retriever {
	return &Retriever{store: store}
}

// Retrieve returns up to k units for the given scope plus an aggregate
// confidence. Zero results is a valid outcome with confidence 0, not an
// error.
func (r *Retriever) Retrieve(ctx context.Context, vec []float32, year, k int) ([]models.RetrievedUnit, float64, error) {
	units, err := r.store.Search(ctx, vec, year, k)
	if err != nil {
		return nil, 0, &IndexError{Err: err}
	}
	return units, Confidence(units), nil
}

// Confidence summarizes retrieval quality: the top similarity scaled by
// how well it is corroborated. A lone strong match scores below the
// same match backed by three or more units; the corroboration factor
// saturates at three so large k is not rewarded without bound.
func Confidence(units []models.RetrievedUnit) float64 {
	if len(units) == 0 {
		return 0.0
	}

	maxSim := units[0].Similarity

	factor := float64(len(units)) / 3.0
	if factor > 1.0 {
		factor = 1.0
	}

	c := maxSim * factor
	if c < 0 {
		return 0.0
	}
	if c > 1 {
		return 1.0
	}
	return c
}
