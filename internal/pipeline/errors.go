package pipeline

// Error taxonomy for the query and ingest flows. Embedding and index
// failures are fatal to an answer call; generation failures are soft
// and absorbed by the tier fallback, so GenerationError never crosses
// the package boundary.

type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return "embedding failed: " + e.Err.Error() }
func (e *EmbeddingError) Unwrap() error { return e.Err }

type IndexError struct {
	Err error
}

func (e *IndexError) Error() string { return "vector index failed: " + e.Err.Error() }
func (e *IndexError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return "invalid " + e.Field + ": " + e.Reason }
