package pipeline_type

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	IngestionError ErrorKind = iota + 1
	IndexBuildError
	RetrievalError
	GenerationError
	SearchError
)

func (k ErrorKind) String() string {
	switch k {
	case IngestionError:
		return "ingestion"
	case IndexBuildError:
		return "index_build"
	case RetrievalError:
		return "retrieval"
	case GenerationError:
		return "generation"
	case SearchError:
		return "search"
	default:
		return "unknown"
	}
}

var (
	ErrNoDocuments            = errors.New("no valid documents found")
	ErrEmptyChunks            = errors.New("cannot build an index from zero chunks")
	ErrIndexNotFound          = errors.New("persisted index not found")
	ErrEmbeddingModelMismatch = errors.New("embedding model mismatch")
	ErrDimensionMismatch      = errors.New("embedding dimension mismatch")
)

// RAGError tags a failure with the pipeline stage it came from.
type RAGError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *RAGError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RAGError) Unwrap() error {
	return e.Err
}

func NewRAGError(kind ErrorKind, op string, err error) *RAGError {
	return &RAGError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first RAGError in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var ragErr *RAGError
	if errors.As(err, &ragErr) {
		return ragErr.Kind
	}
	return 0
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
