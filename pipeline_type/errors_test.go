package pipeline_type

import (
	"errors"
	"fmt"
	"testing"
)

func TestRAGErrorKind(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("answering: %w", NewRAGError(RetrievalError, "query policy index", base))

	if !IsKind(err, RetrievalError) {
		t.Errorf("Expected kind %v, got %v", RetrievalError, KindOf(err))
	}
	if IsKind(err, GenerationError) {
		t.Errorf("Did not expect generation kind")
	}
	if !errors.Is(err, base) {
		t.Errorf("Expected wrapped error to be reachable with errors.Is")
	}
	if got := err.Error(); got != "answering: query policy index: connection refused" {
		t.Errorf("Unexpected message: %s", got)
	}
	if KindOf(base) != 0 {
		t.Errorf("Expected zero kind for a plain error")
	}
}

func TestChunkIDIsStable(t *testing.T) {
	c := Chunk{Content: "a", Source: "circular.pdf", Page: 2, Position: 1, ChunkSize: 3000}
	if c.ID() != c.ID() {
		t.Fatalf("Expected identical ids for the same chunk")
	}
	other := c
	other.Page = 3
	if c.ID() == other.ID() {
		t.Errorf("Expected different ids for different pages")
	}
}
