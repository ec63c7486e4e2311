package rag_service

import (
	"context"
	"encoding/binary"
	"math"
	"sort"

	"github.com/serisow/policybot/pipeline_type"
)

// VectorStore persists index entries for one corpus and answers
// nearest-neighbour queries over them.
type VectorStore interface {
	// Exists reports whether a non-empty persisted store is present.
	Exists(ctx context.Context) (bool, error)
	// Create initialises an empty store, discarding anything left behind.
	Create(ctx context.Context, meta pipeline_type.IndexMetadata) error
	Append(ctx context.Context, entries []pipeline_type.IndexEntry) error
	// Persist flushes everything written so far to durable storage.
	Persist(ctx context.Context) error
	// Open loads a persisted store and returns the metadata it was built with.
	Open(ctx context.Context) (pipeline_type.IndexMetadata, error)
	Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error)
	Count(ctx context.Context) (int, error)
	// Reset deletes the persisted store.
	Reset(ctx context.Context) error
	Close() error
}

type ScoredChunk struct {
	Chunk pipeline_type.Chunk
	Score float64
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// topK ranks entries by cosine similarity. Ties keep insertion order.
func topK(entries []pipeline_type.IndexEntry, vector []float32, k int) []ScoredChunk {
	scored := make([]ScoredChunk, len(entries))
	for i, e := range entries {
		scored[i] = ScoredChunk{Chunk: e.Chunk, Score: cosineSimilarity(e.Embedding, vector)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
