package rag_service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/serisow/policybot/pipeline_type"
)

var sampleChunks = []pipeline_type.Chunk{
	{Content: "The deposit insurance limit per depositor is five lakh rupees", Source: "circular.pdf", Page: 1},
	{Content: "Banks must maintain a cash reserve ratio with the central bank", Source: "circular.pdf", Page: 2},
	{Content: "Priority sector lending targets apply to scheduled commercial banks", Source: "lending.pdf", Page: 1},
	{Content: "Know your customer norms require periodic updation of records", Source: "kyc.pdf", Page: 1},
	{Content: "Gross non performing assets declined across public sector banks", Source: "report.pdf", Page: 4},
}

func newTestIndex(t *testing.T, dir string, embedder Embedder, batchSize int) *VectorIndex {
	t.Helper()
	index := NewVectorIndex("policy", NewSQLiteStore(dir), embedder, batchSize, testLogger())
	t.Cleanup(func() { index.Close() })
	return index
}

func TestVectorIndexBuildAndQuery(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "policy_index")
	index := newTestIndex(t, dir, &MockEmbedder{}, 2)

	batches, err := index.Build(ctx, sampleChunks)
	if err != nil {
		t.Fatalf("Did not expect an error but got: %v", err)
	}
	if batches != 3 {
		t.Errorf("Expected 3 batches, got %d", batches)
	}

	results, err := index.Query(ctx, "deposit insurance limit", 2)
	if err != nil {
		t.Fatalf("Did not expect an error but got: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if !strings.Contains(results[0].Content, "deposit insurance") {
		t.Errorf("Expected the deposit insurance chunk first, got %q", results[0].Content)
	}

	all, err := index.Query(ctx, "banks", 10)
	if err != nil {
		t.Fatalf("Did not expect an error but got: %v", err)
	}
	if len(all) != len(sampleChunks) {
		t.Errorf("Expected k to be capped at %d entries, got %d", len(sampleChunks), len(all))
	}
}

func TestVectorIndexPersistAndReload(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "policy_index")

	built := newTestIndex(t, dir, &MockEmbedder{}, 100)
	if _, err := built.Build(ctx, sampleChunks); err != nil {
		t.Fatalf("Did not expect an error but got: %v", err)
	}
	want, err := built.Query(ctx, "cash reserve ratio", 3)
	if err != nil {
		t.Fatal(err)
	}
	built.Close()

	reloaded := newTestIndex(t, dir, &MockEmbedder{}, 100)
	exists, err := reloaded.Exists(ctx)
	if err != nil || !exists {
		t.Fatalf("Expected persisted index to exist, got %v (err %v)", exists, err)
	}
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Did not expect an error but got: %v", err)
	}
	count, _ := reloaded.Count(ctx)
	if count != len(sampleChunks) {
		t.Errorf("Expected %d entries, got %d", len(sampleChunks), count)
	}

	got, err := reloaded.Query(ctx, "cash reserve ratio", 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Result %d differs after reload: %+v vs %+v", i, got[i], want[i])
		}
	}
}

func TestVectorIndexRebuildIsIdempotent(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t, filepath.Join(t.TempDir(), "idx"), &MockEmbedder{}, 2)

	for i := 0; i < 2; i++ {
		if _, err := index.Build(ctx, sampleChunks); err != nil {
			t.Fatalf("Build %d: %v", i, err)
		}
	}
	count, _ := index.Count(ctx)
	if count != len(sampleChunks) {
		t.Errorf("Expected %d entries after rebuild, got %d", len(sampleChunks), count)
	}
}

func TestVectorIndexLoadRejectsOtherModel(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "idx")

	built := newTestIndex(t, dir, &MockEmbedder{ModelName: "model-a"}, 10)
	if _, err := built.Build(ctx, sampleChunks); err != nil {
		t.Fatal(err)
	}
	built.Close()

	tests := []struct {
		name     string
		embedder *MockEmbedder
		want     error
	}{
		{"different model", &MockEmbedder{ModelName: "model-b"}, pipeline_type.ErrEmbeddingModelMismatch},
		{"different dimension", &MockEmbedder{ModelName: "model-a", Dim: 32}, pipeline_type.ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := newTestIndex(t, dir, tt.embedder, 10)
			err := index.Load(ctx)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			if !pipeline_type.IsKind(err, pipeline_type.IndexBuildError) {
				t.Errorf("Expected index build kind, got %v", pipeline_type.KindOf(err))
			}
		})
	}
}

func TestVectorIndexBuildRejectsEmptyInput(t *testing.T) {
	index := newTestIndex(t, filepath.Join(t.TempDir(), "idx"), &MockEmbedder{}, 10)
	_, err := index.Build(context.Background(), nil)
	if !errors.Is(err, pipeline_type.ErrEmptyChunks) {
		t.Errorf("Expected ErrEmptyChunks, got %v", err)
	}
}

func TestVectorIndexBuildFailureRemovesPartialStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "idx")

	base := &MockEmbedder{}
	embedder := &MockEmbedder{}
	embedder.EmbedFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if embedder.Calls == 2 {
			return nil, errors.New("rate limited")
		}
		return base.Embed(ctx, texts)
	}

	index := newTestIndex(t, dir, embedder, 2)
	_, err := index.Build(ctx, sampleChunks)
	if err == nil {
		t.Fatal("Expected an error but got nil")
	}
	if !pipeline_type.IsKind(err, pipeline_type.IndexBuildError) {
		t.Errorf("Expected index build kind, got %v", pipeline_type.KindOf(err))
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("Expected the embedder error in %q", err.Error())
	}

	exists, err := index.Exists(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Errorf("Expected the partial store to be removed")
	}
}

func TestVectorIndexBuildChecksDimension(t *testing.T) {
	embedder := &MockEmbedder{Dim: 8}
	embedder.EmbedFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = make([]float32, 4)
		}
		return out, nil
	}

	index := newTestIndex(t, filepath.Join(t.TempDir(), "idx"), embedder, 10)
	_, err := index.Build(context.Background(), sampleChunks)
	if !errors.Is(err, pipeline_type.ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
}

func TestVectorIndexQueryFailure(t *testing.T) {
	ctx := context.Background()
	embedder := &MockEmbedder{}
	index := newTestIndex(t, filepath.Join(t.TempDir(), "idx"), embedder, 10)
	if _, err := index.Build(ctx, sampleChunks); err != nil {
		t.Fatal(err)
	}

	embedder.EmbedFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("embedding service down")
	}
	_, err := index.Query(ctx, "anything", 3)
	if !pipeline_type.IsKind(err, pipeline_type.RetrievalError) {
		t.Errorf("Expected retrieval kind, got %v (%v)", pipeline_type.KindOf(err), err)
	}
}

func TestOptimalLists(t *testing.T) {
	tests := []struct {
		rows int
		want int
	}{
		{0, 1},
		{999, 1},
		{5000, 5},
		{1_000_000, 1000},
		{4_000_000, 2000},
	}
	for _, tt := range tests {
		if got := optimalLists(tt.rows); got != tt.want {
			t.Errorf("optimalLists(%d) = %d, want %d", tt.rows, got, tt.want)
		}
	}
}
