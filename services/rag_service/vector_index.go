package rag_service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/serisow/policybot/pipeline_type"
)

// VectorIndex binds a store to the embedder that fills and queries it.
type VectorIndex struct {
	name      string
	store     VectorStore
	embedder  Embedder
	batchSize int
	logger    *slog.Logger
}

func NewVectorIndex(name string, store VectorStore, embedder Embedder, batchSize int, logger *slog.Logger) *VectorIndex {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &VectorIndex{
		name:      name,
		store:     store,
		embedder:  embedder,
		batchSize: batchSize,
		logger:    logger.With(slog.String("corpus", name)),
	}
}

func (v *VectorIndex) Name() string { return v.name }

func (v *VectorIndex) metadata() pipeline_type.IndexMetadata {
	return pipeline_type.IndexMetadata{
		Name:           v.name,
		EmbeddingModel: v.embedder.Model(),
		Dimension:      v.embedder.Dimension(),
	}
}

// Exists reports whether a persisted store is available to Load.
func (v *VectorIndex) Exists(ctx context.Context) (bool, error) {
	return v.store.Exists(ctx)
}

// Build embeds chunks batch by batch. The store is created with the first
// embedded batch and flushed once every batch is written. If any batch fails
// the partial store is removed so a later start does not reuse it.
func (v *VectorIndex) Build(ctx context.Context, chunks []pipeline_type.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, pipeline_type.NewRAGError(pipeline_type.IndexBuildError, "build "+v.name+" index", pipeline_type.ErrEmptyChunks)
	}

	totalBatches := (len(chunks) + v.batchSize - 1) / v.batchSize
	created := false

	fail := func(op string, err error) (int, error) {
		if created {
			if resetErr := v.store.Reset(ctx); resetErr != nil {
				v.logger.Error("Failed to remove partial index",
					slog.String("error", resetErr.Error()))
			}
		}
		return 0, pipeline_type.NewRAGError(pipeline_type.IndexBuildError, op, err)
	}

	for batchNum := 0; batchNum < totalBatches; batchNum++ {
		start := batchNum * v.batchSize
		end := start + v.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		batchStart := time.Now()
		vectors, err := v.embedder.Embed(ctx, texts)
		if err != nil {
			return fail(fmt.Sprintf("embed batch %d/%d", batchNum+1, totalBatches), err)
		}
		if len(vectors) != len(batch) {
			return fail("embed batch", fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(batch)))
		}

		entries := make([]pipeline_type.IndexEntry, len(batch))
		for i, c := range batch {
			if len(vectors[i]) != v.embedder.Dimension() {
				return fail("embed batch", fmt.Errorf("%w: expected %d, got %d",
					pipeline_type.ErrDimensionMismatch, v.embedder.Dimension(), len(vectors[i])))
			}
			entries[i] = pipeline_type.NewIndexEntry(c, vectors[i])
		}

		if !created {
			if err := v.store.Create(ctx, v.metadata()); err != nil {
				return fail("create "+v.name+" store", err)
			}
			created = true
		}
		if err := v.store.Append(ctx, entries); err != nil {
			return fail(fmt.Sprintf("write batch %d/%d", batchNum+1, totalBatches), err)
		}

		v.logger.Info("Processed batch",
			slog.Int("batch", batchNum+1),
			slog.Int("total_batches", totalBatches),
			slog.Int("entries", len(entries)),
			slog.Float64("elapsed_seconds", time.Since(batchStart).Seconds()))
	}

	if err := v.store.Persist(ctx); err != nil {
		return fail("persist "+v.name+" index", err)
	}

	return totalBatches, nil
}

// Load reopens a persisted store. A store built with another embedding model
// or dimension is rejected.
func (v *VectorIndex) Load(ctx context.Context) error {
	meta, err := v.store.Open(ctx)
	if err != nil {
		return pipeline_type.NewRAGError(pipeline_type.IndexBuildError, "load "+v.name+" index", err)
	}

	want := v.metadata()
	if meta.EmbeddingModel != want.EmbeddingModel {
		return pipeline_type.NewRAGError(pipeline_type.IndexBuildError, "load "+v.name+" index",
			fmt.Errorf("%w: index built with %q, configured %q",
				pipeline_type.ErrEmbeddingModelMismatch, meta.EmbeddingModel, want.EmbeddingModel))
	}
	if meta.Dimension != want.Dimension {
		return pipeline_type.NewRAGError(pipeline_type.IndexBuildError, "load "+v.name+" index",
			fmt.Errorf("%w: index has %d, configured %d",
				pipeline_type.ErrDimensionMismatch, meta.Dimension, want.Dimension))
	}
	return nil
}

// Query returns the k chunks closest to text, most similar first.
func (v *VectorIndex) Query(ctx context.Context, text string, k int) ([]pipeline_type.Chunk, error) {
	vectors, err := v.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, pipeline_type.NewRAGError(pipeline_type.RetrievalError, "embed query", err)
	}
	if len(vectors) != 1 {
		return nil, pipeline_type.NewRAGError(pipeline_type.RetrievalError, "embed query",
			fmt.Errorf("got %d vectors for 1 query", len(vectors)))
	}

	scored, err := v.store.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, pipeline_type.NewRAGError(pipeline_type.RetrievalError, "search "+v.name+" index", err)
	}

	chunks := make([]pipeline_type.Chunk, len(scored))
	for i, s := range scored {
		chunks[i] = s.Chunk
	}
	return chunks, nil
}

func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	return v.store.Count(ctx)
}

func (v *VectorIndex) Reset(ctx context.Context) error {
	return v.store.Reset(ctx)
}

func (v *VectorIndex) Close() error {
	return v.store.Close()
}
