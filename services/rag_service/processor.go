package rag_service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/serisow/policybot/pipeline_type"
)

// CorpusSpec describes how one corpus is ingested.
type CorpusSpec struct {
	Name      string
	SourceDir string
	Splitters SplitterPolicy
	// EmptyMessage is recorded when the folder yields no usable documents.
	EmptyMessage string
	// ErrorPrefix precedes any other build failure.
	ErrorPrefix string
}

// FailureMessage is the text returned for every question once the corpus
// failed to build.
func (s CorpusSpec) FailureMessage(err error) string {
	if errors.Is(err, pipeline_type.ErrNoDocuments) {
		return s.EmptyMessage
	}
	return s.ErrorPrefix + err.Error()
}

// Corpus is the outcome of preparing one index at startup. Exactly one of
// Index and Err is set.
type Corpus struct {
	Spec    CorpusSpec
	Index   *VectorIndex
	Err     error
	Message string
	Stats   pipeline_type.ProcessingStats
}

type Processor struct {
	loader *DocumentLoader
	logger *slog.Logger
}

func NewProcessor(loader *DocumentLoader, logger *slog.Logger) *Processor {
	return &Processor{
		loader: loader,
		logger: logger,
	}
}

// Prepare loads the persisted index when one exists and builds it from the
// source folder otherwise. Failures are captured on the returned Corpus.
func (p *Processor) Prepare(ctx context.Context, spec CorpusSpec, index *VectorIndex) *Corpus {
	corpus := &Corpus{Spec: spec}
	start := time.Now()

	stats, err := p.loadOrBuild(ctx, spec, index)
	stats.TotalTime = time.Since(start).Seconds()
	corpus.Stats = stats

	if err != nil {
		corpus.Err = err
		corpus.Message = spec.FailureMessage(err)
		p.logger.Error("Failed to prepare index",
			slog.String("corpus", spec.Name),
			slog.String("error", err.Error()))
		return corpus
	}

	corpus.Index = index
	p.logger.Info("Index ready",
		slog.String("corpus", spec.Name),
		slog.String("loaded_from", stats.LoadedFrom),
		slog.Int("chunks", stats.Chunks),
		slog.Float64("elapsed_seconds", stats.TotalTime))
	return corpus
}

func (p *Processor) loadOrBuild(ctx context.Context, spec CorpusSpec, index *VectorIndex) (pipeline_type.ProcessingStats, error) {
	var stats pipeline_type.ProcessingStats

	exists, err := index.Exists(ctx)
	if err != nil {
		return stats, pipeline_type.NewRAGError(pipeline_type.IndexBuildError, "check "+spec.Name+" store", err)
	}
	if exists {
		p.logger.Info("Loading existing index", slog.String("corpus", spec.Name))
		if err := index.Load(ctx); err != nil {
			return stats, err
		}
		count, err := index.Count(ctx)
		if err != nil {
			return stats, pipeline_type.NewRAGError(pipeline_type.IndexBuildError, "count "+spec.Name+" entries", err)
		}
		stats.Chunks = count
		stats.LoadedFrom = "store"
		return stats, nil
	}

	p.logger.Info("No existing index found, creating a new one",
		slog.String("corpus", spec.Name),
		slog.String("folder", spec.SourceDir))

	loadStart := time.Now()
	files, err := p.loader.LoadFolder(ctx, spec.SourceDir)
	if err != nil {
		return stats, err
	}
	stats.LoadTime = time.Since(loadStart).Seconds()
	stats.Files = len(files)

	splitStart := time.Now()
	var chunks []pipeline_type.Chunk
	for _, file := range files {
		stats.Pages += len(file.Units)
		splitter := spec.Splitters.Select(file)
		fileChunks := splitter.SplitUnits(file.Units)
		p.logger.Info("Split document",
			slog.String("corpus", spec.Name),
			slog.String("file", file.Name),
			slog.Float64("size_mb", float64(file.Size)/1_000_000),
			slog.String("splitter", splitter.Name),
			slog.Int("chunks", len(fileChunks)))
		chunks = append(chunks, fileChunks...)
	}
	stats.SplitTime = time.Since(splitStart).Seconds()
	stats.Chunks = len(chunks)

	if len(chunks) == 0 {
		return stats, pipeline_type.NewRAGError(pipeline_type.IndexBuildError, "load "+spec.Name+" documents", pipeline_type.ErrNoDocuments)
	}

	embedStart := time.Now()
	batches, err := index.Build(ctx, chunks)
	if err != nil {
		return stats, err
	}
	stats.EmbedTime = time.Since(embedStart).Seconds()
	stats.Batches = batches
	stats.LoadedFrom = "source"

	return stats, nil
}
