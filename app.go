package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/serisow/policybot/config"
	"github.com/serisow/policybot/db"
	"github.com/serisow/policybot/logging"
	"github.com/serisow/policybot/pipeline_type"
	"github.com/serisow/policybot/services/rag_service"
)

// application owns the long-lived resources shared by every command.
type application struct {
	cfg        config.Config
	logger     *slog.Logger
	logHandler *logging.DailyFileHandler
	pool       *pgxpool.Pool

	policyIndex *rag_service.VectorIndex
	dataIndex   *rag_service.VectorIndex
}

func newApplication(ctx context.Context, cfg config.Config) (*application, error) {
	logger, handler, err := logging.New(cfg.LogDir, "policybot", cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	app := &application{
		cfg:        cfg,
		logger:     logger,
		logHandler: handler,
	}

	if cfg.VectorBackend == config.BackendPGVector {
		pool, err := db.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.pool = pool
	}

	embedder := rag_service.NewHTTPEmbedder(cfg.EmbeddingAPIURL, cfg.EmbeddingAPIKey,
		cfg.EmbeddingModel, cfg.EmbeddingDimension, cfg.EmbeddingTimeout)

	policyStore, err := app.newStore(cfg.Policy)
	if err != nil {
		app.Close()
		return nil, err
	}
	dataStore, err := app.newStore(cfg.Data)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.policyIndex = rag_service.NewVectorIndex(pipeline_type.CorpusPolicy, policyStore, embedder, cfg.Policy.BatchSize, logger)
	app.dataIndex = rag_service.NewVectorIndex(pipeline_type.CorpusData, dataStore, embedder, cfg.Data.BatchSize, logger)

	return app, nil
}

// newStore opens the configured backend. For pgvector the table is named
// after the last element of the store path.
func (a *application) newStore(corpus config.CorpusConfig) (rag_service.VectorStore, error) {
	switch a.cfg.VectorBackend {
	case config.BackendPGVector:
		return rag_service.NewPGVectorStore(a.pool, filepath.Base(corpus.StorePath), a.logger)
	default:
		return rag_service.NewSQLiteStore(corpus.StorePath), nil
	}
}

func (a *application) policySpec() rag_service.CorpusSpec {
	return rag_service.CorpusSpec{
		Name:         pipeline_type.CorpusPolicy,
		SourceDir:    a.cfg.Policy.SourceDir,
		EmptyMessage: "No valid policy documents found in the folder",
		ErrorPrefix:  "Error processing policy documents: ",
	}
}

func (a *application) dataSpec() rag_service.CorpusSpec {
	return rag_service.CorpusSpec{
		Name:      pipeline_type.CorpusData,
		SourceDir: a.cfg.Data.SourceDir,
		Splitters: rag_service.SplitterPolicy{
			Adaptive:           true,
			LargeFileThreshold: a.cfg.LargeFileThreshold,
			LargeFiles:         a.cfg.Data.LargeFiles,
		},
		EmptyMessage: "No valid data documents found in the folder",
		ErrorPrefix:  "Error processing data documents: ",
	}
}

// prepareCorpora loads or builds both indexes, policy first.
func (a *application) prepareCorpora(ctx context.Context) (policy, data *rag_service.Corpus) {
	processor := rag_service.NewProcessor(rag_service.NewDocumentLoader(a.logger), a.logger)

	a.logger.Info("Initializing policy vector store")
	policy = processor.Prepare(ctx, a.policySpec(), a.policyIndex)

	a.logger.Info("Initializing data vector store")
	data = processor.Prepare(ctx, a.dataSpec(), a.dataIndex)

	return policy, data
}

func (a *application) Close() {
	if a.policyIndex != nil {
		a.policyIndex.Close()
	}
	if a.dataIndex != nil {
		a.dataIndex.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.logHandler != nil {
		a.logHandler.Close()
	}
}
