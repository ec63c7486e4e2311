package rag_service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/serisow/policybot/pipeline_type"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PGVectorStore keeps one corpus in its own Postgres table with a pgvector
// column. Index metadata for every corpus lives in index_metadata.
type PGVectorStore struct {
	db      *pgxpool.Pool
	table   string
	manager *IndexManager
	logger  *slog.Logger
}

func NewPGVectorStore(db *pgxpool.Pool, table string, logger *slog.Logger) (*PGVectorStore, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PGVectorStore{
		db:      db,
		table:   table,
		manager: NewIndexManager(db, logger),
		logger:  logger,
	}, nil
}

func (s *PGVectorStore) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

func (s *PGVectorStore) Exists(ctx context.Context) (bool, error) {
	var regclass *string
	if err := s.db.QueryRow(ctx, "SELECT to_regclass($1)::text", s.table).Scan(&regclass); err != nil {
		return false, fmt.Errorf("checking table %s: %w", s.table, err)
	}
	if regclass == nil {
		return false, nil
	}
	count, err := s.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *PGVectorStore) Create(ctx context.Context, meta pipeline_type.IndexMetadata) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS index_metadata (
			name TEXT PRIMARY KEY,
			embedding_model TEXT NOT NULL,
			dimension INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		"DROP TABLE IF EXISTS " + s.ident(),
		fmt.Sprintf(`CREATE TABLE %s (
			seq BIGSERIAL PRIMARY KEY,
			id UUID NOT NULL UNIQUE,
			source TEXT NOT NULL,
			page INT NOT NULL,
			position INT NOT NULL,
			chunk_size INT NOT NULL,
			chunk_overlap INT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, s.ident(), meta.Dimension),
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("creating table %s: %w", s.table, err)
		}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO index_metadata (name, embedding_model, dimension) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET embedding_model = EXCLUDED.embedding_model,
			dimension = EXCLUDED.dimension, created_at = now()
	`, s.table, meta.EmbeddingModel, meta.Dimension)
	if err != nil {
		return fmt.Errorf("writing index metadata: %w", err)
	}
	return nil
}

func (s *PGVectorStore) Append(ctx context.Context, entries []pipeline_type.IndexEntry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, source, page, position, chunk_size, chunk_overlap, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ident())

	batch := &pgx.Batch{}
	for _, e := range entries {
		c := e.Chunk
		batch.Queue(query, e.ID, c.Source, c.Page, c.Position, c.ChunkSize, c.ChunkOverlap, c.Content,
			pgvector.NewVector(e.Embedding))
	}

	br := s.db.SendBatch(ctx, batch)
	for range entries {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("inserting entries into %s: %w", s.table, err)
		}
	}
	return br.Close()
}

// Persist builds the ivfflat index once all entries are in place.
func (s *PGVectorStore) Persist(ctx context.Context) error {
	return s.manager.CreateOrUpdateIndex(ctx, s.table)
}

func (s *PGVectorStore) Open(ctx context.Context) (pipeline_type.IndexMetadata, error) {
	meta := pipeline_type.IndexMetadata{Name: s.table}
	err := s.db.QueryRow(ctx,
		`SELECT embedding_model, dimension FROM index_metadata WHERE name = $1`, s.table,
	).Scan(&meta.EmbeddingModel, &meta.Dimension)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return meta, fmt.Errorf("%w: %s", pipeline_type.ErrIndexNotFound, s.table)
		}
		return meta, fmt.Errorf("reading index metadata: %w", err)
	}
	return meta, nil
}

func (s *PGVectorStore) Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error) {
	query := fmt.Sprintf(`
		SELECT source, page, position, chunk_size, chunk_overlap, content,
			1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1, seq
		LIMIT $2
	`, s.ident())

	rows, err := s.db.Query(ctx, query, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search query: %w", err)
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		var r ScoredChunk
		if err := rows.Scan(&r.Chunk.Source, &r.Chunk.Page, &r.Chunk.Position, &r.Chunk.ChunkSize,
			&r.Chunk.ChunkOverlap, &r.Chunk.Content, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PGVectorStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+s.ident()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

func (s *PGVectorStore) Reset(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "DROP TABLE IF EXISTS "+s.ident()); err != nil {
		return fmt.Errorf("dropping table %s: %w", s.table, err)
	}
	// index_metadata may not exist yet if no corpus was ever built.
	if _, err := s.db.Exec(ctx, `DELETE FROM index_metadata WHERE name = $1`, s.table); err != nil {
		s.logger.Warn("Failed to clear index metadata",
			slog.String("table", s.table),
			slog.String("error", err.Error()))
	}
	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *PGVectorStore) Close() error {
	return nil
}
