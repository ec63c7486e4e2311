package rag_service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IndexManager handles ivfflat index maintenance for pgvector tables
type IndexManager struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewIndexManager(db *pgxpool.Pool, logger *slog.Logger) *IndexManager {
	return &IndexManager{
		db:     db,
		logger: logger,
	}
}

// optimalLists follows the pgvector guidance of rows/1000 lists for small
// tables and sqrt(rows) beyond a million rows.
func optimalLists(count int) int {
	lists := count / 1000
	if count > 1_000_000 {
		lists = int(math.Sqrt(float64(count)))
	}
	if lists < 1 {
		lists = 1
	}
	return lists
}

// CreateOrUpdateIndex (re)creates the cosine ivfflat index of table.
func (im *IndexManager) CreateOrUpdateIndex(ctx context.Context, table string) error {
	ident := pgx.Identifier{table}.Sanitize()
	indexIdent := pgx.Identifier{"idx_" + table + "_embedding"}.Sanitize()

	var count int
	err := im.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+ident).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}

	lists := optimalLists(count)

	_, err = im.db.Exec(ctx, "DROP INDEX IF EXISTS "+indexIdent)
	if err != nil {
		return fmt.Errorf("failed to drop existing index: %w", err)
	}

	createIndexSQL := fmt.Sprintf(`
		CREATE INDEX %s
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = %d)
	`, indexIdent, ident, lists)

	_, err = im.db.Exec(ctx, createIndexSQL)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if _, err := im.db.Exec(ctx, "ANALYZE "+ident); err != nil {
		return fmt.Errorf("failed to analyze %s: %w", table, err)
	}

	im.logger.Info("Vector index created/updated successfully",
		slog.String("table", table),
		slog.Int("entry_count", count),
		slog.Int("list_count", lists))

	return nil
}
