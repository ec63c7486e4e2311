package rag_service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/serisow/policybot/pipeline_type"
)

const sqliteFileName = "index.db"

// SQLiteStore keeps one corpus in a directory holding a single SQLite file.
// Entries are mirrored in memory after Open/Append and searched by brute-force
// cosine similarity.
type SQLiteStore struct {
	dir string

	mu      sync.RWMutex
	db      *sql.DB
	entries []pipeline_type.IndexEntry
}

func NewSQLiteStore(dir string) *SQLiteStore {
	return &SQLiteStore{dir: dir}
}

func (s *SQLiteStore) Exists(ctx context.Context) (bool, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return len(entries) > 0, nil
}

func (s *SQLiteStore) open() error {
	if s.db != nil {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(s.dir, sqliteFileName)+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("opening index database: %w", err)
	}
	s.db = db
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, meta pipeline_type.IndexMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.open(); err != nil {
		return err
	}

	statements := []string{
		`DROP TABLE IF EXISTS index_metadata`,
		`DROP TABLE IF EXISTS entries`,
		`CREATE TABLE index_metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE entries (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			source TEXT NOT NULL,
			page INTEGER NOT NULL,
			position INTEGER NOT NULL,
			chunk_size INTEGER NOT NULL,
			chunk_overlap INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding BLOB NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating index schema: %w", err)
		}
	}

	values := map[string]string{
		"name":            meta.Name,
		"embedding_model": meta.EmbeddingModel,
		"dimension":       strconv.Itoa(meta.Dimension),
	}
	for k, v := range values {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO index_metadata (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("writing index metadata: %w", err)
		}
	}

	s.entries = nil
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, entries []pipeline_type.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("index store %s is not created", s.dir)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (id, source, page, position, chunk_size, chunk_overlap, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content, embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		c := e.Chunk
		if _, err := stmt.ExecContext(ctx, e.ID, c.Source, c.Page, c.Position, c.ChunkSize, c.ChunkOverlap,
			c.Content, float32SliceToBytes(e.Embedding)); err != nil {
			return fmt.Errorf("inserting entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing entries: %w", err)
	}

	s.entries = append(s.entries, entries...)
	return nil
}

func (s *SQLiteStore) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("index store %s is not created", s.dir)
	}
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("checkpointing index: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Open(ctx context.Context) (pipeline_type.IndexMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var meta pipeline_type.IndexMetadata
	if _, err := os.Stat(filepath.Join(s.dir, sqliteFileName)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return meta, fmt.Errorf("%w: %s", pipeline_type.ErrIndexNotFound, s.dir)
		}
		return meta, err
	}
	if err := s.open(); err != nil {
		return meta, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM index_metadata`)
	if err != nil {
		return meta, fmt.Errorf("reading index metadata: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return meta, fmt.Errorf("scanning index metadata: %w", err)
		}
		switch k {
		case "name":
			meta.Name = v
		case "embedding_model":
			meta.EmbeddingModel = v
		case "dimension":
			meta.Dimension, _ = strconv.Atoi(v)
		}
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT id, source, page, position, chunk_size, chunk_overlap, content, embedding
		FROM entries ORDER BY seq
	`)
	if err != nil {
		return meta, fmt.Errorf("reading index entries: %w", err)
	}
	defer rows.Close()

	var entries []pipeline_type.IndexEntry
	for rows.Next() {
		var e pipeline_type.IndexEntry
		var blob []byte
		if err := rows.Scan(&e.ID, &e.Chunk.Source, &e.Chunk.Page, &e.Chunk.Position,
			&e.Chunk.ChunkSize, &e.Chunk.ChunkOverlap, &e.Chunk.Content, &blob); err != nil {
			return meta, fmt.Errorf("scanning index entry: %w", err)
		}
		e.Embedding = bytesToFloat32Slice(blob)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return meta, err
	}

	s.entries = entries
	return meta, nil
}

func (s *SQLiteStore) Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return topK(s.entries, vector, k), nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *SQLiteStore) Reset(ctx context.Context) error {
	if err := s.Close(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("removing index directory: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
