package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fama-labs/searchcore/internal/errors"
)

// SQLiteStore persists chunks in a single SQLite database file.
// WAL mode allows readers to proceed while the single writer commits;
// SetMaxOpenConns(1) serializes writers inside this process since
// SQLite allows only one writer at a time anyway.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const chunkSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id              TEXT PRIMARY KEY,
	document_id     TEXT NOT NULL,
	sequence_index  INTEGER NOT NULL,
	raw_text        TEXT NOT NULL,
	normalized_text TEXT NOT NULL,
	metadata        TEXT NOT NULL DEFAULT '{}',
	embedding_ref   TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, sequence_index);
`

// OpenSQLite opens (creating if needed) the chunk database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(errors.ErrCodeStoreFailed,
				fmt.Sprintf("failed to create store directory %s", dir), err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreFailed, "failed to open chunk database", err)
	}

	// SQLite supports one writer; more connections only add lock churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores some DSN params, so set pragmas explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.New(errors.ErrCodeStoreFailed,
				fmt.Sprintf("failed to set pragma %q", pragma), err)
		}
	}

	if _, err := db.Exec(chunkSchema); err != nil {
		db.Close()
		return nil, errors.New(errors.ErrCodeStoreFailed, "failed to create chunk schema", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Put inserts or replaces a chunk. Raw and normalized text land in the
// same row write, so partial visibility is impossible.
func (s *SQLiteStore) Put(ctx context.Context, chunk *Chunk) error {
	if chunk == nil || chunk.ID == "" {
		return errors.New(errors.ErrCodeStoreFailed, "chunk must have a non-empty ID", nil)
	}

	meta, err := json.Marshal(nonNilMetadata(chunk.Metadata))
	if err != nil {
		return errors.New(errors.ErrCodeStoreFailed,
			fmt.Sprintf("failed to encode metadata for chunk %s", chunk.ID), err)
	}

	now := time.Now().UTC()
	created := chunk.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chunks (id, document_id, sequence_index, raw_text, normalized_text,
			metadata, embedding_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			sequence_index = excluded.sequence_index,
			raw_text = excluded.raw_text,
			normalized_text = excluded.normalized_text,
			metadata = excluded.metadata,
			embedding_ref = excluded.embedding_ref,
			updated_at = excluded.updated_at`,
		chunk.ID, chunk.DocumentID, chunk.SequenceIndex, chunk.RawText,
		chunk.NormalizedText, string(meta), chunk.EmbeddingRef,
		created.UnixMilli(), now.UnixMilli())
	if err != nil {
		return errors.New(errors.ErrCodeStoreFailed,
			fmt.Sprintf("failed to write chunk %s", chunk.ID), err)
	}
	return nil
}

// Get returns the chunk with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Chunk, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, sequence_index, raw_text, normalized_text,
			metadata, embedding_ref, created_at, updated_at
		FROM chunks WHERE id = ?`, id)

	chunk, err := scanChunk(row.Scan)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.ErrCodeChunkNotFound,
			fmt.Sprintf("chunk %s not found", id), nil).WithDetail("chunk_id", id)
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreFailed,
			fmt.Sprintf("failed to read chunk %s", id), err)
	}
	return chunk, nil
}

// Delete removes a chunk by ID. Missing chunks are ignored.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE id = ?`, id); err != nil {
		return errors.New(errors.ErrCodeStoreFailed,
			fmt.Sprintf("failed to delete chunk %s", id), err)
	}
	return nil
}

// List iterates all chunks in ID order.
func (s *SQLiteStore) List(ctx context.Context, fn func(*Chunk) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, sequence_index, raw_text, normalized_text,
			metadata, embedding_ref, created_at, updated_at
		FROM chunks ORDER BY id`)
	if err != nil {
		return errors.New(errors.ErrCodeStoreFailed, "failed to list chunks", err)
	}
	defer rows.Close()

	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return errors.New(errors.ErrCodeStoreFailed, "failed to scan chunk row", err)
		}
		if err := fn(chunk); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.New(errors.ErrCodeStoreFailed, "chunk iteration failed", err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, errors.New(errors.ErrCodeStoreFailed, "failed to count chunks", err)
	}
	return n, nil
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

func scanChunk(scan func(dest ...any) error) (*Chunk, error) {
	var (
		chunk     Chunk
		meta      string
		createdMs int64
		updatedMs int64
	)
	err := scan(&chunk.ID, &chunk.DocumentID, &chunk.SequenceIndex,
		&chunk.RawText, &chunk.NormalizedText, &meta, &chunk.EmbeddingRef,
		&createdMs, &updatedMs)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(meta), &chunk.Metadata); err != nil {
		return nil, fmt.Errorf("corrupt metadata for chunk %s: %w", chunk.ID, err)
	}
	chunk.CreatedAt = time.UnixMilli(createdMs).UTC()
	chunk.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return &chunk, nil
}

func nonNilMetadata(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
