package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/ragkit/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps WAL checkpoints and transactions simple for both drivers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS index_entries (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		source TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		span_start INTEGER NOT NULL DEFAULT 0,
		span_end INTEGER NOT NULL DEFAULT 0,
		content TEXT NOT NULL,
		metadata TEXT,
		vector BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_seq ON index_entries(seq);
	CREATE INDEX IF NOT EXISTS idx_entries_source ON index_entries(source);

	CREATE TABLE IF NOT EXISTS index_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// SaveEntries inserts entries in a single transaction. Existing ids are replaced.
func (s *SQLiteStorage) SaveEntries(ctx context.Context, entries []*models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO index_entries
		 (id, seq, source, chunk_index, span_start, span_end, content, metadata, vector)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		metadataJSON, err := json.Marshal(e.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, int64(e.Seq), e.Chunk.Source(), e.Chunk.ChunkIndex,
			e.Chunk.Start, e.Chunk.End, e.Chunk.Content, string(metadataJSON),
			encodeVector(e.Vector),
		); err != nil {
			return fmt.Errorf("failed to save entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteEntries removes the given ids and returns how many rows were deleted.
func (s *SQLiteStorage) DeleteEntries(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM index_entries WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// ListEntries returns all entries ordered by seq.
func (s *SQLiteStorage) ListEntries(ctx context.Context) ([]*models.IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seq, chunk_index, span_start, span_end, content, metadata, vector
		 FROM index_entries ORDER BY seq`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.IndexEntry
	for rows.Next() {
		var (
			e            models.IndexEntry
			seq          int64
			metadataJSON sql.NullString
			blob         []byte
		)
		if err := rows.Scan(&e.ID, &seq, &e.Chunk.ChunkIndex, &e.Chunk.Start, &e.Chunk.End,
			&e.Chunk.Content, &metadataJSON, &blob); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		e.Chunk.Metadata = map[string]string{}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &e.Chunk.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", e.ID, err)
			}
		}
		e.Vector, err = decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// GetMeta returns the value stored under key. ok is false when the key is absent.
func (s *SQLiteStorage) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetMeta upserts a metadata value.
func (s *SQLiteStorage) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO index_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// CountEntries returns the total number of entries.
func (s *SQLiteStorage) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM index_entries`).Scan(&count)
	return count, err
}

// CountSources returns the number of distinct sources with at least one entry.
func (s *SQLiteStorage) CountSources(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT source) FROM index_entries`).Scan(&count)
	return count, err
}

// Clear removes every entry and all metadata.
func (s *SQLiteStorage) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_entries`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_meta`); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// encodeVector packs v as little-endian float32 values.
func encodeVector(v []float32) []byte {
	blob := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(x))
	}
	return blob
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector blob of %d bytes", len(blob))
	}
	v := make([]float32, len(blob)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}
