// Package sqlite provides a vector index stored in a SQLite database file.
// Search is an exact brute-force scan.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/JS12540/evaluating-embedding-models/internal/vectorindex"
)

// Index implements vectorindex.Index on SQLite.
type Index struct {
	db         *sql.DB
	mu         sync.RWMutex
	configured int
	dimension  int
}

var (
	_ vectorindex.Index    = (*Index)(nil)
	_ vectorindex.Replacer = (*Index)(nil)
)

var resetStatements = []string{
	"DELETE FROM vectors",
	"DELETE FROM meta",
	"DELETE FROM sqlite_sequence WHERE name = 'vectors'",
}

// Config contains configuration for the SQLite index.
type Config struct {
	Path      string // Path to the database file
	Dimension int    // Expected dimension; 0 adopts the stored or first-added size
}

// New opens or creates the index at cfg.Path.
func New(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite index path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	idx := &Index{db: db, configured: cfg.Dimension, dimension: cfg.Dimension}
	if err := idx.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (x *Index) init(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS vectors (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			chunk_id TEXT NOT NULL UNIQUE,
			dim INTEGER NOT NULL,
			embedding BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := x.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	var stored sql.NullInt64
	if err := x.db.QueryRowContext(ctx, "SELECT MAX(dim) FROM vectors").Scan(&stored); err != nil {
		return fmt.Errorf("failed to read stored dimension: %w", err)
	}
	if stored.Valid {
		if x.dimension != 0 && int(stored.Int64) != x.dimension {
			return fmt.Errorf("%w: stored vectors have %d dimensions, configured %d", vectorindex.ErrDimensionMismatch, stored.Int64, x.dimension)
		}
		x.dimension = int(stored.Int64)
	}
	return nil
}

// Add inserts entries in a single transaction.
func (x *Index) Add(ctx context.Context, entries []vectorindex.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	dim, err := vectorindex.CheckEntries(x.dimension, entries)
	if err != nil {
		return err
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertEntries(ctx, tx, entries); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	x.dimension = dim
	return nil
}

// Replace swaps the stored vectors and metadata for entries and meta in one
// transaction. On failure the previous contents are kept.
func (x *Index) Replace(ctx context.Context, entries []vectorindex.Entry, meta vectorindex.Meta) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	dim, err := vectorindex.CheckEntries(x.configured, entries)
	if err != nil {
		return err
	}
	if meta.Dimension == 0 {
		meta.Dimension = dim
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range resetStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to reset index: %w", err)
		}
	}
	if err := insertEntries(ctx, tx, entries); err != nil {
		return err
	}
	if err := writeMeta(ctx, tx, meta); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	x.dimension = dim
	return nil
}

func insertEntries(ctx context.Context, tx *sql.Tx, entries []vectorindex.Entry) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO vectors (chunk_id, dim, embedding) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ChunkID, len(e.Vector), vectorindex.EncodeVector(e.Vector)); err != nil {
			return fmt.Errorf("failed to insert %s: %w", e.ChunkID, err)
		}
	}
	return nil
}

// Search scans every stored vector and returns the k nearest.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]vectorindex.Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := vectorindex.CheckQuery(x.dimension, query); err != nil {
		return nil, err
	}

	rows, err := x.db.QueryContext(ctx, "SELECT chunk_id, embedding FROM vectors ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var ids []string
	var vectors [][]float32
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		vector, err := vectorindex.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", id, err)
		}
		ids = append(ids, id)
		vectors = append(vectors, vector)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return vectorindex.TopK(query, ids, vectors, k), nil
}

// Count returns the number of stored vectors.
func (x *Index) Count(ctx context.Context) (int, error) {
	var count int
	if err := x.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return count, nil
}

// Dimension returns the vector size.
func (x *Index) Dimension() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dimension
}

// ChunkIDs returns stored ids in insertion order.
func (x *Index) ChunkIDs(ctx context.Context) ([]string, error) {
	rows, err := x.db.QueryContext(ctx, "SELECT chunk_id FROM vectors ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetMeta records build metadata.
func (x *Index) SetMeta(ctx context.Context, meta vectorindex.Meta) error {
	return writeMeta(ctx, x.db, meta)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeMeta(ctx context.Context, db execer, meta vectorindex.Meta) error {
	values := map[string]string{
		"backend":   meta.Backend,
		"model":     meta.Model,
		"dimension": strconv.Itoa(meta.Dimension),
	}
	for key, value := range values {
		if _, err := db.ExecContext(ctx,
			"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			key, value,
		); err != nil {
			return fmt.Errorf("failed to write meta %s: %w", key, err)
		}
	}
	return nil
}

// Meta returns build metadata.
func (x *Index) Meta(ctx context.Context) (vectorindex.Meta, error) {
	rows, err := x.db.QueryContext(ctx, "SELECT key, value FROM meta")
	if err != nil {
		return vectorindex.Meta{}, fmt.Errorf("failed to query meta: %w", err)
	}
	defer rows.Close()

	var meta vectorindex.Meta
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return vectorindex.Meta{}, fmt.Errorf("failed to scan meta: %w", err)
		}
		switch key {
		case "backend":
			meta.Backend = value
		case "model":
			meta.Model = value
		case "dimension":
			meta.Dimension, _ = strconv.Atoi(value)
		}
	}
	return meta, rows.Err()
}

// Reset deletes every vector and the metadata.
func (x *Index) Reset(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, stmt := range resetStatements {
		if _, err := x.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to reset index: %w", err)
		}
	}
	x.dimension = x.configured
	return nil
}

// Close releases resources.
func (x *Index) Close() error {
	return x.db.Close()
}
