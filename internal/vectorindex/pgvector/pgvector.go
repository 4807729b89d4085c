// Package pgvector provides a vector index stored in PostgreSQL with the
// pgvector extension. Distances come from the <-> (L2) operator and are
// squared on return.
package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	pq "github.com/lib/pq" // PostgreSQL driver

	"github.com/JS12540/evaluating-embedding-models/internal/vectorindex"
)

var unsafeIdent = regexp.MustCompile(`[^a-z0-9_]+`)

// Index implements vectorindex.Index using pgvector.
type Index struct {
	db         *sql.DB
	ownsDB     bool
	backend    string
	table      string
	mu         sync.RWMutex
	configured int
	dimension  int
}

var (
	_ vectorindex.Index    = (*Index)(nil)
	_ vectorindex.Replacer = (*Index)(nil)
)

// Config contains configuration for the pgvector index.
type Config struct {
	// DSN is the PostgreSQL connection string.
	// If empty, DB must be provided.
	DSN string

	// DB is an existing database connection to reuse.
	// If provided, DSN is ignored and the index will not close the connection.
	DB *sql.DB

	// Backend names the table: embedeval_vectors_{backend}.
	Backend string

	// Dimension is the expected embedding dimension; 0 adopts the stored size.
	Dimension int

	// SkipMigrations skips schema creation.
	SkipMigrations bool
}

// TableName returns the table holding vectors for backend.
func TableName(backend string) string {
	name := unsafeIdent.ReplaceAllString(strings.ToLower(backend), "_")
	return "embedeval_vectors_" + strings.Trim(name, "_")
}

// New connects to PostgreSQL and prepares the backend's table.
func New(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.Backend == "" {
		return nil, errors.New("pgvector index requires a backend name")
	}

	var db *sql.DB
	var ownsDB bool
	switch {
	case cfg.DB != nil:
		db = cfg.DB
	case cfg.DSN != "":
		var err error
		db, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		ownsDB = true

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	default:
		return nil, fmt.Errorf("either DSN or DB must be provided")
	}

	x := &Index{
		db:         db,
		ownsDB:     ownsDB,
		backend:    cfg.Backend,
		table:      pq.QuoteIdentifier(TableName(cfg.Backend)),
		configured: cfg.Dimension,
		dimension:  cfg.Dimension,
	}
	if !cfg.SkipMigrations {
		if err := x.migrate(ctx); err != nil {
			x.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	if err := x.loadDimension(ctx); err != nil {
		x.Close()
		return nil, err
	}
	return x, nil
}

func (x *Index) migrate(ctx context.Context) error {
	statements := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL PRIMARY KEY,
			chunk_id TEXT NOT NULL UNIQUE,
			dim INTEGER NOT NULL,
			embedding vector NOT NULL
		)`, x.table),
		`CREATE TABLE IF NOT EXISTS embedeval_index_meta (
			backend TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			dimension INTEGER NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := x.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (x *Index) loadDimension(ctx context.Context) error {
	var stored sql.NullInt64
	if err := x.db.QueryRowContext(ctx, fmt.Sprintf("SELECT MAX(dim) FROM %s", x.table)).Scan(&stored); err != nil {
		return fmt.Errorf("failed to read stored dimension: %w", err)
	}
	if !stored.Valid {
		return nil
	}
	if x.dimension != 0 && int(stored.Int64) != x.dimension {
		return fmt.Errorf("%w: stored vectors have %d dimensions, configured %d", vectorindex.ErrDimensionMismatch, stored.Int64, x.dimension)
	}
	x.dimension = int(stored.Int64)
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

	if err := x.insertEntries(ctx, tx, entries); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	x.dimension = dim
	return nil
}

// Replace truncates the backend's table, inserts entries and records meta in
// one transaction. On failure the previous contents are kept.
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

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s RESTART IDENTITY", x.table)); err != nil {
		return fmt.Errorf("failed to truncate: %w", err)
	}
	if len(entries) > 0 {
		if err := x.insertEntries(ctx, tx, entries); err != nil {
			return err
		}
	}
	if err := x.writeMeta(ctx, tx, meta); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	x.dimension = dim
	return nil
}

func (x *Index) insertEntries(ctx context.Context, tx *sql.Tx, entries []vectorindex.Entry) error {
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (chunk_id, dim, embedding) VALUES ($1, $2, $3::vector)", x.table))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ChunkID, len(e.Vector), encodeVector(e.Vector)); err != nil {
			return fmt.Errorf("failed to insert %s: %w", e.ChunkID, err)
		}
	}
	return nil
}

// Search returns the k nearest vectors. Ties keep insertion order.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]vectorindex.Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := vectorindex.CheckQuery(x.dimension, query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	rows, err := x.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT chunk_id, embedding <-> $1::vector AS distance FROM %s ORDER BY distance ASC, seq ASC LIMIT $2",
		x.table,
	), encodeVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer rows.Close()

	var hits []vectorindex.Hit
	for rows.Next() {
		var hit vectorindex.Hit
		if err := rows.Scan(&hit.ChunkID, &hit.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hit.Distance *= hit.Distance
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// Count returns the number of stored vectors.
func (x *Index) Count(ctx context.Context) (int, error) {
	var count int
	if err := x.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", x.table)).Scan(&count); err != nil {
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
	rows, err := x.db.QueryContext(ctx, fmt.Sprintf("SELECT chunk_id FROM %s ORDER BY seq", x.table))
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
	return x.writeMeta(ctx, x.db, meta)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (x *Index) writeMeta(ctx context.Context, db execer, meta vectorindex.Meta) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO embedeval_index_meta (backend, model, dimension) VALUES ($1, $2, $3)
		ON CONFLICT (backend) DO UPDATE SET model = EXCLUDED.model, dimension = EXCLUDED.dimension
	`, x.backend, meta.Model, meta.Dimension)
	if err != nil {
		return fmt.Errorf("failed to write meta: %w", err)
	}
	return nil
}

// Meta returns build metadata.
func (x *Index) Meta(ctx context.Context) (vectorindex.Meta, error) {
	meta := vectorindex.Meta{Backend: x.backend}
	err := x.db.QueryRowContext(ctx,
		"SELECT model, dimension FROM embedeval_index_meta WHERE backend = $1", x.backend,
	).Scan(&meta.Model, &meta.Dimension)
	if errors.Is(err, sql.ErrNoRows) {
		return vectorindex.Meta{}, nil
	}
	if err != nil {
		return vectorindex.Meta{}, fmt.Errorf("failed to read meta: %w", err)
	}
	return meta, nil
}

// Reset truncates the backend's table and removes its metadata.
func (x *Index) Reset(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, err := x.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s RESTART IDENTITY", x.table)); err != nil {
		return fmt.Errorf("failed to truncate: %w", err)
	}
	if _, err := x.db.ExecContext(ctx, "DELETE FROM embedeval_index_meta WHERE backend = $1", x.backend); err != nil {
		return fmt.Errorf("failed to delete meta: %w", err)
	}
	x.dimension = x.configured
	return nil
}

// Close releases the connection when the index opened it.
func (x *Index) Close() error {
	if x.ownsDB {
		return x.db.Close()
	}
	return nil
}

// encodeVector converts []float32 to pgvector text format: [0.1,0.2,...]
func encodeVector(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
