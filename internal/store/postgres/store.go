// Package postgres provides the Postgres-backed record store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shelfwatch/catalog-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store reads and writes product records. The pool is shared by all
// concurrent detail workers and must outlive the run.
type Store struct {
	pool  pool
	table string
}

// NewStore connects to Postgres using the provided config.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "product"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pgPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pgPool, table: table}, nil
}

// NewStoreWithPool constructs a Store from an existing pool (primarily
// for testing).
func NewStoreWithPool(p pool, table string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "product"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: p, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// InsertRecord writes one product record.
func (s *Store) InsertRecord(ctx context.Context, rec crawler.ProductRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	site,
	name,
	brand,
	price,
	ingredients,
	image_urls,
	run_id,
	scraped_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)`, s.table)

	args := []any{
		rec.ID,
		rec.Site,
		rec.Name,
		rec.Brand,
		rec.Price,
		rec.Ingredients,
		rec.ImageURLs,
		rec.RunID,
		rec.ScrapedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// RecordsByRun returns all records for runID ordered by name ascending.
func (s *Store) RecordsByRun(ctx context.Context, runID string) ([]crawler.ProductRecord, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
SELECT id, site, name, brand, price, ingredients, image_urls, run_id, scraped_at
FROM %s
WHERE run_id = $1
ORDER BY name ASC`, s.table)

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var records []crawler.ProductRecord
	for rows.Next() {
		var rec crawler.ProductRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Site,
			&rec.Name,
			&rec.Brand,
			&rec.Price,
			&rec.Ingredients,
			&rec.ImageURLs,
			&rec.RunID,
			&rec.ScrapedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return records, nil
}
