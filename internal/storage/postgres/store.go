package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oikos-cash/oikos-data-bsc/internal/model"
)

// Schema creates the tables used by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS oikos_records (
	entity     TEXT        NOT NULL,
	record_key TEXT        NOT NULL,
	block      BIGINT,
	ts_ms      BIGINT,
	record     JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (entity, record_key)
);

CREATE TABLE IF NOT EXISTS oikos_cursors (
	name           TEXT        PRIMARY KEY,
	last_timestamp BIGINT      NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for normalized records.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// PutRecords inserts or updates records keyed by entity and record key.
func (s *Store) PutRecords(ctx context.Context, records []model.Envelope) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range records {
		body, err := json.Marshal(rec.Record)
		if err != nil {
			return fmt.Errorf("marshal record %s/%s: %w", rec.Entity, rec.Key, err)
		}
		batch.Queue(`
			INSERT INTO oikos_records (
				entity, record_key, block, ts_ms, record, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, now(), now())
			ON CONFLICT (entity, record_key)
			DO UPDATE SET
				block = EXCLUDED.block,
				ts_ms = EXCLUDED.ts_ms,
				record = EXCLUDED.record,
				updated_at = now()
		`,
			rec.Entity,
			rec.Key,
			nullable(rec.Block),
			nullable(rec.Timestamp),
			body,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert records: %w", err)
		}
	}
	return nil
}

// LoadCursor returns the stored timestamp for a cursor name.
func (s *Store) LoadCursor(ctx context.Context, name string) (int64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("cursor name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_timestamp FROM oikos_cursors WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ts, true, nil
}

// SaveCursor upserts the timestamp for a cursor name.
func (s *Store) SaveCursor(ctx context.Context, name string, ts int64) error {
	if name == "" {
		return fmt.Errorf("cursor name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO oikos_cursors (name, last_timestamp, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_timestamp = EXCLUDED.last_timestamp, updated_at = now()
	`, name, ts)
	return err
}

// nullable stores zero block and timestamp values as NULL.
func nullable(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
