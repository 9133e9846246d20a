package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"readScope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS balance_snapshots (
	chain_id      BIGINT      NOT NULL,
	token         TEXT        NOT NULL,
	owner         TEXT        NOT NULL,
	block_number  BIGINT      NOT NULL,
	value         NUMERIC(78) NOT NULL,
	decimals      SMALLINT    NOT NULL,
	formatted     TEXT        NOT NULL,
	symbol        TEXT        NOT NULL,
	observed_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chain_id, token, owner, block_number)
);
CREATE TABLE IF NOT EXISTS watch_state (
	name            TEXT PRIMARY KEY,
	block_number    BIGINT      NOT NULL,
	block_hash      TEXT        NOT NULL,
	block_timestamp BIGINT      NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);`

// Store provides Postgres persistence for balance snapshots and watch state.
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

// Migrate creates the tables used by the store.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// PutBalanceBatch upserts snapshots with a bounded timeout.
func (s *Store) PutBalanceBatch(snapshots []model.BalanceSnapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.UpsertBalanceSnapshots(ctx, snapshots)
}

// UpsertBalanceSnapshots inserts or updates one row per token, owner and block.
func (s *Store) UpsertBalanceSnapshots(ctx context.Context, snapshots []model.BalanceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		observedAt, err := time.Parse(time.RFC3339, snap.ObservedAt)
		if err != nil {
			observedAt = time.Now().UTC()
		}
		batch.Queue(`
			INSERT INTO balance_snapshots (
				chain_id, token, owner, block_number, value, decimals, formatted, symbol, observed_at
			) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)
			ON CONFLICT (chain_id, token, owner, block_number)
			DO UPDATE SET
				value = EXCLUDED.value,
				decimals = EXCLUDED.decimals,
				formatted = EXCLUDED.formatted,
				symbol = EXCLUDED.symbol,
				observed_at = EXCLUDED.observed_at
		`,
			int64(snap.ChainID),
			snap.Token,
			snap.Owner,
			int64(snap.BlockNumber),
			snap.Value,
			int16(snap.Decimals),
			snap.Formatted,
			snap.Symbol,
			observedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the last handled head for a name.
func (s *Store) LoadState(ctx context.Context, name string) (model.Head, bool, error) {
	if name == "" {
		return model.Head{}, false, fmt.Errorf("state name required")
	}
	var number, timestamp int64
	var hash string
	row := s.pool.QueryRow(ctx, `SELECT block_number, block_hash, block_timestamp FROM watch_state WHERE name=$1`, name)
	if err := row.Scan(&number, &hash, &timestamp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Head{}, false, nil
		}
		return model.Head{}, false, err
	}
	return model.Head{Number: uint64(number), Hash: hash, Timestamp: uint64(timestamp)}, true, nil
}

// SaveState upserts the last handled head for a name.
func (s *Store) SaveState(ctx context.Context, name string, head model.Head) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watch_state (name, block_number, block_hash, block_timestamp, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (name) DO UPDATE
		SET block_number = EXCLUDED.block_number,
			block_hash = EXCLUDED.block_hash,
			block_timestamp = EXCLUDED.block_timestamp,
			updated_at = now()
	`, name, int64(head.Number), head.Hash, int64(head.Timestamp))
	return err
}
