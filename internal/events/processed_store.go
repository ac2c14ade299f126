package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDeduper records handled webhook events in the processed_events table.
type PostgresDeduper struct {
	pool rowQuerier
}

var _ Deduper = (*PostgresDeduper)(nil)

func NewPostgresDeduper(pool *pgxpool.Pool) *PostgresDeduper {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &PostgresDeduper{pool: pool}
}

func newPostgresDeduperWithExec(exec rowQuerier) *PostgresDeduper {
	if exec == nil {
		panic("events: exec required")
	}
	return &PostgresDeduper{pool: exec}
}

// MarkProcessed inserts (provider, eventID) and reports whether this call created the row.
func (s *PostgresDeduper) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	if strings.TrimSpace(eventID) == "" {
		return true, nil
	}
	query := `
		INSERT INTO processed_events (provider, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
		RETURNING 1
	`
	var inserted int
	if err := s.pool.QueryRow(ctx, query, provider, eventID).Scan(&inserted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return true, nil
}

// Purge deletes ids recorded before cutoff and returns how many were removed.
func (s *PostgresDeduper) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM processed_events WHERE processed_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("events: purge processed: %w", err)
	}
	return ct.RowsAffected(), nil
}
