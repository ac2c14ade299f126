package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Yardman-Mzansi/potholematic/internal/conversation"
)

// SQLRepository stores reports in the reports table via database/sql.
type SQLRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLRepository)(nil)

func NewSQLRepository(db *sql.DB) *SQLRepository {
	if db == nil {
		panic("reports: sql db cannot be nil")
	}
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Insert(ctx context.Context, report conversation.Report) error {
	query := `
		INSERT INTO reports (id, sender_id, description, latitude, longitude, image_locator, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		report.ID,
		report.SenderID,
		report.Description,
		report.Location.Latitude,
		report.Location.Longitude,
		report.ImageLocator,
		report.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("reports: insert: %w", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (conversation.Report, error) {
	query := `
		SELECT id, sender_id, description, latitude, longitude, image_locator, created_at
		FROM reports
		WHERE id = $1
	`
	report, err := scanReport(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return conversation.Report{}, ErrNotFound
		}
		return conversation.Report{}, fmt.Errorf("reports: get %s: %w", id, err)
	}
	return report, nil
}

func (r *SQLRepository) ListRecent(ctx context.Context, limit int) ([]conversation.Report, error) {
	query := `
		SELECT id, sender_id, description, latitude, longitude, image_locator, created_at
		FROM reports
		ORDER BY created_at DESC, id
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("reports: list: %w", err)
	}
	defer rows.Close()

	var out []conversation.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("reports: scan: %w", err)
		}
		out = append(out, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reports: list: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (conversation.Report, error) {
	var report conversation.Report
	err := row.Scan(
		&report.ID,
		&report.SenderID,
		&report.Description,
		&report.Location.Latitude,
		&report.Location.Longitude,
		&report.ImageLocator,
		&report.CreatedAt,
	)
	return report, err
}
