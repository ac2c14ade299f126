// Package reports persists finalized pothole reports and their photos.
package reports

import (
	"context"
	"errors"

	"github.com/Yardman-Mzansi/potholematic/internal/conversation"
)

// ErrNotFound is returned when a report id is unknown.
var ErrNotFound = errors.New("reports: not found")

// Repository stores immutable reports. Insert is idempotent on Report.ID:
// inserting an id that already exists succeeds and keeps the first row.
type Repository interface {
	Insert(ctx context.Context, report conversation.Report) error
	Get(ctx context.Context, id string) (conversation.Report, error)
	ListRecent(ctx context.Context, limit int) ([]conversation.Report, error)
}

// BlobStore writes photo bytes and returns a locator for the stored object.
type BlobStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (locator string, err error)
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
