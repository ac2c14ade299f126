package conversation

import (
	"context"
	"time"
)

// Store persists one Conversation per sender.
//
// Get creates the default record (StateAwaitingDescription) the first time a
// sender is seen. Writes against an unknown sender return ErrConversationNotFound.
// Finalize atomically clears description and location, moves the record to
// StateComplete and returns the record as it was before the clear.
type Store interface {
	Get(ctx context.Context, senderID string) (Conversation, error)
	SetState(ctx context.Context, senderID string, state State) error
	SetDescription(ctx context.Context, senderID string, description string) error
	SetLocation(ctx context.Context, senderID string, loc Location) error
	Finalize(ctx context.Context, senderID string) (Conversation, error)
}

// MediaFetcher downloads an inbound attachment.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, contentType string, err error)
}

// ReportSink persists photo blobs and finalized reports.
// CreateReport must be idempotent on Report.ID.
type ReportSink interface {
	StoreBlob(ctx context.Context, name string, data []byte) (locator string, err error)
	CreateReport(ctx context.Context, report Report) (id string, err error)
}

// ReportListener is notified after a report has been committed.
type ReportListener interface {
	ReportCreated(ctx context.Context, report Report) error
}

// Clock returns the current time; swapped in tests.
type Clock func() time.Time
