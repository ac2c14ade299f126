package events

import "context"

// Deduper records provider event ids (for example Twilio MessageSid) so
// redelivered webhooks are handled once.
type Deduper interface {
	// MarkProcessed returns true the first time an id is seen and false afterwards.
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}
