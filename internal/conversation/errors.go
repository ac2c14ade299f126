package conversation

import "errors"

var (
	// ErrMediaFetchFailed indicates the photo could not be downloaded. The turn is retryable.
	ErrMediaFetchFailed = errors.New("conversation: media fetch failed")
	// ErrInvalidCoordinate indicates a coordinate was present but not a usable number.
	ErrInvalidCoordinate = errors.New("conversation: invalid coordinate")
	// ErrStorageUnavailable wraps any store, blob or report persistence failure.
	ErrStorageUnavailable = errors.New("conversation: storage unavailable")
	// ErrUnsupportedAttachment marks a non-image attachment sent while a photo is expected.
	ErrUnsupportedAttachment = errors.New("conversation: unsupported attachment type")
	// ErrConversationNotFound is returned by store writes for an unknown sender.
	ErrConversationNotFound = errors.New("conversation: not found")
	// ErrMissingSender rejects messages without a sender identity.
	ErrMissingSender = errors.New("conversation: sender id required")
)
