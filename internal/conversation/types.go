package conversation

import (
	"fmt"
	"strings"
	"time"
)

// State is the position of a sender within the report intake flow.
// The zero value is StateAwaitingDescription, the default for new conversations.
type State uint8

const (
	StateAwaitingDescription State = iota
	StateAwaitingLocation
	StateAwaitingPhoto
	StateComplete
)

// Persisted state names. They match the rows written by earlier deployments.
var stateNames = [...]string{
	StateAwaitingDescription: "describe_location",
	StateAwaitingLocation:    "share_location",
	StateAwaitingPhoto:       "share_photo",
	StateComplete:            "complete",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Valid reports whether s is one of the four known states.
func (s State) Valid() bool {
	return int(s) < len(stateNames)
}

// ParseState converts a persisted state name back into a State.
func ParseState(raw string) (State, error) {
	raw = strings.TrimSpace(raw)
	for i, name := range stateNames {
		if name == raw {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("conversation: unknown state %q", raw)
}

// Location is a WGS84 coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Conversation is the per-sender intake record.
type Conversation struct {
	SenderID    string
	State       State
	Description *string
	Location    *Location
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewConversation returns the default record for a sender seen for the first time.
func NewConversation(senderID string, now time.Time) Conversation {
	return Conversation{
		SenderID:  senderID,
		State:     StateAwaitingDescription,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasDescription reports whether a description has been captured.
func (c Conversation) HasDescription() bool { return c.Description != nil }

// HasLocation reports whether a location has been captured.
func (c Conversation) HasLocation() bool { return c.Location != nil }

// Clone returns a deep copy so callers cannot alias stored pointers.
func (c Conversation) Clone() Conversation {
	out := c
	if c.Description != nil {
		d := *c.Description
		out.Description = &d
	}
	if c.Location != nil {
		l := *c.Location
		out.Location = &l
	}
	return out
}

// Coordinate is a location as delivered by the channel, before numeric parsing.
type Coordinate struct {
	Latitude  string
	Longitude string
}

// Attachment is a media item attached to an inbound message.
type Attachment struct {
	URL         string
	ContentType string
}

// IsImage reports whether the declared content type looks like an image.
func (a Attachment) IsImage() bool {
	return strings.Contains(strings.ToLower(a.ContentType), "image")
}

// Message is one inbound turn from a sender.
type Message struct {
	SenderID    string
	MessageID   string
	Body        string
	Coordinate  *Coordinate
	Attachments []Attachment
}

// Report is a finalized, immutable pothole submission.
type Report struct {
	ID           string    `json:"id"`
	SenderID     string    `json:"sender_id"`
	Description  string    `json:"description"`
	Location     Location  `json:"location"`
	ImageLocator string    `json:"image_locator"`
	CreatedAt    time.Time `json:"created_at"`
}
