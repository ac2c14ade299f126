package conversation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Effect is the persistence side effect a Decision asks the Dispatcher to apply.
type Effect uint8

const (
	EffectNone Effect = iota
	EffectCaptureDescription
	EffectCaptureLocation
	EffectSubmitPhoto
	EffectRestart
)

func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "none"
	case EffectCaptureDescription:
		return "capture_description"
	case EffectCaptureLocation:
		return "capture_location"
	case EffectSubmitPhoto:
		return "submit_photo"
	case EffectRestart:
		return "restart"
	default:
		return fmt.Sprintf("effect(%d)", uint8(e))
	}
}

// Outcome labels why a turn ended the way it did. Used for logs and metrics.
type Outcome string

const (
	OutcomeGreeting              Outcome = "greeting"
	OutcomeDescriptionCaptured   Outcome = "description_captured"
	OutcomeLocationCaptured      Outcome = "location_captured"
	OutcomeLocationMissing       Outcome = "location_missing"
	OutcomeInvalidCoordinate     Outcome = "invalid_coordinate"
	OutcomePhotoSubmitted        Outcome = "photo_submitted"
	OutcomePhotoMissing          Outcome = "photo_missing"
	OutcomeUnsupportedAttachment Outcome = "unsupported_attachment"
	OutcomeMediaFetchFailed      Outcome = "media_fetch_failed"
	OutcomeRestarted             Outcome = "restarted"
	OutcomeInconsistentReset     Outcome = "inconsistent_reset"
)

// Decision is the pure result of evaluating one message against a conversation.
type Decision struct {
	Current     State
	Next        State
	Effect      Effect
	Outcome     Outcome
	Description string
	Location    Location
	Photo       Attachment
	Reply       string
	// RetryReply replaces Reply when an EffectSubmitPhoto fetch fails.
	RetryReply string
	// Rejection is a non-fatal input problem already answered by Reply.
	Rejection error
}

// Engine is the intake state machine. It performs no I/O.
type Engine struct {
	replies       Replies
	greetings     map[string]struct{}
	validateRange bool
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithReplies overrides reply wording; empty fields keep the defaults.
func WithReplies(r Replies) EngineOption {
	return func(e *Engine) { e.replies = r.withDefaults() }
}

// WithGreetings replaces the greeting keywords.
func WithGreetings(words ...string) EngineOption {
	return func(e *Engine) {
		e.greetings = make(map[string]struct{}, len(words))
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				e.greetings[w] = struct{}{}
			}
		}
	}
}

// WithCoordinateRangeCheck toggles latitude/longitude range validation.
func WithCoordinateRangeCheck(enabled bool) EngineOption {
	return func(e *Engine) { e.validateRange = enabled }
}

// NewEngine builds an Engine with the default replies and greetings.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		replies:       DefaultReplies(),
		validateRange: true,
	}
	WithGreetings("hi", "hello", "start")(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Replies exposes the wording used by this engine.
func (e *Engine) Replies() Replies { return e.replies }

// Decide computes the next state, effect and reply for msg.
// The only error it returns wraps ErrInvalidCoordinate.
func (e *Engine) Decide(conv Conversation, msg Message) (Decision, error) {
	d := Decision{Current: conv.State, Next: conv.State, Effect: EffectNone}

	switch conv.State {
	case StateAwaitingDescription:
		if e.isGreeting(msg.Body) {
			d.Outcome = OutcomeGreeting
			d.Reply = e.replies.Welcome
			return d, nil
		}
		d.Next = StateAwaitingLocation
		d.Effect = EffectCaptureDescription
		d.Outcome = OutcomeDescriptionCaptured
		d.Description = msg.Body
		d.Reply = e.replies.AskLocation
		return d, nil

	case StateAwaitingLocation:
		if !conv.HasDescription() {
			return e.reset(d), nil
		}
		if msg.Coordinate == nil {
			d.Outcome = OutcomeLocationMissing
			d.Reply = e.replies.LocationRequired
			return d, nil
		}
		loc, err := e.parseCoordinate(*msg.Coordinate)
		if err != nil {
			d.Outcome = OutcomeInvalidCoordinate
			d.Reply = e.replies.InvalidLocation
			return d, err
		}
		d.Next = StateAwaitingPhoto
		d.Effect = EffectCaptureLocation
		d.Outcome = OutcomeLocationCaptured
		d.Location = loc
		d.Reply = e.replies.AskPhoto
		return d, nil

	case StateAwaitingPhoto:
		if !conv.HasDescription() || !conv.HasLocation() {
			return e.reset(d), nil
		}
		if len(msg.Attachments) == 0 {
			d.Outcome = OutcomePhotoMissing
			d.Reply = e.replies.PhotoRequired
			return d, nil
		}
		first := msg.Attachments[0]
		if !first.IsImage() {
			d.Outcome = OutcomeUnsupportedAttachment
			d.Rejection = fmt.Errorf("%w: %q", ErrUnsupportedAttachment, first.ContentType)
			d.Reply = e.replies.ImageRequired
			return d, nil
		}
		d.Next = StateComplete
		d.Effect = EffectSubmitPhoto
		d.Outcome = OutcomePhotoSubmitted
		d.Photo = first
		d.Reply = e.replies.Success
		d.RetryReply = e.replies.RetryPhoto
		return d, nil

	case StateComplete:
		d.Next = StateAwaitingDescription
		d.Effect = EffectRestart
		d.Outcome = OutcomeRestarted
		d.Reply = e.replies.WelcomeBack
		return d, nil
	}

	// Unknown states cannot be loaded from a store, but keep the machine total.
	return e.reset(d), nil
}

func (e *Engine) reset(d Decision) Decision {
	d.Next = StateAwaitingDescription
	d.Effect = EffectRestart
	d.Outcome = OutcomeInconsistentReset
	d.Reply = e.replies.Welcome
	return d
}

func (e *Engine) isGreeting(body string) bool {
	_, ok := e.greetings[strings.ToLower(strings.TrimSpace(body))]
	return ok
}

func (e *Engine) parseCoordinate(c Coordinate) (Location, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(c.Latitude), 64)
	if err != nil {
		return Location{}, fmt.Errorf("%w: latitude %q", ErrInvalidCoordinate, c.Latitude)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(c.Longitude), 64)
	if err != nil {
		return Location{}, fmt.Errorf("%w: longitude %q", ErrInvalidCoordinate, c.Longitude)
	}
	if e.validateRange {
		if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
			return Location{}, fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, lat)
		}
		if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
			return Location{}, fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, lon)
		}
	}
	return Location{Latitude: lat, Longitude: lon}, nil
}
