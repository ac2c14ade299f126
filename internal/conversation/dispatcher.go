package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Yardman-Mzansi/potholematic/internal/observability/metrics"
	"github.com/Yardman-Mzansi/potholematic/pkg/logging"
)

var dispatcherTracer = otel.Tracer("potholematic.internal.conversation.dispatcher")

// reportNamespace scopes name-based report ids.
var reportNamespace = uuid.MustParse("6f1c7f0e-5d8b-4c55-9a52-0b7e3f4c2a11")

const (
	defaultFetchTimeout    = 15 * time.Second
	defaultListenerTimeout = 10 * time.Second
)

// DispatcherConfig wires a Dispatcher to its collaborators.
type DispatcherConfig struct {
	Store           Store
	Engine          *Engine
	Sink            ReportSink
	Fetcher         MediaFetcher
	Locker          Locker
	Listeners       []ReportListener
	Metrics         *metrics.IntakeMetrics
	Logger          *logging.Logger
	FetchTimeout    time.Duration
	ListenerTimeout time.Duration // per listener call
	Clock           Clock
}

// Dispatcher runs one turn per inbound message: lock the sender, load the
// conversation, decide, apply writes, finalize reports and return the reply.
type Dispatcher struct {
	store           Store
	engine          *Engine
	sink            ReportSink
	fetcher         MediaFetcher
	locker          Locker
	listeners       []ReportListener
	metrics         *metrics.IntakeMetrics
	logger          *logging.Logger
	fetchTimeout    time.Duration
	listenerTimeout time.Duration
	now             Clock
}

// Reply is the outcome of a turn as seen by the channel adapter.
type Reply struct {
	Text     string
	State    State
	Outcome  Outcome
	ReportID string
	// Notice carries a non-fatal problem (unsupported attachment, media fetch failure).
	Notice error
}

// NewDispatcher validates cfg and applies defaults.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Store == nil {
		panic("conversation: store cannot be nil")
	}
	if cfg.Sink == nil {
		panic("conversation: report sink cannot be nil")
	}
	if cfg.Fetcher == nil {
		panic("conversation: media fetcher cannot be nil")
	}
	if cfg.Engine == nil {
		cfg.Engine = NewEngine()
	}
	if cfg.Locker == nil {
		cfg.Locker = NewLocalLocker()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.ListenerTimeout <= 0 {
		cfg.ListenerTimeout = defaultListenerTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Dispatcher{
		store:           cfg.Store,
		engine:          cfg.Engine,
		sink:            cfg.Sink,
		fetcher:         cfg.Fetcher,
		locker:          cfg.Locker,
		listeners:       cfg.Listeners,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		fetchTimeout:    cfg.FetchTimeout,
		listenerTimeout: cfg.ListenerTimeout,
		now:             cfg.Clock,
	}
}

// Handle processes one inbound message for its sender.
//
// A non-nil error means the turn did not complete; Reply.Text is then a safe
// failure message and no success is implied. Media fetch failures are not
// errors: the reply asks the sender to resend and the state is unchanged.
// Report listeners run after the sender lock is released, each bounded by
// the listener timeout and detached from ctx cancellation.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) (reply Reply, err error) {
	senderID := strings.TrimSpace(msg.SenderID)
	if senderID == "" {
		return Reply{Text: d.engine.replies.Failure}, ErrMissingSender
	}
	msg.SenderID = senderID

	ctx, span := dispatcherTracer.Start(ctx, "conversation.turn")
	defer span.End()
	span.SetAttributes(
		attribute.String("potholematic.sender_id", senderID),
		attribute.String("potholematic.message_id", msg.MessageID),
	)

	start := d.now()
	fromState := "unknown"
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(
			attribute.String("potholematic.outcome", string(reply.Outcome)),
			attribute.String("potholematic.state", reply.State.String()),
		)
		d.metrics.ObserveTurn(fromState, string(reply.Outcome), status, d.now().Sub(start).Seconds())
	}()

	unlock, err := d.locker.Lock(ctx, senderID)
	if err != nil {
		return Reply{Text: d.engine.replies.Failure}, fmt.Errorf("%w: lock sender: %w", ErrStorageUnavailable, err)
	}
	defer unlock()

	conv, err := d.store.Get(ctx, senderID)
	if err != nil {
		return Reply{Text: d.engine.replies.Failure}, fmt.Errorf("%w: load conversation: %w", ErrStorageUnavailable, err)
	}
	fromState = conv.State.String()
	logger := d.logger.With("sender_id", senderID, "from_state", fromState)

	decision, err := d.engine.Decide(conv, msg)
	if err != nil {
		logger.Warn("turn rejected", "error", err, "outcome", decision.Outcome)
		return Reply{Text: decision.Reply, State: conv.State, Outcome: decision.Outcome}, err
	}

	reply, created, err := d.apply(ctx, conv, decision)
	if err != nil {
		logger.Error("turn failed", "error", err, "outcome", decision.Outcome)
		return reply, err
	}
	if created != nil {
		unlock()
		d.notify(context.WithoutCancel(ctx), *created)
	}
	logger.Info("turn handled",
		"to_state", reply.State.String(),
		"outcome", reply.Outcome,
		"report_id", reply.ReportID,
	)
	return reply, nil
}

func (d *Dispatcher) apply(ctx context.Context, conv Conversation, decision Decision) (Reply, *Report, error) {
	reply := Reply{
		Text:    decision.Reply,
		State:   decision.Next,
		Outcome: decision.Outcome,
		Notice:  decision.Rejection,
	}
	senderID := conv.SenderID

	switch decision.Effect {
	case EffectNone:
		return reply, nil, nil

	case EffectCaptureDescription:
		// Field first, then state: if the state write fails the sender is still
		// awaiting a description and the next message overwrites it.
		if err := d.store.SetDescription(ctx, senderID, decision.Description); err != nil {
			return d.failure(conv, decision, "set description", err)
		}
		if err := d.store.SetState(ctx, senderID, decision.Next); err != nil {
			return d.failure(conv, decision, "set state", err)
		}
		return reply, nil, nil

	case EffectCaptureLocation:
		if err := d.store.SetLocation(ctx, senderID, decision.Location); err != nil {
			return d.failure(conv, decision, "set location", err)
		}
		if err := d.store.SetState(ctx, senderID, decision.Next); err != nil {
			return d.failure(conv, decision, "set state", err)
		}
		return reply, nil, nil

	case EffectRestart:
		if err := d.store.SetState(ctx, senderID, decision.Next); err != nil {
			return d.failure(conv, decision, "set state", err)
		}
		return reply, nil, nil

	case EffectSubmitPhoto:
		return d.submitPhoto(ctx, conv, decision)
	}
	return reply, nil, fmt.Errorf("conversation: unhandled effect %s", decision.Effect)
}

func (d *Dispatcher) submitPhoto(ctx context.Context, conv Conversation, decision Decision) (Reply, *Report, error) {
	senderID := conv.SenderID

	ctx, span := dispatcherTracer.Start(ctx, "conversation.submit_photo")
	defer span.End()

	fetchCtx, cancel := context.WithTimeout(ctx, d.fetchTimeout)
	data, contentType, err := d.fetcher.Fetch(fetchCtx, decision.Photo.URL)
	cancel()
	if err != nil {
		d.metrics.ObserveMediaFetch("failed")
		notice := fmt.Errorf("%w: %w", ErrMediaFetchFailed, err)
		span.RecordError(notice)
		d.logger.Warn("media fetch failed", "sender_id", senderID, "error", err)
		return Reply{
			Text:    decision.RetryReply,
			State:   conv.State,
			Outcome: OutcomeMediaFetchFailed,
			Notice:  notice,
		}, nil, nil
	}
	d.metrics.ObserveMediaFetch("ok")
	if strings.TrimSpace(contentType) == "" {
		contentType = decision.Photo.ContentType
	}

	now := d.now().UTC()
	locator, err := d.sink.StoreBlob(ctx, BlobName(senderID, now, contentType), data)
	if err != nil {
		return d.failure(conv, decision, "store blob", err)
	}

	report := Report{
		ID:           reportID(conv),
		SenderID:     senderID,
		Description:  *conv.Description,
		Location:     *conv.Location,
		ImageLocator: locator,
		CreatedAt:    now,
	}
	id, err := d.sink.CreateReport(ctx, report)
	if err != nil {
		return d.failure(conv, decision, "create report", err)
	}
	if id != "" {
		report.ID = id
	}

	snapshot, err := d.store.Finalize(ctx, senderID)
	if err != nil {
		return d.failure(conv, decision, "finalize conversation", err)
	}
	if snapshot.Version != conv.Version {
		d.logger.Warn("conversation changed during photo submission",
			"sender_id", senderID,
			"loaded_version", conv.Version,
			"finalized_version", snapshot.Version,
		)
	}
	d.metrics.ObserveReportCreated()
	span.SetAttributes(attribute.String("potholematic.report_id", report.ID))

	return Reply{
		Text:     decision.Reply,
		State:    decision.Next,
		Outcome:  decision.Outcome,
		ReportID: report.ID,
	}, &report, nil
}

func (d *Dispatcher) notify(ctx context.Context, report Report) {
	for _, listener := range d.listeners {
		if listener == nil {
			continue
		}
		listenerCtx, cancel := context.WithTimeout(ctx, d.listenerTimeout)
		err := listener.ReportCreated(listenerCtx, report)
		cancel()
		if err != nil {
			d.logger.Warn("report listener failed", "report_id", report.ID, "error", err)
		}
	}
}

func (d *Dispatcher) failure(conv Conversation, decision Decision, op string, err error) (Reply, *Report, error) {
	if errors.Is(err, ErrStorageUnavailable) {
		err = fmt.Errorf("%s: %w", op, err)
	} else {
		err = fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
	}
	return Reply{
		Text:    d.engine.replies.Failure,
		State:   conv.State,
		Outcome: decision.Outcome,
	}, nil, err
}

// reportID derives a stable id for the submission the conversation currently
// holds, so a retried turn after a partial failure reuses the same id.
func reportID(conv Conversation) string {
	key := fmt.Sprintf("%s|%d|%d", conv.SenderID, conv.CreatedAt.UnixNano(), conv.Version)
	return uuid.NewSHA1(reportNamespace, []byte(key)).String()
}
