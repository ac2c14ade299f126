package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Yardman-Mzansi/potholematic/internal/conversation"
	"github.com/Yardman-Mzansi/potholematic/internal/events"
	"github.com/Yardman-Mzansi/potholematic/internal/observability/metrics"
	"github.com/Yardman-Mzansi/potholematic/pkg/logging"
)

var twilioTracer = otel.Tracer("potholematic.internal.messaging.twilio")

const dedupProvider = "twilio"

type turnHandler interface {
	Handle(ctx context.Context, msg conversation.Message) (conversation.Reply, error)
}

// HandlerConfig wires the Twilio webhook handler.
type HandlerConfig struct {
	// WebhookSecret enables X-Twilio-Signature validation when set.
	WebhookSecret string
	// PublicBaseURL overrides the scheme and host used to rebuild the signed URL.
	PublicBaseURL string
	Dispatcher    turnHandler
	Deduper       events.Deduper
	Metrics       *metrics.IntakeMetrics
	Logger        *logging.Logger
}

// Handler handles messaging webhook requests.
type Handler struct {
	webhookSecret string
	publicBaseURL string
	dispatcher    turnHandler
	deduper       events.Deduper
	metrics       *metrics.IntakeMetrics
	logger        *logging.Logger
}

// NewHandler creates a new messaging handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Dispatcher == nil {
		panic("messaging: dispatcher cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Handler{
		webhookSecret: cfg.WebhookSecret,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		dispatcher:    cfg.Dispatcher,
		deduper:       cfg.Deduper,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
}

// TwilioWebhook handles POST /webhooks/twilio/messages (and the /pothole alias).
// Every processed turn answers 200 with TwiML so Twilio does not retry a
// message the sender has already been replied to.
func (h *Handler) TwilioWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := twilioTracer.Start(r.Context(), "messaging.twilio.webhook")
	defer span.End()

	start := time.Now()
	status := "ok"
	defer func() {
		h.metrics.ObserveWebhook(status, time.Since(start).Seconds())
	}()

	if h.webhookSecret != "" {
		if !ValidateTwilioSignature(r, h.webhookSecret, h.webhookURL(r)) {
			status = "unauthorized"
			h.logger.Warn("invalid twilio signature")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			span.RecordError(errors.New("invalid twilio signature"))
			return
		}
	}

	webhook, err := ParseTwilioWebhook(r)
	if err != nil {
		status = "bad_request"
		h.logger.Error("failed to parse twilio webhook", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}
	if webhook.From == "" {
		status = "bad_request"
		h.logger.Warn("twilio webhook missing sender", "message_sid", webhook.MessageSid)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	span.SetAttributes(
		attribute.String("potholematic.message_sid", webhook.MessageSid),
		attribute.String("potholematic.from", NormalizeE164(webhook.From)),
		attribute.Int("potholematic.num_media", len(webhook.Media)),
	)

	if h.deduper != nil && webhook.MessageSid != "" {
		fresh, err := h.deduper.MarkProcessed(ctx, dedupProvider, webhook.MessageSid)
		switch {
		case err != nil:
			// Fail open: the per-sender lock still serializes the turn.
			h.logger.Warn("webhook dedup unavailable", "message_sid", webhook.MessageSid, "error", err)
		case !fresh:
			status = "duplicate"
			h.logger.Info("duplicate twilio webhook ignored", "message_sid", webhook.MessageSid)
			writeTwiML(w, "")
			return
		}
	}

	reply, err := h.dispatcher.Handle(ctx, webhook.Message())
	logger := h.logger.With("message_sid", webhook.MessageSid, "outcome", reply.Outcome)
	if err != nil {
		status = "turn_error"
		span.RecordError(err)
		logger.Error("turn failed", "error", err)
	} else if reply.Notice != nil {
		logger.Info("turn completed with notice", "notice", reply.Notice)
	}

	writeTwiML(w, reply.Text)
}

// HealthCheck returns a simple health check response.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *Handler) webhookURL(r *http.Request) string {
	if h.publicBaseURL != "" && r.URL != nil {
		return h.publicBaseURL + r.URL.RequestURI()
	}
	return buildAbsoluteURL(r)
}

func buildAbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}
