package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Yardman-Mzansi/potholematic/internal/conversation"
	"github.com/Yardman-Mzansi/potholematic/internal/events"
	"github.com/Yardman-Mzansi/potholematic/internal/reports"
	"github.com/Yardman-Mzansi/potholematic/pkg/logging"
)

func TestValidateTwilioSignature(t *testing.T) {
	authToken := "test_token"
	webhookURL := "https://example.com/webhook"

	formData := url.Values{}
	formData.Set("MessageSid", "SM123")
	formData.Set("From", "whatsapp:+27821234567")
	formData.Set("Body", "Hello")

	req := httptest.NewRequest(http.MethodPost, webhookURL, strings.NewReader(formData.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", computeSignature(buildSignaturePayload(webhookURL, formData), authToken))

	if !ValidateTwilioSignature(req, authToken, webhookURL) {
		t.Error("expected signature validation to pass")
	}
}

func TestValidateTwilioSignature_InvalidSignature(t *testing.T) {
	formData := url.Values{}
	formData.Set("MessageSid", "SM123")

	req := httptest.NewRequest(http.MethodPost, "https://example.com/webhook", strings.NewReader(formData.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", "invalid_signature")

	if ValidateTwilioSignature(req, "test_token", "https://example.com/webhook") {
		t.Error("expected signature validation to fail")
	}
}

func TestValidateTwilioSignature_MissingSignature(t *testing.T) {
	formData := url.Values{}
	formData.Set("MessageSid", "SM123")

	req := httptest.NewRequest(http.MethodPost, "https://example.com/webhook", strings.NewReader(formData.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if ValidateTwilioSignature(req, "test_token", "https://example.com/webhook") {
		t.Error("expected signature validation to fail without signature header")
	}
}

func TestParseTwilioWebhook(t *testing.T) {
	formData := url.Values{}
	formData.Set("MessageSid", "SM123")
	formData.Set("AccountSid", "AC456")
	formData.Set("From", " whatsapp:+27821234567 ")
	formData.Set("To", "whatsapp:+14155238886")
	formData.Set("Body", "  Main Rd near the school \n")
	formData.Set("NumMedia", "2")
	formData.Set("MediaUrl0", "https://api.twilio.com/media/ME1")
	formData.Set("MediaContentType0", "image/jpeg")
	formData.Set("MediaUrl1", "https://api.twilio.com/media/ME2")
	formData.Set("MediaContentType1", "video/mp4")

	webhook, err := ParseTwilioWebhook(formRequest(formData))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if webhook.From != "whatsapp:+27821234567" {
		t.Errorf("expected trimmed From, got %q", webhook.From)
	}
	if webhook.Body != "Main Rd near the school" {
		t.Errorf("expected trimmed body, got %q", webhook.Body)
	}
	if webhook.HasCoords {
		t.Error("expected no coordinates")
	}
	if len(webhook.Media) != 2 || webhook.Media[1].ContentType != "video/mp4" {
		t.Fatalf("unexpected media: %+v", webhook.Media)
	}

	msg := webhook.Message()
	if msg.SenderID != "whatsapp:+27821234567" || msg.MessageID != "SM123" {
		t.Errorf("unexpected message identity: %+v", msg)
	}
	if msg.Coordinate != nil {
		t.Error("expected nil coordinate")
	}
	if !msg.Attachments[0].IsImage() {
		t.Error("expected first attachment to be an image")
	}
}

func TestParseTwilioWebhook_Coordinates(t *testing.T) {
	formData := url.Values{}
	formData.Set("MessageSid", "SM1")
	formData.Set("From", "whatsapp:+27821234567")
	formData.Set("Latitude", "-33.9249")
	formData.Set("Longitude", "18.4241")

	webhook, err := ParseTwilioWebhook(formRequest(formData))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	coord := webhook.Message().Coordinate
	if coord == nil || coord.Latitude != "-33.9249" || coord.Longitude != "18.4241" {
		t.Fatalf("unexpected coordinate: %+v", coord)
	}

	formData.Del("Longitude")
	webhook, err = ParseTwilioWebhook(formRequest(formData))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if webhook.Message().Coordinate != nil {
		t.Error("expected a lone latitude to be ignored")
	}
}

func TestParseTwilioWebhook_InvalidNumMedia(t *testing.T) {
	formData := url.Values{}
	formData.Set("From", "whatsapp:+27821234567")
	formData.Set("NumMedia", "lots")
	if _, err := ParseTwilioWebhook(formRequest(formData)); err == nil {
		t.Fatal("expected error for non-numeric NumMedia")
	}
}

func TestTwilioWebhook_FullReportFlow(t *testing.T) {
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer media.Close()

	repo := reports.NewMemoryRepository()
	handler, _ := newTestHandler(t, repo, NewTwilioMediaFetcher("AC123", "secret", 0, 0), nil)
	from := "whatsapp:+27821234567"
	replies := conversation.DefaultReplies()

	steps := []struct {
		form url.Values
		want string
	}{
		{url.Values{"MessageSid": {"SM1"}, "From": {from}, "Body": {"hi"}}, replies.Welcome},
		{url.Values{"MessageSid": {"SM2"}, "From": {from}, "Body": {"Main Rd & 5th Ave"}}, replies.AskLocation},
		{url.Values{"MessageSid": {"SM3"}, "From": {from}, "Body": {"here"}}, replies.LocationRequired},
		{url.Values{"MessageSid": {"SM4"}, "From": {from}, "Latitude": {"-33.92"}, "Longitude": {"18.42"}}, replies.AskPhoto},
		{url.Values{"MessageSid": {"SM5"}, "From": {from}, "NumMedia": {"1"}, "MediaUrl0": {media.URL + "/ME1"}, "MediaContentType0": {"image/jpeg"}}, replies.Success},
	}
	for _, step := range steps {
		w := httptest.NewRecorder()
		handler.TwilioWebhook(w, formRequest(step.form))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", step.form.Get("MessageSid"), w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/xml" {
			t.Fatalf("expected application/xml, got %s", ct)
		}
		want, _ := RenderTwiML(step.want)
		if w.Body.String() != string(want) {
			t.Fatalf("%s: unexpected reply %q", step.form.Get("MessageSid"), w.Body.String())
		}
	}

	items, err := repo.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one report, got %d", len(items))
	}
	if items[0].Description != "Main Rd & 5th Ave" || items[0].Location.Latitude != -33.92 {
		t.Fatalf("unexpected report: %+v", items[0])
	}
}

func TestTwilioWebhook_DuplicateMessageSid(t *testing.T) {
	deduper, err := events.NewMemoryDeduper(0)
	if err != nil {
		t.Fatalf("deduper: %v", err)
	}
	handler, store := newTestHandler(t, reports.NewMemoryRepository(), stubFetcher{}, deduper)
	form := url.Values{"MessageSid": {"SM1"}, "From": {"whatsapp:+27821234567"}, "Body": {"Main Rd"}}

	first := httptest.NewRecorder()
	handler.TwilioWebhook(first, formRequest(form))
	second := httptest.NewRecorder()
	handler.TwilioWebhook(second, formRequest(form))

	if !strings.Contains(first.Body.String(), "<Message>") {
		t.Fatalf("expected reply on first delivery, got %q", first.Body.String())
	}
	if second.Code != http.StatusOK || strings.Contains(second.Body.String(), "<Message>") {
		t.Fatalf("expected empty TwiML on redelivery, got %d %q", second.Code, second.Body.String())
	}
	conv, err := store.Get(context.Background(), "whatsapp:+27821234567")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if conv.State != conversation.StateAwaitingLocation || conv.Version != 2 {
		t.Fatalf("expected a single applied turn, got state=%s version=%d", conv.State, conv.Version)
	}
}

func TestTwilioWebhook_DedupFailureFailsOpen(t *testing.T) {
	handler, _ := newTestHandler(t, reports.NewMemoryRepository(), stubFetcher{}, failingDeduper{})
	w := httptest.NewRecorder()
	handler.TwilioWebhook(w, formRequest(url.Values{"MessageSid": {"SM1"}, "From": {"whatsapp:+1"}, "Body": {"Main Rd"}}))
	if !strings.Contains(w.Body.String(), "share your location") {
		t.Fatalf("expected turn to run, got %q", w.Body.String())
	}
}

func TestTwilioWebhook_Signature(t *testing.T) {
	dispatcher := &recordingDispatcher{reply: conversation.Reply{Text: "ok"}}
	handler := NewHandler(HandlerConfig{
		WebhookSecret: "tok",
		PublicBaseURL: "https://potholes.example.org/",
		Dispatcher:    dispatcher,
		Logger:        logging.Default(),
	})
	form := url.Values{"MessageSid": {"SM1"}, "From": {"whatsapp:+1"}, "Body": {"x"}}

	unsigned := httptest.NewRecorder()
	handler.TwilioWebhook(unsigned, formRequest(form))
	if unsigned.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", unsigned.Code)
	}

	req := formRequest(form)
	req.Header.Set("X-Twilio-Signature", computeSignature(buildSignaturePayload("https://potholes.example.org/pothole", form), "tok"))
	signed := httptest.NewRecorder()
	handler.TwilioWebhook(signed, req)
	if signed.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", signed.Code)
	}
	if dispatcher.calls != 1 {
		t.Fatalf("expected one dispatch, got %d", dispatcher.calls)
	}
}

func TestTwilioWebhook_MissingSender(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	handler := NewHandler(HandlerConfig{Dispatcher: dispatcher})
	w := httptest.NewRecorder()
	handler.TwilioWebhook(w, formRequest(url.Values{"MessageSid": {"SM1"}, "Body": {"hi"}}))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if dispatcher.calls != 0 {
		t.Fatal("dispatcher must not run without a sender")
	}
}

func TestTwilioWebhook_TurnErrorStillReplies(t *testing.T) {
	dispatcher := &recordingDispatcher{
		reply: conversation.Reply{Text: "Sorry <try> again"},
		err:   conversation.ErrStorageUnavailable,
	}
	handler := NewHandler(HandlerConfig{Dispatcher: dispatcher})
	w := httptest.NewRecorder()
	handler.TwilioWebhook(w, formRequest(url.Values{"From": {"whatsapp:+1"}, "Body": {"x"}}))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Sorry &lt;try&gt; again") {
		t.Fatalf("expected escaped failure reply, got %q", w.Body.String())
	}
}

func TestNewHandlerRequiresDispatcher(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewHandler(HandlerConfig{})
}

func TestHealthCheck(t *testing.T) {
	handler := NewHandler(HandlerConfig{Dispatcher: &recordingDispatcher{}})
	w := httptest.NewRecorder()
	handler.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response %d %q", w.Code, w.Body.String())
	}
}

func TestBuildAbsoluteURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/pothole?x=1", nil)
	req.Host = "internal:8080"
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "potholes.example.org")
	if got := buildAbsoluteURL(req); got != "https://potholes.example.org/pothole?x=1" {
		t.Fatalf("unexpected url %q", got)
	}
}

func formRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/pothole", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func newTestHandler(t *testing.T, repo reports.Repository, fetcher conversation.MediaFetcher, deduper events.Deduper) (*Handler, *conversation.MemoryStore) {
	t.Helper()
	blobs, err := reports.NewDiskBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	store := conversation.NewMemoryStore()
	dispatcher := conversation.NewDispatcher(conversation.DispatcherConfig{
		Store:   store,
		Sink:    reports.NewSink(blobs, repo, nil),
		Fetcher: fetcher,
	})
	return NewHandler(HandlerConfig{Dispatcher: dispatcher, Deduper: deduper}), store
}

type stubFetcher struct{}

func (stubFetcher) Fetch(context.Context, string) ([]byte, string, error) {
	return []byte("img"), "image/jpeg", nil
}

type failingDeduper struct{}

func (failingDeduper) MarkProcessed(context.Context, string, string) (bool, error) {
	return false, errors.New("redis down")
}

type recordingDispatcher struct {
	calls int
	reply conversation.Reply
	err   error
}

func (d *recordingDispatcher) Handle(context.Context, conversation.Message) (conversation.Reply, error) {
	d.calls++
	return d.reply, d.err
}
