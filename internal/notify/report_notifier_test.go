package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Yardman-Mzansi/potholematic/internal/conversation"
)

type recordingSender struct {
	sent []EmailMessage
	fail map[string]error
}

func (r *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	r.sent = append(r.sent, msg)
	return r.fail[msg.To]
}

func testReport() conversation.Report {
	return conversation.Report{
		ID:           "r-1",
		SenderID:     "whatsapp:+2782",
		Description:  "Big pothole <outside> the school",
		Location:     conversation.Location{Latitude: -33.9249, Longitude: 18.4241},
		ImageLocator: "s3://city/pothole_images/a.jpg",
		CreatedAt:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestReportNotifier_SendsToEachRecipient(t *testing.T) {
	sender := &recordingSender{}
	n := NewReportNotifier(sender, "roads@example.com, ops@example.com,,", nil)

	if err := n.ReportCreated(context.Background(), testReport()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(sender.sent))
	}
	if sender.sent[0].To != "roads@example.com" || sender.sent[1].To != "ops@example.com" {
		t.Fatalf("unexpected recipients %q %q", sender.sent[0].To, sender.sent[1].To)
	}
	msg := sender.sent[0]
	if !strings.Contains(msg.Body, "-33.924900, 18.424100") {
		t.Fatalf("expected coordinates in body: %s", msg.Body)
	}
	if !strings.Contains(msg.HTML, "&lt;outside&gt;") {
		t.Fatalf("expected escaped html: %s", msg.HTML)
	}
	if !strings.HasPrefix(msg.Subject, "New pothole report: ") {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
}

func TestReportNotifier_NoRecipientsIsNoop(t *testing.T) {
	sender := &recordingSender{}
	if err := NewReportNotifier(sender, " ", nil).ReportCreated(context.Background(), testReport()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("expected no emails")
	}
}

func TestReportNotifier_ContinuesAfterFailure(t *testing.T) {
	boom := errors.New("rejected")
	sender := &recordingSender{fail: map[string]error{"a@example.com": boom}}
	err := NewReportNotifier(sender, "a@example.com,b@example.com", nil).ReportCreated(context.Background(), testReport())
	if !errors.Is(err, boom) {
		t.Fatalf("expected first failure, got %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected both recipients attempted, got %d", len(sender.sent))
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Fatalf("got %q", got)
	}
}
