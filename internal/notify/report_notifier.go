package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Yardman-Mzansi/potholematic/internal/conversation"
	"github.com/Yardman-Mzansi/potholematic/pkg/logging"
)

const reportCategory = "pothole-report"

// ReportNotifier e-mails the roads team whenever a report is committed.
type ReportNotifier struct {
	email      EmailSender
	recipients []string
	logger     *logging.Logger
}

var _ conversation.ReportListener = (*ReportNotifier)(nil)

// NewReportNotifier takes a comma-separated recipient list.
func NewReportNotifier(email EmailSender, recipients string, logger *logging.Logger) *ReportNotifier {
	if email == nil {
		panic("notify: email sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	var to []string
	for _, addr := range strings.Split(recipients, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	return &ReportNotifier{email: email, recipients: to, logger: logger}
}

// ReportCreated sends one message per recipient and returns the first failure.
func (n *ReportNotifier) ReportCreated(ctx context.Context, report conversation.Report) error {
	if len(n.recipients) == 0 {
		return nil
	}
	msg := buildReportEmail(report)
	var firstErr error
	for _, to := range n.recipients {
		msg.To = to
		if err := n.email.Send(ctx, msg); err != nil {
			n.logger.Warn("report notification failed", "report_id", report.ID, "to", to, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("notify: report %s to %s: %w", report.ID, to, err)
			}
		}
	}
	return firstErr
}

func buildReportEmail(report conversation.Report) EmailMessage {
	mapURL := fmt.Sprintf("https://www.google.com/maps?q=%.6f,%.6f", report.Location.Latitude, report.Location.Longitude)
	created := report.CreatedAt.UTC().Format(time.RFC1123)

	var text strings.Builder
	fmt.Fprintf(&text, "A new pothole report was received.\n\n")
	fmt.Fprintf(&text, "Report: %s\n", report.ID)
	fmt.Fprintf(&text, "Description: %s\n", report.Description)
	fmt.Fprintf(&text, "Location: %.6f, %.6f (%s)\n", report.Location.Latitude, report.Location.Longitude, mapURL)
	fmt.Fprintf(&text, "Photo: %s\n", report.ImageLocator)
	fmt.Fprintf(&text, "Received: %s\n", created)

	var body strings.Builder
	body.WriteString("<h2>New pothole report</h2><table>")
	row := func(label, value string) {
		fmt.Fprintf(&body, "<tr><td><strong>%s</strong></td><td>%s</td></tr>", label, value)
	}
	row("Report", html.EscapeString(report.ID))
	row("Description", html.EscapeString(report.Description))
	row("Location", fmt.Sprintf(`<a href="%s">%.6f, %.6f</a>`, html.EscapeString(mapURL), report.Location.Latitude, report.Location.Longitude))
	row("Photo", html.EscapeString(report.ImageLocator))
	row("Received", html.EscapeString(created))
	body.WriteString("</table>")

	return EmailMessage{
		Subject:  "New pothole report: " + truncate(report.Description, 60),
		Body:     text.String(),
		HTML:     body.String(),
		Category: reportCategory,
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
