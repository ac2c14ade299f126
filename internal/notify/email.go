package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/Yardman-Mzansi/potholematic/pkg/logging"
)

const defaultFromName = "Pothole Reporter"

// ErrMissingRecipient is returned when a message has no To address.
var ErrMissingRecipient = errors.New("notify: recipient required")

// EmailSender delivers a single e-mail.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is one outgoing e-mail. HTML is optional; when empty the
// plain-text body is sent as both parts.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string
	HTML    string
	// Category tags the message in the provider's reporting (SendGrid
	// category, SES message tag).
	Category string
}

func (m EmailMessage) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrMissingRecipient
	}
	return nil
}

func (m EmailMessage) htmlOrText() string {
	if m.HTML != "" {
		return m.HTML
	}
	return m.Body
}

// mailbox is the configured From identity shared by every provider.
type mailbox struct {
	email string
	name  string
}

func newMailbox(email, name string) mailbox {
	if strings.TrimSpace(name) == "" {
		name = defaultFromName
	}
	return mailbox{email: strings.TrimSpace(email), name: name}
}

func (m mailbox) String() string {
	return fmt.Sprintf("%s <%s>", m.name, m.email)
}

type sendGridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender delivers through the SendGrid v3 API.
type SendGridSender struct {
	client sendGridClient
	from   mailbox
	logger *logging.Logger
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	return newSendGridSender(sendgrid.NewSendClient(cfg.APIKey), cfg, logger)
}

func newSendGridSender(client sendGridClient, cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{
		client: client,
		from:   newMailbox(cfg.FromEmail, cfg.FromName),
		logger: logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}
	if err := msg.validate(); err != nil {
		return err
	}

	message := mail.NewSingleEmail(
		mail.NewEmail(s.from.name, s.from.email),
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.To),
		msg.Body,
		msg.htmlOrText(),
	)
	if msg.Category != "" {
		message.AddCategories(msg.Category)
	}

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("notify: sendgrid send to %s: %w", msg.To, err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Warn("sendgrid rejected message", "status", resp.StatusCode, "body", resp.Body, "to", msg.To)
		return fmt.Errorf("notify: sendgrid returned status %d", resp.StatusCode)
	}
	s.logger.Debug("email sent", "provider", "sendgrid", "to", msg.To, "status", resp.StatusCode)
	return nil
}

// StubEmailSender only logs. Used when no provider is configured.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.logger.Info("email delivery disabled; message dropped", "to", msg.To, "subject", msg.Subject)
	return nil
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)
