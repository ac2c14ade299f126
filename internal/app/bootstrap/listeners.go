package bootstrap

import (
	"strings"

	appconfig "github.com/Yardman-Mzansi/potholematic/internal/config"
	"github.com/Yardman-Mzansi/potholematic/internal/conversation"
	"github.com/Yardman-Mzansi/potholematic/internal/events"
	"github.com/Yardman-Mzansi/potholematic/internal/notify"
	"github.com/Yardman-Mzansi/potholematic/pkg/logging"
)

// BuildReportListeners returns the post-commit fan-out: an SQS event when a
// queue is configured and an e-mail when recipients are configured.
func BuildReportListeners(cfg *appconfig.Config, aws *AWSClients, logger *logging.Logger) []conversation.ReportListener {
	var listeners []conversation.ReportListener

	if queueURL := strings.TrimSpace(cfg.ReportEventsQueueURL); queueURL != "" {
		if aws == nil || aws.SQS == nil {
			logger.Warn("report events queue configured without an sqs client; events disabled")
		} else {
			listeners = append(listeners, events.NewSQSPublisher(aws.SQS, queueURL, logger))
		}
	}

	if strings.TrimSpace(cfg.NotifyEmailTo) != "" {
		listeners = append(listeners, notify.NewReportNotifier(buildEmailSender(cfg, aws, logger), cfg.NotifyEmailTo, logger))
	}
	return listeners
}

func buildEmailSender(cfg *appconfig.Config, aws *AWSClients, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "ses":
		if aws != nil && aws.SES != nil {
			return notify.NewSESSender(aws.SES, notify.SESConfig{FromEmail: cfg.EmailFrom, FromName: cfg.EmailFromName}, logger)
		}
		logger.Warn("ses email provider selected without an ses client; using stub sender")
	default:
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger); sender != nil {
			return sender
		}
		logger.Warn("SENDGRID_API_KEY not set; using stub email sender")
	}
	return notify.NewStubEmailSender(logger)
}
