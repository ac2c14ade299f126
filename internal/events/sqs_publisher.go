package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/Yardman-Mzansi/potholematic/internal/conversation"
	"github.com/Yardman-Mzansi/potholematic/pkg/logging"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher emits ReportCreatedV1 events to an SQS queue.
type SQSPublisher struct {
	client   sqsAPI
	queueURL string
	logger   *logging.Logger
}

var _ conversation.ReportListener = (*SQSPublisher)(nil)

func NewSQSPublisher(client sqsAPI, queueURL string, logger *logging.Logger) *SQSPublisher {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SQSPublisher{client: client, queueURL: queueURL, logger: logger}
}

// ReportCreated publishes the event for a committed report.
func (p *SQSPublisher) ReportCreated(ctx context.Context, report conversation.Report) error {
	body, err := json.Marshal(NewReportCreated(report))
	if err != nil {
		return fmt.Errorf("events: marshal report event: %w", err)
	}
	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(EventTypeReportCreated),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("events: failed to send SQS message: %w", err)
	}
	p.logger.Debug("report event published", "report_id", report.ID, "message_id", aws.ToString(out.MessageId))
	return nil
}
