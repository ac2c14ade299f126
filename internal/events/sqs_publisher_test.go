package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/Yardman-Mzansi/potholematic/internal/conversation"
)

type mockSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (m *mockSQS) SendMessage(_ context.Context, input *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSQSPublisher_ReportCreated(t *testing.T) {
	mock := &mockSQS{}
	pub := NewSQSPublisher(mock, "https://sqs.af-south-1.amazonaws.com/123/reports", nil)
	report := conversation.Report{
		ID:           "r-1",
		SenderID:     "whatsapp:+2782",
		Description:  "Main Rd",
		Location:     conversation.Location{Latitude: -33.9, Longitude: 18.4},
		ImageLocator: "s3://b/k.jpg",
		CreatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := pub.ReportCreated(context.Background(), report); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mock.inputs) != 1 {
		t.Fatalf("expected one message, got %d", len(mock.inputs))
	}
	input := mock.inputs[0]
	if aws.ToString(input.QueueUrl) != "https://sqs.af-south-1.amazonaws.com/123/reports" {
		t.Fatalf("unexpected queue %s", aws.ToString(input.QueueUrl))
	}
	if got := aws.ToString(input.MessageAttributes["event_type"].StringValue); got != EventTypeReportCreated {
		t.Fatalf("unexpected event type %q", got)
	}
	var event ReportCreatedV1
	if err := json.Unmarshal([]byte(aws.ToString(input.MessageBody)), &event); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if event.EventID != "r-1" || event.ReportID != "r-1" || event.Latitude != -33.9 || event.ImageLocator != "s3://b/k.jpg" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestSQSPublisher_Error(t *testing.T) {
	boom := errors.New("queue missing")
	pub := NewSQSPublisher(&mockSQS{err: boom}, "q", nil)
	if err := pub.ReportCreated(context.Background(), conversation.Report{ID: "r"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
