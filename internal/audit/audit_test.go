package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/inkwell-cms/remote-gateway/pkg/plugincontract"
)

// mockSQS implements SQSClient for testing
type mockSQS struct {
	sendFunc func(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	sent     []*sqs.SendMessageInput
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.sent = append(m.sent, params)
	if m.sendFunc != nil {
		return m.sendFunc(ctx, params, optFns...)
	}
	return &sqs.SendMessageOutput{}, nil
}

func newTestPublisher(client SQSClient, queueURL string) *Publisher {
	p := NewPublisher(client, queueURL, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	p.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }
	p.newID = func() string { return "event-1" }
	return p
}

func TestPublisher_RecordCall_PublishesEvent(t *testing.T) {
	mock := &mockSQS{}
	publisher := newTestPublisher(mock, "https://sqs.example/audit")

	publisher.RecordCall(context.Background(), "inkwell.getVersion", "alice", 0)

	if len(mock.sent) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(mock.sent))
	}
	if *mock.sent[0].QueueUrl != "https://sqs.example/audit" {
		t.Errorf("Expected configured queue URL, got %q", *mock.sent[0].QueueUrl)
	}

	var event plugincontract.CallEvent
	if err := json.Unmarshal([]byte(*mock.sent[0].MessageBody), &event); err != nil {
		t.Fatalf("Failed to unmarshal event: %v", err)
	}
	if event.EventID != "event-1" || event.EventType != "remote.call" {
		t.Errorf("Expected event envelope, got %+v", event)
	}
	if event.Method != "inkwell.getVersion" || event.User != "alice" || event.ErrorCode != 0 {
		t.Errorf("Expected call details recorded, got %+v", event)
	}
	if event.OccurredAt != "2026-08-28T12:00:00Z" {
		t.Errorf("Expected RFC3339 timestamp, got %q", event.OccurredAt)
	}
}

func TestPublisher_RecordCall_RecordsErrorCode(t *testing.T) {
	mock := &mockSQS{}
	publisher := newTestPublisher(mock, "https://sqs.example/audit")

	publisher.RecordCall(context.Background(), "plugin.clock.getTime", "", -32603)

	var event plugincontract.CallEvent
	if err := json.Unmarshal([]byte(*mock.sent[0].MessageBody), &event); err != nil {
		t.Fatalf("Failed to unmarshal event: %v", err)
	}
	if event.ErrorCode != -32603 {
		t.Errorf("Expected error code recorded, got %d", event.ErrorCode)
	}
}

func TestPublisher_RecordCall_DisabledWithoutQueue(t *testing.T) {
	mock := &mockSQS{}
	publisher := newTestPublisher(mock, "")

	publisher.RecordCall(context.Background(), "inkwell.getVersion", "alice", 0)

	if len(mock.sent) != 0 {
		t.Errorf("Expected no messages without a queue, got %d", len(mock.sent))
	}
}

func TestPublisher_RecordCall_SwallowsPublishFailure(t *testing.T) {
	mock := &mockSQS{
		sendFunc: func(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
			return nil, errors.New("queue gone")
		},
	}
	publisher := newTestPublisher(mock, "https://sqs.example/audit")

	// Must not panic or propagate; the audited call already succeeded.
	publisher.RecordCall(context.Background(), "inkwell.getVersion", "alice", 0)
}
