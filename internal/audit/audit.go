// Package audit publishes a best-effort trail of dispatched calls to an
// SQS queue. Publishing failures never fail the call being audited.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"

	"github.com/inkwell-cms/remote-gateway/pkg/plugincontract"
)

const eventTypeCall = "remote.call"

// SQSClient is the interface for SQS operations.
type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher writes call events to the audit queue.
type Publisher struct {
	client   SQSClient
	queueURL string
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewPublisher creates a publisher for the given queue. An empty queue
// URL disables publishing.
func NewPublisher(client SQSClient, queueURL string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// RecordCall publishes one call event. The error code is zero for a
// successful dispatch.
func (p *Publisher) RecordCall(ctx context.Context, method, user string, errorCode int) {
	if p.queueURL == "" {
		return
	}

	event := plugincontract.CallEvent{
		EventID:    p.newID(),
		EventType:  eventTypeCall,
		OccurredAt: p.now().UTC().Format(time.RFC3339),
		Method:     method,
		User:       user,
		ErrorCode:  errorCode,
	}

	if err := p.publish(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish audit event",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Publisher) publish(ctx context.Context, event plugincontract.CallEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	return err
}
