// Package queue provides the SQS producer that dispatches vend-retry
// payloads to the background worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"tokenpoint/internal/config"
	"tokenpoint/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// VendRetryPublisher enqueues VendRetryMessages for orders parked in
// vending_failed. The worker re-drives vending against the order ID; because
// vending is idempotent on order ID, duplicate deliveries are harmless.
type VendRetryPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewVendRetryPublisher creates a publisher for the configured retry queue.
func NewVendRetryPublisher(client SQSSender, queueCfg config.QueueConfig, logger *slog.Logger) *VendRetryPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &VendRetryPublisher{
		client:   client,
		queueURL: queueCfg.VendRetryQueueURL,
		logger:   logger,
	}
}

// PublishVendRetry enqueues one retry for the order. attempt counts prior
// vending attempts, starting at 1 for the first retry after the synchronous
// attempt failed; callers stop publishing past MaxVendRetryAttempts.
func (p *VendRetryPublisher) PublishVendRetry(ctx context.Context, orderID string, attempt int, reason string) error {
	msg := types.VendRetryMessage{
		MessageID:  uuid.New().String(),
		TraceID:    types.GetRequestID(ctx),
		OrderID:    orderID,
		Attempt:    attempt,
		Reason:     reason,
		EnqueuedAt: time.Now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal VendRetryMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"reason": {
				DataType:    aws.String("String"),
				StringValue: aws.String(reason),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send VendRetryMessage to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "vend retry enqueued",
		"queue_url", p.queueURL,
		"message_id", msg.MessageID,
		"order_id", orderID,
		"attempt", attempt,
		"reason", reason,
	)

	return nil
}
