package core

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/ToFood/tofood-zip/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// TraceIDAttribute is the message attribute carrying the publish trace id.
const TraceIDAttribute = "trace_id"

// QueuePublisher publishes notification envelopes to the delivery queue.
type QueuePublisher struct {
	client   SQSSender
	queueURL string
	logger   types.Logger
	newID    func() string
}

// NewQueuePublisher creates a QueuePublisher targeting queueURL.
func NewQueuePublisher(client SQSSender, queueURL string, logger types.Logger) *QueuePublisher {
	return &QueuePublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// Publish sends {"NotificationId": id}. The trace id is taken from the
// request id on ctx when present, otherwise generated.
func (p *QueuePublisher) Publish(ctx context.Context, id int64) error {
	body, err := types.QueueEnvelope{NotificationID: id}.Encode()
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalQueuePublish, "failed to encode queue envelope", err)
	}

	traceID := types.GetRequestID(ctx)
	if traceID == "" {
		traceID = p.newID()
	}

	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(body),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			TraceIDAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(traceID),
			},
		},
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalQueuePublish,
			fmt.Sprintf("failed to send notification %d to queue", id), err)
	}

	p.logger.Info("notification enqueued",
		"notification_id", id,
		"message_id", aws.ToString(out.MessageId),
		"trace_id", traceID,
	)
	return nil
}
