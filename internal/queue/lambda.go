package queue

import (
	"context"

	"github.com/aws/aws-lambda-go/events"

	"github.com/ToFood/tofood-zip/internal/types"
)

// LambdaHandler serves SQS event batches delivered by the Lambda event
// source mapping. The mapping must have ReportBatchItemFailures enabled.
type LambdaHandler struct {
	processor *Processor
	logger    types.Logger
}

// NewLambdaHandler creates a LambdaHandler.
func NewLambdaHandler(processor *Processor, logger types.Logger) *LambdaHandler {
	return &LambdaHandler{processor: processor, logger: logger}
}

// Handle processes records in order. Failed or malformed records, and every
// record left when ctx ends, are reported as batch item failures so only
// they are redelivered.
func (h *LambdaHandler) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for i, record := range event.Records {
		if ctx.Err() != nil {
			for _, rest := range event.Records[i:] {
				resp.BatchItemFailures = append(resp.BatchItemFailures,
					events.SQSBatchItemFailure{ItemIdentifier: rest.MessageId})
			}
			h.logger.Warn("invocation cancelled, returning remaining records",
				"remaining", len(event.Records)-i,
			)
			break
		}
		if err := h.processor.Process(ctx, record.MessageId, record.Body, record.Attributes); err != nil {
			resp.BatchItemFailures = append(resp.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return resp, nil
}
