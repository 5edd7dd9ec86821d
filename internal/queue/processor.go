// Package queue consumes the notification delivery queue. A Worker
// long-polls SQS and a LambdaHandler serves SQS event batches; both hand
// each message to the same Processor, which decodes the envelope and
// dispatches the notification it names.
package queue

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/ToFood/tofood-zip/internal/types"
)

// Dispatcher delivers one notification. *core.Service implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, id int64) error
}

// LagRecorder receives the time each message spent on the queue.
type LagRecorder interface {
	RecordQueueLag(ctx context.Context, lag time.Duration)
}

// ErrMalformed is wrapped by Process for bodies that are not a notification
// envelope. Such messages are never acknowledged; the queue's redrive
// policy moves them to the dead-letter queue.
var ErrMalformed = errors.New("malformed queue message")

const (
	attrSentTimestamp = "SentTimestamp"
	attrReceiveCount  = "ApproximateReceiveCount"
)

// Processor handles a single queue message.
type Processor struct {
	dispatcher Dispatcher
	lag        LagRecorder
	timeout    time.Duration
	logger     types.Logger
	now        func() time.Time
}

// NewProcessor creates a Processor. lag may be nil. A positive timeout
// bounds each Dispatch call.
func NewProcessor(dispatcher Dispatcher, lag LagRecorder, timeout time.Duration, logger types.Logger) *Processor {
	return &Processor{
		dispatcher: dispatcher,
		lag:        lag,
		timeout:    timeout,
		logger:     logger,
		now:        time.Now,
	}
}

// Process decodes body and dispatches the notification it names. A nil
// return means the message may be deleted.
func (p *Processor) Process(ctx context.Context, messageID, body string, attrs map[string]string) error {
	log := p.logger.With("message_id", messageID)
	if rc := attrs[attrReceiveCount]; rc != "" {
		log = log.With("receive_count", rc)
	}

	env, err := types.DecodeQueueEnvelope(body)
	if err != nil {
		log.Error("malformed queue message, leaving it for the dead-letter queue",
			"error", err.Error(),
			"body_bytes", len(body),
		)
		return errors.Join(ErrMalformed, err)
	}
	log = log.With("notification_id", env.NotificationID)

	if p.lag != nil {
		if sent, ok := sentAt(attrs); ok {
			p.lag.RecordQueueLag(ctx, p.now().Sub(sent))
		}
	}

	dctx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(dctx, p.timeout)
		defer cancel()
	}

	if err := p.dispatcher.Dispatch(dctx, env.NotificationID); err != nil {
		log.Error("dispatch failed, message will be redelivered", "error", err.Error())
		return err
	}
	return nil
}

func sentAt(attrs map[string]string) (time.Time, bool) {
	raw, ok := attrs[attrSentTimestamp]
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
