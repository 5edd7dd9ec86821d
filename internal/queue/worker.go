package queue

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"golang.org/x/sync/errgroup"

	"github.com/ToFood/tofood-zip/internal/external"
	"github.com/ToFood/tofood-zip/internal/types"
)

// SQSAPI is the subset of *sqs.Client the worker uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// State is the observable phase of a Worker.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateProcessing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateProcessing:
		return "processing"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// WorkerConfig tunes a Worker. Zero values take the defaults noted.
type WorkerConfig struct {
	QueueURL    string
	Concurrency int   // 1
	BatchSize   int32 // 5
	WaitSeconds int32 // 0 short-polls; the loop then idles ReceiveBackoff between empty receives

	ReceiveBackoff    time.Duration // 1s
	MaxReceiveBackoff time.Duration // 30s
}

// Worker long-polls the delivery queue and processes messages in receive
// order, deleting each one only after it was processed successfully.
type Worker struct {
	client    SQSAPI
	processor *Processor
	cfg       WorkerConfig
	logger    types.Logger
	state     atomic.Int32
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewWorker creates a Worker.
func NewWorker(client SQSAPI, processor *Processor, cfg WorkerConfig, logger types.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.WaitSeconds < 0 {
		cfg.WaitSeconds = 0
	}
	if cfg.ReceiveBackoff <= 0 {
		cfg.ReceiveBackoff = time.Second
	}
	if cfg.MaxReceiveBackoff < cfg.ReceiveBackoff {
		cfg.MaxReceiveBackoff = max(30*time.Second, cfg.ReceiveBackoff)
	}
	return &Worker{
		client:    client,
		processor: processor,
		cfg:       cfg,
		logger:    logger.With("queue_url", cfg.QueueURL),
		sleep:     external.SleepContext,
	}
}

// State returns the current phase. With Concurrency > 1 it reflects the
// most recent transition of any loop.
func (w *Worker) State() State {
	return State(w.state.Load())
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

// Run polls until ctx is done and returns ctx.Err(). Concurrency loops run
// independently; a message is handled by exactly one of them.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("queue worker started",
		"concurrency", w.cfg.Concurrency,
		"batch_size", w.cfg.BatchSize,
		"wait_seconds", w.cfg.WaitSeconds,
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := range w.cfg.Concurrency {
		g.Go(func() error {
			return w.loop(gctx, i)
		})
	}
	err := g.Wait()
	w.setState(StateStopped)
	w.logger.Info("queue worker stopped")
	return err
}

func (w *Worker) loop(ctx context.Context, n int) error {
	log := w.logger.With("loop", n)
	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		received, err := w.PollOnce(ctx)
		if err == nil {
			failures = 0
			if received == 0 && w.cfg.WaitSeconds == 0 {
				if err := w.sleep(ctx, w.cfg.ReceiveBackoff); err != nil {
					return err
				}
			}
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		failures++
		wait := w.backoff(failures)
		log.Error("receive failed, backing off",
			"error", err.Error(),
			"consecutive_failures", failures,
			"backoff", wait.String(),
		)
		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// PollOnce receives one batch and processes it. It returns the number of
// messages received and the receive error, if any. Processing failures are
// logged, not returned.
func (w *Worker) PollOnce(ctx context.Context) (int, error) {
	w.setState(StatePolling)
	out, err := w.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(w.cfg.QueueURL),
		MaxNumberOfMessages: w.cfg.BatchSize,
		WaitTimeSeconds:     w.cfg.WaitSeconds,
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
			sqstypes.MessageSystemAttributeNameSentTimestamp,
			sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
		},
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		w.setState(StateIdle)
		return 0, err
	}

	if len(out.Messages) > 0 {
		w.setState(StateProcessing)
	}
	for _, msg := range out.Messages {
		if ctx.Err() != nil {
			break
		}
		w.handle(ctx, msg)
	}
	w.setState(StateIdle)
	return len(out.Messages), nil
}

// handle processes msg and reports whether it was deleted.
func (w *Worker) handle(ctx context.Context, msg sqstypes.Message) bool {
	id := aws.ToString(msg.MessageId)
	if err := w.processor.Process(ctx, id, aws.ToString(msg.Body), msg.Attributes); err != nil {
		return false
	}
	// Cancellation seen after processing: leave the message, a redelivery
	// is a no-op once the record is terminal.
	if ctx.Err() != nil {
		return false
	}
	_, err := w.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.cfg.QueueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		w.logger.Error("failed to delete processed message",
			"message_id", id,
			"error", err.Error(),
		)
		return false
	}
	return true
}

// backoff returns an exponential delay with equal jitter:
// half the capped exponential plus a random share of the other half.
func (w *Worker) backoff(failures int) time.Duration {
	d := w.cfg.ReceiveBackoff
	for i := 1; i < failures && d < w.cfg.MaxReceiveBackoff; i++ {
		d *= 2
	}
	d = min(d, w.cfg.MaxReceiveBackoff)
	half := d / 2
	return half + rand.N(half+1)
}
