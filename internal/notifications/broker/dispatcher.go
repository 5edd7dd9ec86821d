package broker

import (
	"context"
	"time"

	"github.com/ToFood/tofood-zip/internal/external"
	"github.com/ToFood/tofood-zip/internal/types"
)

// DefaultSendTimeout bounds a single Sender call when no timeout is set.
const DefaultSendTimeout = 30 * time.Second

// Dispatcher sends a message through the sender registered for a config's
// broker kind, applying the optional shared gate before the send, a
// per-send timeout, and the config's minimum interval after it.
type Dispatcher struct {
	registry *Registry
	gate     Gate
	timeout  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithGate sets the cross-dispatcher throttle gate.
func WithGate(g Gate) DispatcherOption {
	return func(d *Dispatcher) { d.gate = g }
}

// WithSendTimeout overrides DefaultSendTimeout.
func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithSleepFunc overrides the post-send sleep. Tests use it to observe the
// throttle without waiting.
func WithSleepFunc(fn func(ctx context.Context, d time.Duration) error) DispatcherOption {
	return func(d *Dispatcher) { d.sleep = fn }
}

// NewDispatcher creates a Dispatcher over registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		timeout:  DefaultSendTimeout,
		sleep:    external.SleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// GateError reports that the send gate failed before the broker was
// called.
type GateError struct {
	Err error
}

func (e *GateError) Error() string { return "send gate: " + e.Err.Error() }

func (e *GateError) Unwrap() error { return e.Err }

// Send delivers msg through cfg's broker.
//
// The returned error is non-nil only when no delivery outcome exists: the
// kind is unregistered (*UnsupportedError), the gate wait failed
// (*GateError), or ctx
// was cancelled before a successful result came back. In the last case the
// message may or may not have been delivered.
//
// A send with an outcome is followed by a sleep of cfg.MinInterval(). The
// sleep ends early if ctx is cancelled; the outcome is still returned.
func (d *Dispatcher) Send(ctx context.Context, cfg types.BrokerServiceConfig, msg Message) (Result, error) {
	sender, err := d.registry.Lookup(cfg.Kind)
	if err != nil {
		return Result{}, err
	}

	if d.gate != nil {
		if err := d.gate.Wait(ctx, cfg); err != nil {
			if ctx.Err() != nil {
				return Result{}, err
			}
			return Result{}, &GateError{Err: err}
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	res := sender.Send(sendCtx, cfg, msg)
	timedOut := sendCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
	cancel()

	if !res.Success {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		if timedOut && res.ErrorMessage == "" {
			res.ErrorMessage = "broker send timed out after " + d.timeout.String()
		}
	}

	_ = d.sleep(ctx, cfg.MinInterval())
	return res, nil
}
