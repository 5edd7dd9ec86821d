package queue

import (
	"context"
	"sync"
	"time"

	"github.com/ToFood/tofood-zip/internal/types"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)        {}
func (nopLogger) Warn(string, ...any)        {}
func (nopLogger) Error(string, ...any)       {}
func (l nopLogger) With(...any) types.Logger { return l }

// fakeDispatcher records dispatched ids and fails those listed in fail.
type fakeDispatcher struct {
	mu    sync.Mutex
	ids   []int64
	fail  map[int64]error
	hook  func(ctx context.Context, id int64)
	ctxOK []bool
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, id int64) error {
	if d.hook != nil {
		d.hook(ctx, id)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, id)
	_, hasDeadline := ctx.Deadline()
	d.ctxOK = append(d.ctxOK, hasDeadline)
	return d.fail[id]
}

func (d *fakeDispatcher) dispatched() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int64(nil), d.ids...)
}

type lagRecorder struct {
	mu   sync.Mutex
	lags []time.Duration
}

func (r *lagRecorder) RecordQueueLag(_ context.Context, lag time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lags = append(r.lags, lag)
}
