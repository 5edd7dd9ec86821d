package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ToFood/tofood-zip/internal/types"
)

type logEntry struct {
	level string
	msg   string
	args  []any
}

// mockLogger records log entries across With-derived children.
type mockLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
	fields  []any
}

func newMockLogger() *mockLogger {
	return &mockLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (l *mockLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := append(append([]any{}, l.fields...), args...)
	*l.entries = append(*l.entries, logEntry{level: level, msg: msg, args: all})
}

func (l *mockLogger) Info(msg string, args ...any)  { l.add("INFO", msg, args) }
func (l *mockLogger) Warn(msg string, args ...any)  { l.add("WARN", msg, args) }
func (l *mockLogger) Error(msg string, args ...any) { l.add("ERROR", msg, args) }
func (l *mockLogger) With(args ...any) types.Logger {
	return &mockLogger{mu: l.mu, entries: l.entries, fields: append(append([]any{}, l.fields...), args...)}
}

func (l *mockLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range *l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

// text renders every entry for substring assertions.
func (l *mockLogger) text() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out string
	for _, e := range *l.entries {
		out += fmt.Sprintf("%s %s %v\n", e.level, e.msg, e.args)
	}
	return out
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []Outcome
	latency  int
	lastLat  time.Duration
	lags     []time.Duration
	released int
}

func (m *recordingMetrics) RecordDispatch(_ context.Context, _ types.ChannelType, o Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, o)
}

func (m *recordingMetrics) RecordLatency(_ context.Context, _ types.ChannelType, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency++
	m.lastLat = d
}

// stepClock advances by step on every Now call.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func (m *recordingMetrics) RecordQueueLag(_ context.Context, lag time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lags = append(m.lags, lag)
}

func (m *recordingMetrics) RecordClaimsReleased(_ context.Context, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released += n
}

type fakePublisher struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (p *fakePublisher) Publish(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.ids = append(p.ids, id)
	return nil
}
