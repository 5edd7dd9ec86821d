package broker

import (
	"context"
	"sync"

	"github.com/ToFood/tofood-zip/internal/types"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)         {}
func (nopLogger) Warn(string, ...any)         {}
func (nopLogger) Error(string, ...any)        {}
func (l *nopLogger) With(...any) types.Logger { return l }

type fakeSendGrid struct {
	apiKey types.SecretString
	input  types.SendInput
	err    error
}

func (f *fakeSendGrid) Send(_ context.Context, apiKey types.SecretString, input types.SendInput) (string, error) {
	f.apiKey = apiKey
	f.input = input
	if f.err != nil {
		return "", f.err
	}
	return "sg-1", nil
}

type fakeSES struct {
	input types.SendInput
	err   error
}

func (f *fakeSES) Send(_ context.Context, input types.SendInput) (string, error) {
	f.input = input
	if f.err != nil {
		return "", f.err
	}
	return "ses-1", nil
}

// countingSender records calls and returns a fixed result.
type countingSender struct {
	mu     sync.Mutex
	calls  int
	result Result
	block  bool
}

func (s *countingSender) Send(ctx context.Context, _ types.BrokerServiceConfig, _ Message) Result {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return Failed(ctx.Err().Error())
	}
	return s.result
}

func (s *countingSender) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func emailConfig(kind types.BrokerKind) types.BrokerServiceConfig {
	return types.BrokerServiceConfig{
		ID:            3,
		Name:          "primary",
		Kind:          kind,
		Channel:       types.ChannelEmail,
		Active:        true,
		APIKey:        "user@tofood.dev",
		APISecret:     "secret",
		SenderName:    "ToFood",
		SenderAddress: "noreply@tofood.dev",
		Bcc:           "audit@tofood.dev; ops@tofood.dev",
	}
}
