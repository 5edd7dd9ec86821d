package notiftest

import (
	"context"
	"sync"
	"time"

	"github.com/ToFood/tofood-zip/internal/notifications/broker"
	"github.com/ToFood/tofood-zip/internal/types"
)

// Sender is a broker.Sender that records every message and answers with
// Result.
type Sender struct {
	mu       sync.Mutex
	messages []broker.Message

	Result broker.Result
}

// NewSuccessSender returns a Sender that always succeeds.
func NewSuccessSender() *Sender {
	return &Sender{Result: broker.Succeeded("test-id")}
}

// NewFailingSender returns a Sender that always fails with msg.
func NewFailingSender(msg string) *Sender {
	return &Sender{Result: broker.Failed(msg)}
}

func (s *Sender) Send(_ context.Context, _ types.BrokerServiceConfig, msg broker.Message) broker.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.Result
}

// Calls returns the number of Send calls.
func (s *Sender) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Messages returns a copy of the recorded messages.
func (s *Sender) Messages() []broker.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]broker.Message(nil), s.messages...)
}

// NewDispatcher returns a broker.Dispatcher routing kind to sender with the
// post-send throttle disabled.
func NewDispatcher(kind types.BrokerKind, sender broker.Sender) *broker.Dispatcher {
	r := broker.NewRegistry()
	r.Register(kind, sender)
	return broker.NewDispatcher(r, broker.WithSleepFunc(func(context.Context, time.Duration) error { return nil }))
}

// EmailConfig returns an active SMTP email config with the given id.
func EmailConfig(id int64) types.BrokerServiceConfig {
	return types.BrokerServiceConfig{
		ID:            id,
		Name:          "smtp-primary",
		Kind:          types.BrokerSmtp,
		Channel:       types.ChannelEmail,
		Active:        true,
		SenderName:    "ToFood",
		SenderAddress: "noreply@tofood.dev",
		Title:         "Seu vídeo foi processado",
		Text:          "Seu arquivo está pronto.",
		TemplateText:  "<p>Seu arquivo está pronto.</p>",
	}
}
