// Package broker routes a notification to the delivery integration named by
// its broker service config. Integrations are registered per broker kind;
// a kind with no registered sender answers "integration not found".
package broker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ToFood/tofood-zip/internal/types"
)

// Message is the content and recipients of one delivery. Sender identity,
// credentials and transport options come from the broker service config.
type Message struct {
	To          []string
	Bcc         []string
	Subject     string
	HTML        string
	Text        string
	Attachments []types.Attachment
	ReferenceID string
}

// Result is the outcome a Sender reports. Transport and authentication
// failures are results, not errors.
type Result struct {
	Success           bool
	ErrorMessage      string
	ProviderMessageID string
}

// Succeeded returns a successful Result.
func Succeeded(providerMessageID string) Result {
	return Result{Success: true, ProviderMessageID: providerMessageID}
}

// Failed returns a failed Result carrying msg.
func Failed(msg string) Result {
	return Result{ErrorMessage: msg}
}

// Sender delivers a message through one broker integration.
type Sender interface {
	Send(ctx context.Context, cfg types.BrokerServiceConfig, msg Message) Result
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, cfg types.BrokerServiceConfig, msg Message) Result

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, cfg types.BrokerServiceConfig, msg Message) Result {
	return f(ctx, cfg, msg)
}

// UnsupportedError is returned by Registry.Lookup for a kind with no
// registered sender.
type UnsupportedError struct {
	Kind types.BrokerKind
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("integration not found: %s", e.Kind)
}

// Unwrap exposes the configuration error code to types.ErrorCodeOf.
func (e *UnsupportedError) Unwrap() error {
	return types.NewAppError(types.ErrCodeConfigBrokerUnsupported, "integration not found", nil).
		WithDetails(map[string]any{"broker_kind": int(e.Kind)})
}

// Registry maps broker kinds to senders. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	senders map[types.BrokerKind]Sender
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[types.BrokerKind]Sender)}
}

// Register binds kind to s, replacing any previous binding.
func (r *Registry) Register(kind types.BrokerKind, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[kind] = s
}

// Lookup returns the sender for kind or an *UnsupportedError.
func (r *Registry) Lookup(kind types.BrokerKind) (Sender, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[kind]
	if !ok {
		return nil, &UnsupportedError{Kind: kind}
	}
	return s, nil
}

// Kinds returns the registered kinds in ascending order.
func (r *Registry) Kinds() []types.BrokerKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]types.BrokerKind, 0, len(r.senders))
	for k := range r.senders {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
