// Package core implements the notification service: creating notification
// records, publishing them to the delivery queue, and dispatching a queued
// record through its broker exactly once per claim.
//
// The record row is the source of truth. A record is claimed by moving it
// from WaitingToBeSent to Processing in a single conditional update, so
// concurrent or redelivered dispatches of the same id never reach the
// broker twice.
package core

import (
	"context"
	"time"

	"github.com/ToFood/tofood-zip/internal/notifications/broker"
	"github.com/ToFood/tofood-zip/internal/types"
)

// NotificationStore persists notification records and their lifecycle
// transitions. *db.NotificationRepository implements it.
type NotificationStore interface {
	Create(ctx context.Context, rec *types.NotificationRecord) error
	GetByID(ctx context.Context, id int64) (*types.NotificationRecord, error)
	ListBySubject(ctx context.Context, subjectEntityID string, limit int) ([]*types.NotificationRecord, error)

	// Claim moves a WaitingToBeSent, unsent, non-deleted record to
	// Processing and returns it. It returns nil, nil when no such row exists.
	Claim(ctx context.Context, id int64) (*types.NotificationRecord, error)

	// Finish moves a Processing record to a terminal status.
	Finish(ctx context.Context, id int64, status types.NotificationStatus, errorMessage string) error

	// Release returns a Processing record to WaitingToBeSent.
	Release(ctx context.Context, id int64) error

	ReleaseStaleClaims(ctx context.Context, lease time.Duration, limit int) ([]int64, error)
	TouchStaleWaiting(ctx context.Context, lease time.Duration, limit int) ([]int64, error)
}

// BrokerConfigStore reads operator-managed broker service configs.
// *db.BrokerServiceRepository implements it.
type BrokerConfigStore interface {
	GetActiveForChannel(ctx context.Context, channel types.ChannelType) (*types.BrokerServiceConfig, error)
	GetByID(ctx context.Context, id int64) (*types.BrokerServiceConfig, error)
}

// Publisher puts a notification id on the delivery queue.
type Publisher interface {
	Publish(ctx context.Context, id int64) error
}

// BrokerDispatcher sends one message through a broker config.
// *broker.Dispatcher implements it.
type BrokerDispatcher interface {
	Send(ctx context.Context, cfg types.BrokerServiceConfig, msg broker.Message) (broker.Result, error)
}

// Outcome categorizes a dispatch for metrics reporting.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeFailed          Outcome = "failed"
	OutcomeNoValidContacts Outcome = "no_valid_contacts"
	OutcomeNotSent         Outcome = "not_sent"
	OutcomeSkipped         Outcome = "skipped"
)

// Metrics records dispatch telemetry. Implementations never fail the caller.
type Metrics interface {
	RecordDispatch(ctx context.Context, channel types.ChannelType, outcome Outcome)
	RecordLatency(ctx context.Context, channel types.ChannelType, duration time.Duration)
	RecordQueueLag(ctx context.Context, lag time.Duration)
	RecordClaimsReleased(ctx context.Context, count int)
}

// CreateRequest is the input to CreateRecord. Subject, BodyText and
// BodyTemplate default to the broker config's title, text and template.
type CreateRequest struct {
	SubjectEntityID string            `json:"subject_entity_id" validate:"required,max=200"`
	Channel         types.ChannelType `json:"channel_type" validate:"min=0,max=3"`
	Recipient       string            `json:"recipient" validate:"max=320"`
	Phone           string            `json:"phone,omitempty" validate:"max=32"`
	Operation       string            `json:"operation,omitempty" validate:"max=100"`
	Subject         string            `json:"subject,omitempty" validate:"max=998"`
	BodyText        string            `json:"body_text,omitempty"`
	BodyTemplate    string            `json:"body_template,omitempty"`
	HeaderImageURL  string            `json:"header_image_url,omitempty" validate:"omitempty,url"`
}
