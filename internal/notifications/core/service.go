package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/ToFood/tofood-zip/internal/notifications/broker"
	"github.com/ToFood/tofood-zip/internal/types"
)

// finalizeTimeout bounds the terminal write made after a broker outcome is
// known, which runs even when the dispatch context has been cancelled.
const finalizeTimeout = 5 * time.Second

// DefaultListLimit caps ListBySubject.
const DefaultListLimit = 100

// Service creates, enqueues and dispatches notifications.
type Service struct {
	store      NotificationStore
	configs    BrokerConfigStore
	publisher  Publisher
	dispatcher BrokerDispatcher
	metrics    Metrics
	logger     types.Logger
	clock      types.Clock
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMetrics sets the metrics sink. The default discards everything.
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the wall clock used for latency measurement.
func WithClock(c types.Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

// NewService wires a Service. publisher may be nil for a dispatch-only
// service; dispatcher may be nil for an intake-only service.
func NewService(
	store NotificationStore,
	configs BrokerConfigStore,
	publisher Publisher,
	dispatcher BrokerDispatcher,
	logger types.Logger,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		store:      store,
		configs:    configs,
		publisher:  publisher,
		dispatcher: dispatcher,
		metrics:    NoopMetrics{},
		logger:     logger,
		clock:      types.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRecord persists a new WaitingToBeSent record bound to the active
// broker config of the request's channel and returns its id.
//
// Empty subject and bodies take the config's defaults. The destination is
// not validated here; an unusable one ends as NoValidContacts at dispatch.
func (s *Service) CreateRecord(ctx context.Context, req CreateRequest) (int64, error) {
	if req.SubjectEntityID == "" {
		return 0, types.NewAppError(types.ErrCodeValidationMissingField, "subject_entity_id is required", nil)
	}
	channel := req.Channel
	if channel == types.ChannelDefault {
		channel = types.ChannelEmail
	}
	if !channel.Valid() {
		return 0, types.NewAppError(types.ErrCodeValidationInvalidChannel,
			fmt.Sprintf("unknown channel type %d", int(req.Channel)), nil)
	}

	cfg, err := s.configs.GetActiveForChannel(ctx, channel)
	if err != nil {
		if types.ErrorCodeOf(err) == types.ErrCodeNotFoundBroker {
			return 0, types.NewAppError(types.ErrCodeValidationNoActiveBroker,
				"no active broker service for channel "+channel.String(), err)
		}
		return 0, err
	}

	rec := &types.NotificationRecord{
		SubjectEntityID: req.SubjectEntityID,
		Recipient:       req.Recipient,
		Phone:           req.Phone,
		Operation:       req.Operation,
		Subject:         firstNonEmpty(req.Subject, cfg.Title),
		BodyText:        firstNonEmpty(req.BodyText, cfg.Text),
		BodyTemplate:    firstNonEmpty(req.BodyTemplate, cfg.TemplateText),
		HeaderImageURL:  req.HeaderImageURL,
		Channel:         channel,
		Status:          types.StatusWaitingToBeSent,
		BrokerServiceID: &cfg.ID,
		Attempt:         1,
	}

	if !types.IsValidContact(channel, rec.Destination()) {
		s.logger.Warn("creating notification with unusable destination",
			"subject_entity_id", req.SubjectEntityID,
			"channel", channel.String(),
			"destination", broker.RedactContact(rec.Destination()),
		)
	}

	if err := s.store.Create(ctx, rec); err != nil {
		return 0, err
	}

	s.logger.Info("notification created",
		"notification_id", rec.ID,
		"subject_entity_id", rec.SubjectEntityID,
		"broker_service_id", cfg.ID,
	)
	return rec.ID, nil
}

// EnqueueForDelivery publishes the id to the delivery queue.
func (s *Service) EnqueueForDelivery(ctx context.Context, id int64) error {
	if s.publisher == nil {
		return types.NewAppError(types.ErrCodeInternalQueuePublish, "no queue publisher configured", nil)
	}
	if err := s.publisher.Publish(ctx, id); err != nil {
		if types.ErrorCodeOf(err) == types.ErrCodeInternalQueuePublish {
			return err
		}
		return types.NewAppError(types.ErrCodeInternalQueuePublish,
			fmt.Sprintf("failed to enqueue notification %d", id), err)
	}
	return nil
}

// CreateAndEnqueue creates a record and enqueues it. When the enqueue fails
// the created id is returned alongside the error; the record stays
// WaitingToBeSent so the caller or the reaper can enqueue it again.
func (s *Service) CreateAndEnqueue(ctx context.Context, req CreateRequest) (int64, error) {
	id, err := s.CreateRecord(ctx, req)
	if err != nil {
		return 0, err
	}
	if err := s.EnqueueForDelivery(ctx, id); err != nil {
		s.logger.Error("notification created but not enqueued",
			"notification_id", id,
			"error", err.Error(),
		)
		return id, err
	}
	return id, nil
}

// Dispatch delivers the record with the given id through its broker.
//
// A nil return means the queue message may be acknowledged: the record was
// delivered, reached a terminal state that retrying cannot change, or was
// not dispatchable in the first place (already finished, claimed elsewhere,
// deleted, or unknown). A non-nil return means the message should stay on
// the queue.
func (s *Service) Dispatch(ctx context.Context, id int64) error {
	log := s.logger.With("notification_id", id)

	rec, err := s.store.Claim(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		log.Info("notification not dispatchable, skipping")
		return nil
	}
	log = log.With("attempt", rec.Attempt, "channel", rec.Channel.String())

	cfg, err := s.resolveConfig(ctx, rec)
	if err != nil {
		var cfgErr *configError
		if errors.As(err, &cfgErr) {
			return s.finishNotSent(ctx, log, rec, cfgErr.Error())
		}
		// Nothing was sent; hand the row back so the redelivery can retry.
		s.release(ctx, log, rec.ID)
		return err
	}

	dest := rec.Destination()
	if !types.IsValidContact(rec.Channel, dest) {
		log.Warn("notification has no valid contact",
			"destination", broker.RedactContact(dest),
		)
		if err := s.finish(ctx, rec.ID, types.StatusNoValidContacts, ""); err != nil {
			return err
		}
		s.metrics.RecordDispatch(ctx, rec.Channel, OutcomeNoValidContacts)
		return nil
	}

	msg := broker.Message{
		To:          []string{dest},
		Subject:     rec.Subject,
		HTML:        rec.BodyTemplate,
		Text:        rec.BodyText,
		ReferenceID: strconv.FormatInt(rec.ID, 10),
	}

	start := s.clock.Now()
	res, err := s.send(ctx, *cfg, msg)
	s.metrics.RecordLatency(ctx, rec.Channel, s.clock.Now().Sub(start))
	if err != nil {
		var (
			unsupported *broker.UnsupportedError
			gateErr     *broker.GateError
		)
		switch {
		case errors.As(err, &unsupported):
			return s.finishNotSent(ctx, log, rec, unsupported.Error())
		case errors.As(err, &gateErr):
			// Nothing reached the broker.
			log.Warn("send gate unavailable, releasing claim", "error", err.Error())
			s.release(ctx, log, rec.ID)
			return err
		case ctx.Err() != nil:
			// The broker outcome is unknown.
			log.Warn("dispatch cancelled during send, releasing claim", "error", err.Error())
			s.release(ctx, log, rec.ID)
			return ctx.Err()
		default:
			log.Error("dispatch failed", "error", err.Error())
			s.forceError(ctx, log, rec.ID, err.Error())
			return err
		}
	}

	if res.Success {
		if err := s.finish(ctx, rec.ID, types.StatusSuccess, ""); err != nil {
			log.Error("delivered but failed to record success", "error", err.Error())
			return err
		}
		s.metrics.RecordDispatch(ctx, rec.Channel, OutcomeSuccess)
		log.Info("notification delivered",
			"broker_kind", cfg.Kind.String(),
			"provider_message_id", res.ProviderMessageID,
		)
		return nil
	}

	reason := res.ErrorMessage
	if reason == "" {
		reason = "broker reported failure"
	}
	if err := s.finish(ctx, rec.ID, types.StatusError, reason); err != nil {
		log.Error("broker failed and the failure could not be recorded", "error", err.Error())
		return err
	}
	s.metrics.RecordDispatch(ctx, rec.Channel, OutcomeFailed)
	log.Error("broker send failed",
		"broker_kind", cfg.Kind.String(),
		"reason", reason,
	)
	return types.NewAppError(types.ErrCodeUpstreamBrokerFailure, reason, nil).
		WithDetails(map[string]any{"notification_id": rec.ID, "broker_kind": cfg.Kind.String()})
}

// send calls the dispatcher and turns a panic inside a sender into an
// error, so one broken integration cannot take the worker down.
func (s *Service) send(ctx context.Context, cfg types.BrokerServiceConfig, msg broker.Message) (res broker.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("broker sender panicked",
				"broker_kind", cfg.Kind.String(),
				"panic", fmt.Sprint(p),
				"stack", string(debug.Stack()),
			)
			res = broker.Result{}
			err = types.NewAppError(types.ErrCodeInternalUnexpected,
				fmt.Sprintf("broker sender panicked: %v", p), nil)
		}
	}()
	return s.dispatcher.Send(ctx, cfg, msg)
}

// configError marks a broker config that can never be used for rec.
type configError struct {
	code types.ErrorCode
	msg  string
}

func (e *configError) Error() string { return e.msg }

func (e *configError) Unwrap() error { return types.NewAppError(e.code, e.msg, nil) }

func (s *Service) resolveConfig(ctx context.Context, rec *types.NotificationRecord) (*types.BrokerServiceConfig, error) {
	if rec.BrokerServiceID == nil {
		return nil, &configError{types.ErrCodeConfigBrokerMissing, "notification has no broker service configured"}
	}
	cfg, err := s.configs.GetByID(ctx, *rec.BrokerServiceID)
	if err != nil {
		if types.ErrorCodeOf(err) == types.ErrCodeNotFoundBroker {
			return nil, &configError{types.ErrCodeConfigBrokerMissing,
				fmt.Sprintf("broker service %d not found", *rec.BrokerServiceID)}
		}
		return nil, err
	}
	if !cfg.Active {
		return nil, &configError{types.ErrCodeConfigBrokerInactive,
			fmt.Sprintf("broker service %d is inactive", cfg.ID)}
	}
	if cfg.Channel != rec.Channel {
		return nil, &configError{types.ErrCodeConfigChannelMismatch,
			fmt.Sprintf("broker service %d serves %s, notification is %s", cfg.ID, cfg.Channel, rec.Channel)}
	}
	return cfg, nil
}

func (s *Service) finishNotSent(ctx context.Context, log types.Logger, rec *types.NotificationRecord, reason string) error {
	if err := s.finish(ctx, rec.ID, types.StatusNotSent, reason); err != nil {
		return err
	}
	s.metrics.RecordDispatch(ctx, rec.Channel, OutcomeNotSent)
	log.Error("notification not sent", "reason", reason)
	return nil
}

// finish writes a terminal status. The write is detached from ctx so a
// shutdown arriving after the broker answered does not lose the outcome.
func (s *Service) finish(ctx context.Context, id int64, status types.NotificationStatus, reason string) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	return s.store.Finish(wctx, id, status, reason)
}

func (s *Service) release(ctx context.Context, log types.Logger, id int64) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if err := s.store.Release(wctx, id); err != nil {
		log.Error("failed to release claim; the reaper will requeue it", "error", err.Error())
	}
}

func (s *Service) forceError(ctx context.Context, log types.Logger, id int64, reason string) {
	if err := s.finish(ctx, id, types.StatusError, reason); err != nil {
		log.Error("failed to record dispatch error", "error", err.Error())
	}
}

// GetStatus returns the status view of one record.
func (s *Service) GetStatus(ctx context.Context, id int64) (*types.NotificationStatusView, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := types.StatusViewOf(rec)
	return &view, nil
}

// ListBySubject returns the status views of a subject's records, newest
// first.
func (s *Service) ListBySubject(ctx context.Context, subjectEntityID string) ([]types.NotificationStatusView, error) {
	if subjectEntityID == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "subject_entity_id is required", nil)
	}
	recs, err := s.store.ListBySubject(ctx, subjectEntityID, DefaultListLimit)
	if err != nil {
		return nil, err
	}
	views := make([]types.NotificationStatusView, 0, len(recs))
	for _, r := range recs {
		views = append(views, types.StatusViewOf(r))
	}
	return views, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
