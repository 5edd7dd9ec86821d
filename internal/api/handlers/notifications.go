// Package handlers contains the HTTP handlers of the notification API.
//
// Producers (the upload and processing services) create notifications here
// and read their delivery status back; delivery itself happens in the
// notification worker.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ToFood/tofood-zip/internal/core"
	notifcore "github.com/ToFood/tofood-zip/internal/notifications/core"
	"github.com/ToFood/tofood-zip/internal/types"
)

// NotificationService is the intake and read side of the notification
// service used by the handler.
type NotificationService interface {
	CreateAndEnqueue(ctx context.Context, req notifcore.CreateRequest) (int64, error)
	GetStatus(ctx context.Context, id int64) (*types.NotificationStatusView, error)
	ListBySubject(ctx context.Context, subjectEntityID string) ([]types.NotificationStatusView, error)
}

// CreateNotificationResponse is the 202 body of POST /v1/notifications.
type CreateNotificationResponse struct {
	ID int64 `json:"id"`
}

// ListNotificationsResponse wraps the status views of one subject.
type ListNotificationsResponse struct {
	Data []types.NotificationStatusView `json:"data"`
}

// NotificationHandler serves /v1/notifications.
type NotificationHandler struct {
	service   NotificationService
	validator *core.Validator
	logger    *slog.Logger
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(service NotificationService, v *core.Validator, logger *slog.Logger) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{
		service:   service,
		validator: v,
		logger:    logger,
	}
}

// Routes mounts the handler on a /v1 router.
func (h *NotificationHandler) Routes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
	})
}

// Create handles POST /v1/notifications.
//
// The record is created and enqueued before responding 202. When the
// enqueue fails the record still exists; the error envelope carries its id
// in details and the worker's reaper enqueues it later.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req notifcore.CreateRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	id, err := h.service.CreateAndEnqueue(r.Context(), req)
	if err != nil {
		if id != 0 {
			h.logger.WarnContext(r.Context(), "notification accepted without enqueue",
				"notification_id", id,
				"error", err,
			)
			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				appErr = types.NewAppError(types.ErrCodeInternalQueuePublish, "notification created but not enqueued", err)
			}
			core.Error(w, r, appErr.WithDetails(map[string]any{"id": id}))
			return
		}
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusAccepted, CreateNotificationResponse{ID: id})
}

// Get handles GET /v1/notifications/{id}.
func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidField,
			"id must be a positive integer", err))
		return
	}

	view, err := h.service.GetStatus(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, view)
}

// List handles GET /v1/notifications?subject_entity_id=.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListBySubject(r.Context(), r.URL.Query().Get("subject_entity_id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, ListNotificationsResponse{Data: views})
}
