package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ToFood/tofood-zip/internal/core"
	notifcore "github.com/ToFood/tofood-zip/internal/notifications/core"
	"github.com/ToFood/tofood-zip/internal/notifications/notiftest"
	"github.com/ToFood/tofood-zip/internal/types"
)

const testQueueURL = "http://localhost:4566/000000000000/notifications"

type harness struct {
	store   *notiftest.Store
	configs *notiftest.Configs
	queue   *notiftest.Queue
	server  *core.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &harness{
		store:   notiftest.NewStore(),
		configs: notiftest.NewConfigs(notiftest.EmailConfig(1)),
		queue:   notiftest.NewQueue(),
	}
	publisher := notifcore.NewQueuePublisher(h.queue, testQueueURL, types.NewSlogLogger(logger))
	svc := notifcore.NewService(h.store, h.configs, publisher, nil, types.NewSlogLogger(logger))

	srv, err := core.NewServer(logger)
	require.NoError(t, err)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		NewNotificationHandler(svc, srv.Validator, logger).Routes)
	srv.MountRoutes()
	h.server = srv
	return h
}

func (h *harness) do(method, target, body string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) core.ErrorDetail {
	t.Helper()
	var resp core.APIErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

func TestCreate_Accepted(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/v1/notifications",
		`{"subject_entity_id":"upload-9","channel_type":1,"recipient":"customer@example.com"}`)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp CreateNotificationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(1), resp.ID)

	stored := h.store.Get(resp.ID)
	require.NotNil(t, stored)
	assert.Equal(t, types.StatusWaitingToBeSent, stored.Status)
	assert.Equal(t, "Seu vídeo foi processado", stored.Subject, "subject defaults to the broker title")
	assert.Equal(t, 1, h.queue.Len())
	assert.Contains(t, h.queue.Bodies()[0], `"NotificationId":1`)
}

func TestCreate_DefaultChannelIsEmail(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/v1/notifications",
		`{"subject_entity_id":"upload-9","recipient":"customer@example.com"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, types.ChannelEmail, h.store.Get(1).Channel)
}

func TestCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code types.ErrorCode
	}{
		{"missing subject", `{"recipient":"customer@example.com"}`, types.ErrCodeValidationMissingField},
		{"unknown field", `{"subject_entity_id":"a","priority":1}`, types.ErrCodeValidationInvalidJSON},
		{"channel out of range", `{"subject_entity_id":"a","channel_type":9}`, types.ErrCodeValidationInvalidField},
		{"bad header url", `{"subject_entity_id":"a","header_image_url":"not a url"}`, types.ErrCodeValidationInvalidField},
		{"empty body", ``, types.ErrCodeValidationInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			rec := h.do(http.MethodPost, "/v1/notifications", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(tt.code), errorOf(t, rec).Code)
			assert.Zero(t, h.queue.Len(), "nothing is enqueued on validation failure")
		})
	}
}

func TestCreate_NoActiveBroker(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/v1/notifications",
		`{"subject_entity_id":"upload-9","channel_type":2,"phone":"+5511999990000"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationNoActiveBroker), errorOf(t, rec).Code)
}

func TestCreate_EnqueueFailureReportsID(t *testing.T) {
	h := newHarness(t)
	h.queue.SendErr = errors.New("sqs: throttled")

	rec := h.do(http.MethodPost, "/v1/notifications",
		`{"subject_entity_id":"upload-9","recipient":"customer@example.com"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	detail := errorOf(t, rec)
	assert.Equal(t, string(types.ErrCodeInternalQueuePublish), detail.Code)
	assert.Equal(t, float64(1), detail.Details["id"])
	assert.NotContains(t, detail.Message, "throttled")

	stored := h.store.Get(1)
	require.NotNil(t, stored, "record survives the failed enqueue")
	assert.Equal(t, types.StatusWaitingToBeSent, stored.Status)
}

func TestGet(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusAccepted, h.do(http.MethodPost, "/v1/notifications",
		`{"subject_entity_id":"upload-9","recipient":"customer@example.com"}`).Code)

	rec := h.do(http.MethodGet, "/v1/notifications/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view types.NotificationStatusView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, int64(1), view.ID)
	assert.Equal(t, "upload-9", view.SubjectEntityID)
	assert.Equal(t, "waiting_to_be_sent", view.StatusName)
	assert.Equal(t, 1, view.Attempt)
	assert.Nil(t, view.SentAt)
}

func TestGet_Errors(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/v1/notifications/404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundNotification), errorOf(t, rec).Code)

	rec = h.do(http.MethodGet, "/v1/notifications/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidField), errorOf(t, rec).Code)
}

func TestList(t *testing.T) {
	h := newHarness(t)
	for _, subject := range []string{"upload-9", "upload-9", "upload-10"} {
		require.Equal(t, http.StatusAccepted, h.do(http.MethodPost, "/v1/notifications",
			`{"subject_entity_id":"`+subject+`","recipient":"customer@example.com"}`).Code)
	}

	rec := h.do(http.MethodGet, "/v1/notifications?subject_entity_id=upload-9", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListNotificationsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 2)
	for _, v := range resp.Data {
		assert.Equal(t, "upload-9", v.SubjectEntityID)
	}
}

func TestList_RequiresSubject(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/v1/notifications", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), errorOf(t, rec).Code)
}
