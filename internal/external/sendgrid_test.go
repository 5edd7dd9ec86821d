package external

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ToFood/tofood-zip/internal/types"
)

func newTestSendGridClient(t *testing.T, serverURL string) *SendGridClient {
	t.Helper()
	base := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"test-sendgrid",
		RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: 10 * time.Millisecond},
		"notifications-test/1.0",
		WithSleepFunc(noopSleep),
	)
	return NewSendGridClientWithBase(base, SendGridClientConfig{BaseURL: serverURL})
}

func sampleSendInput() types.SendInput {
	return types.SendInput{
		From:        types.SenderIdentity{Name: "ToFood", Address: "noreply@tofood.dev"},
		ReplyTo:     "support@tofood.dev",
		To:          []string{"jane@example.com"},
		Bcc:         []string{"audit@tofood.dev", "JANE@example.com"},
		Subject:     "Your video failed",
		BodyHTML:    "<p>failed</p>",
		BodyText:    "failed",
		Attachments: []types.Attachment{{Name: "log.txt", ContentType: "text/plain", Content: []byte("trace")}},
		ReferenceID: "42",
	}
}

func TestSendGridSend_Success(t *testing.T) {
	var (
		payload sendGridMailPayload
		auth    string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v3/mail/send" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		w.Header().Set("X-Message-Id", "sg_msg_abc123")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := newTestSendGridClient(t, server.URL)
	msgID, err := client.Send(context.Background(), "SG.key", sampleSendInput())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if msgID != "sg_msg_abc123" {
		t.Errorf("message id = %q", msgID)
	}
	if auth != "Bearer SG.key" {
		t.Errorf("Authorization = %q", auth)
	}

	p := payload.Personalizations[0]
	if len(p.To) != 1 || p.To[0].Email != "jane@example.com" {
		t.Errorf("to = %+v", p.To)
	}
	if len(p.Bcc) != 1 || p.Bcc[0].Email != "audit@tofood.dev" {
		t.Errorf("bcc should drop the duplicate recipient, got %+v", p.Bcc)
	}
	if payload.ReplyTo == nil || payload.ReplyTo.Email != "support@tofood.dev" {
		t.Errorf("reply_to = %+v", payload.ReplyTo)
	}
	if len(payload.Content) != 2 || payload.Content[0].Type != "text/plain" || payload.Content[1].Type != "text/html" {
		t.Errorf("content order = %+v", payload.Content)
	}
	if len(payload.Attachments) != 1 || payload.Attachments[0].Content != base64.StdEncoding.EncodeToString([]byte("trace")) {
		t.Errorf("attachments = %+v", payload.Attachments)
	}
	if payload.CustomArgs["reference_id"] != "42" {
		t.Errorf("custom_args = %v", payload.CustomArgs)
	}
}

func TestSendGridSend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   types.ErrorCode
	}{
		{"blocked", http.StatusForbidden, `{"errors":[{"message":"suppressed"}]}`, types.ErrCodeEmailBlocked},
		{"bad request", http.StatusBadRequest, `{"errors":[{"message":"invalid from"}]}`, types.ErrCodeUpstreamEmailProvider},
		{"unauthorized", http.StatusUnauthorized, `not json`, types.ErrCodeUpstreamEmailProvider},
		{"server error", http.StatusInternalServerError, ``, types.ErrCodeUpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestSendGridClient(t, server.URL).Send(context.Background(), "SG.key", sampleSendInput())
			if got := types.ErrorCodeOf(err); got != tt.want {
				t.Errorf("code = %q, want %q (err=%v)", got, tt.want, err)
			}
		})
	}
}

func TestSendGridSend_MissingKey(t *testing.T) {
	client := newTestSendGridClient(t, "http://127.0.0.1:1")
	_, err := client.Send(context.Background(), "", sampleSendInput())
	if types.ErrorCodeOf(err) != types.ErrCodeUpstreamEmailProvider {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestBuildSendGridPayload_EmptyContent(t *testing.T) {
	p := buildSendGridPayload(types.SendInput{To: []string{"a@b.co"}})
	if len(p.Content) != 1 {
		t.Fatalf("expected placeholder content, got %+v", p.Content)
	}
	if p.ReplyTo != nil {
		t.Error("reply_to should be omitted when unset")
	}
}
