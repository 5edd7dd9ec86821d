package external

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ToFood/tofood-zip/internal/types"
)

// sendGridAPIBase is the default SendGrid API base URL.
const sendGridAPIBase = "https://api.sendgrid.com"

// SendGridClientConfig holds the configuration for creating a SendGridClient.
type SendGridClientConfig struct {
	BaseURL string // Override for testing; defaults to sendGridAPIBase
	Logger  *slog.Logger
}

// SendGridClient sends mail through the SendGrid v3 Mail Send API. The API
// key is supplied per call because each broker service config carries its
// own credentials; the breaker and retry state are shared.
type SendGridClient struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewSendGridClient creates a SendGridClient with the default retry policy.
func NewSendGridClient(httpClient *http.Client, cfg SendGridClientConfig) *SendGridClient {
	base := NewBaseClient(httpClient, "sendgrid", DefaultRetryPolicy(), "tofood-notifications/1.0")
	return NewSendGridClientWithBase(base, cfg)
}

// NewSendGridClientWithBase creates a SendGridClient with a pre-configured
// BaseClient, e.g. one with retries disabled.
func NewSendGridClientWithBase(base *BaseClient, cfg SendGridClientConfig) *SendGridClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sendGridAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SendGridClient{
		base:    base,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// Send posts input to /v3/mail/send and returns the X-Message-Id of the
// accepted message.
//
// Error mapping:
//   - 403 Forbidden -> types.ErrCodeEmailBlocked
//   - 429, 5xx -> retried by BaseClient, then rate_limited / unavailable
//   - Other 4xx -> types.ErrCodeUpstreamEmailProvider
func (s *SendGridClient) Send(ctx context.Context, apiKey types.SecretString, input types.SendInput) (string, error) {
	if apiKey.IsEmpty() {
		return "", types.NewAppError(types.ErrCodeUpstreamEmailProvider, "SendGrid API key not configured", nil)
	}

	body, err := json.Marshal(buildSendGridPayload(input))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal SendGrid mail payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create SendGrid mail send request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey.Unmask())

	start := time.Now()
	resp, err := s.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		msgID := resp.Header.Get("X-Message-Id")
		s.logger.DebugContext(ctx, "sendgrid accepted message",
			"provider_message_id", msgID,
			"reference_id", input.ReferenceID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return msgID, nil
	}
	return "", handleSendGridError(resp)
}

type sendGridMailPayload struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	ReplyTo          *sendGridAddress          `json:"reply_to,omitempty"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
	Attachments      []sendGridAttachment      `json:"attachments,omitempty"`
	CustomArgs       map[string]string         `json:"custom_args,omitempty"`
}

type sendGridPersonalization struct {
	To  []sendGridAddress `json:"to"`
	Bcc []sendGridAddress `json:"bcc,omitempty"`
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridAttachment struct {
	Content  string `json:"content"`
	Type     string `json:"type,omitempty"`
	Filename string `json:"filename"`
}

// buildSendGridPayload maps input to the v3 payload. SendGrid requires
// text/plain before text/html in the content array and rejects a bcc that
// repeats a to address, so duplicates are dropped here.
func buildSendGridPayload(input types.SendInput) sendGridMailPayload {
	seen := make(map[string]bool, len(input.To))
	p := sendGridPersonalization{}
	for _, to := range input.To {
		seen[strings.ToLower(to)] = true
		p.To = append(p.To, sendGridAddress{Email: to})
	}
	for _, bcc := range input.Bcc {
		key := strings.ToLower(bcc)
		if seen[key] {
			continue
		}
		seen[key] = true
		p.Bcc = append(p.Bcc, sendGridAddress{Email: bcc})
	}

	payload := sendGridMailPayload{
		Personalizations: []sendGridPersonalization{p},
		From:             sendGridAddress{Email: input.From.Address, Name: input.From.Name},
		Subject:          input.Subject,
	}
	if input.ReplyTo != "" {
		payload.ReplyTo = &sendGridAddress{Email: input.ReplyTo}
	}
	if input.BodyText != "" {
		payload.Content = append(payload.Content, sendGridContent{Type: "text/plain", Value: input.BodyText})
	}
	if input.BodyHTML != "" {
		payload.Content = append(payload.Content, sendGridContent{Type: "text/html", Value: input.BodyHTML})
	}
	if len(payload.Content) == 0 {
		// SendGrid rejects an empty content array.
		payload.Content = []sendGridContent{{Type: "text/plain", Value: " "}}
	}
	for _, a := range input.Attachments {
		payload.Attachments = append(payload.Attachments, sendGridAttachment{
			Content:  base64.StdEncoding.EncodeToString(a.Content),
			Type:     a.ContentType,
			Filename: a.Name,
		})
	}
	if input.ReferenceID != "" {
		payload.CustomArgs = map[string]string{"reference_id": input.ReferenceID}
	}
	return payload
}

type sendGridErrorResponse struct {
	Errors []struct {
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"errors"`
}

// handleSendGridError reads a non-202 response and maps it to an AppError.
func handleSendGridError(resp *http.Response) error {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if readErr != nil {
		return types.NewAppError(types.ErrCodeUpstreamEmailProvider,
			fmt.Sprintf("SendGrid returned status %d and response body was unreadable", resp.StatusCode), readErr)
	}

	msg := strings.TrimSpace(string(body))
	var sgErr sendGridErrorResponse
	if json.Unmarshal(body, &sgErr) == nil && len(sgErr.Errors) > 0 {
		msg = sgErr.Errors[0].Message
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return types.NewAppError(types.ErrCodeEmailBlocked, "SendGrid blocked delivery: "+msg, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "SendGrid rate limit exceeded", nil)
	case resp.StatusCode >= 500:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "SendGrid server error: "+msg, nil)
	default:
		return types.NewAppError(types.ErrCodeUpstreamEmailProvider,
			fmt.Sprintf("SendGrid error (%d): %s", resp.StatusCode, msg), nil)
	}
}
