package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ToFood/tofood-zip/internal/types"
)

// maxRequestBodySize caps request bodies; notification bodies carry HTML
// templates, so the limit is generous.
const maxRequestBodySize = 1 << 20

// APIErrorResponse is the envelope of every error response.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the client-visible part of an error.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON writes data with the given status. An unencodable value becomes a
// 500 envelope.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = writeRawError(w, APIErrorResponse{
			Error: ErrorDetail{
				Code:      string(types.ErrCodeInternalUnexpected),
				Message:   "failed to marshal response",
				RequestID: types.GetRequestID(r.Context()),
			},
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err as an error envelope. An *types.AppError in the chain
// supplies code, message and status; anything else is a 500 whose message
// never includes the underlying error text.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	requestID := types.GetRequestID(r.Context())

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		JSON(w, r, appErr.HTTPStatus(), APIErrorResponse{
			Error: ErrorDetail{
				Code:      string(appErr.Code),
				Message:   appErr.Message,
				Details:   appErr.Details,
				RequestID: requestID,
			},
		})
		return
	}

	JSON(w, r, http.StatusInternalServerError, APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(types.ErrCodeInternalUnexpected),
			Message:   "an unexpected error occurred",
			RequestID: requestID,
		},
	})
}

// DecodeJSON decodes exactly one JSON object from the body into dst,
// rejecting unknown fields and bodies over maxRequestBodySize. Failures are
// validation_invalid_json AppErrors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}
	if dec.More() {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON,
			"request body must contain a single JSON object", nil)
	}
	return nil
}

func mapDecodeError(err error) *types.AppError {
	var (
		maxBytesErr *http.MaxBytesError
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
		invalidJSON = types.ErrCodeValidationInvalidJSON
	)

	switch {
	case errors.As(err, &maxBytesErr):
		return types.NewAppError(invalidJSON, "request body must not exceed 1MB", err)
	case errors.As(err, &syntaxErr):
		return types.NewAppError(invalidJSON, "malformed JSON in request body", err)
	case errors.As(err, &typeErr):
		return types.NewAppError(invalidJSON, "invalid value for field", err).WithDetails(map[string]any{
			"field":    typeErr.Field,
			"expected": typeErr.Type.String(),
		})
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		return types.NewAppError(invalidJSON,
			"unknown field in request body: "+strings.TrimPrefix(err.Error(), "json: unknown field "), err)
	case errors.Is(err, io.EOF):
		return types.NewAppError(invalidJSON, "request body must not be empty", err)
	default:
		return types.NewAppError(invalidJSON, "invalid JSON in request body", err)
	}
}
