package core

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ToFood/tofood-zip/internal/types"
)

// TokenHashAuthenticator accepts the single bearer token whose bcrypt hash
// it was built with.
type TokenHashAuthenticator struct {
	hash []byte
}

// NewTokenHashAuthenticator validates the hash format up front so a
// mistyped API_TOKEN_HASH fails at startup instead of on every request.
func NewTokenHashAuthenticator(hash string) (*TokenHashAuthenticator, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, err
	}
	return &TokenHashAuthenticator{hash: []byte(hash)}, nil
}

// Authenticate compares token against the stored hash.
func (a *TokenHashAuthenticator) Authenticate(_ context.Context, token string) error {
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(token)); err != nil {
		return types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid authentication token", err)
	}
	return nil
}

// AuthMiddleware rejects /v1 requests without a valid bearer token.
//
//   - auth_token_missing: no Authorization header or an empty Bearer token.
//   - auth_token_invalid: the Authenticator rejected the token.
//
// A nil Authenticator passes every request through.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Authenticator == nil {
			next.ServeHTTP(w, r)
			return
		}

		token := extractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "bearer token is required")
			return
		}

		if err := s.Authenticator.Authenticate(r.Context(), token); err != nil {
			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				s.Logger.ErrorContext(r.Context(), "authentication failed: unexpected error",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
			} else {
				s.Logger.WarnContext(r.Context(), "authentication failed",
					slog.String("path", r.URL.Path),
					slog.String("error_code", string(appErr.Code)),
				)
			}
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "invalid authentication token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractBearerToken returns the token of a "Bearer <token>" header; the
// scheme is matched case-insensitively.
func extractBearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	JSON(w, r, http.StatusUnauthorized, APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(code),
			Message:   message,
			RequestID: types.GetRequestID(r.Context()),
		},
	})
}
