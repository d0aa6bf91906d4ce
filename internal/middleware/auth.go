// Package middleware provides the HTTP middleware chain: bearer-token
// authentication, request logging, per-IP rate limiting and security headers.
package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"gemchat/internal/auth"
	"gemchat/internal/domain"
)

// UserLoader resolves an authenticated user ID to the current user record.
// Loading from the store on every request means a deleted user's token dies
// immediately and tier changes take effect without re-login.
type UserLoader interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// AuthMiddleware verifies bearer tokens and attaches the user to the request
// context.
type AuthMiddleware struct {
	tokens *auth.TokenManager
	users  UserLoader
	logger *slog.Logger
}

// NewAuthMiddleware creates an AuthMiddleware.
func NewAuthMiddleware(tokens *auth.TokenManager, users UserLoader, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		users:  users,
		logger: logger,
	}
}

// RequireAuth rejects requests without a valid bearer token. On success the
// user is available via auth.GetUser on the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := extractBearerToken(r.Header.Get("Authorization"))
		if !ok {
			unauthorized(w, "You are not logged in. Please log in to get access.")
			return
		}

		userID, _, err := m.tokens.Verify(token)
		if err != nil {
			unauthorized(w, "Invalid or expired token. Please log in again.")
			return
		}

		user, err := m.users.GetUserByID(r.Context(), userID)
		if err != nil {
			if domain.ErrorCode(err) == domain.ENOTFOUND {
				unauthorized(w, "The user belonging to this token no longer exists.")
				return
			}
			m.logger.Error("Failed to load authenticated user", "user_id", userID, "error", err)
			http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetUser(r.Context(), user)))
	})
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
