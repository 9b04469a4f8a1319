// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// UserIDKey is the context key for user ID
	UserIDKey ContextKey = "user_id"
	// TokenKey is the context key for the auth token
	TokenKey ContextKey = "token"
)

// Middleware provides echo middleware for authentication
type Middleware struct {
	tokenManager *TokenManager
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(tokenManager *TokenManager) *Middleware {
	return &Middleware{
		tokenManager: tokenManager,
	}
}

// RequireAuth rejects requests without a valid bearer token and stores the
// user ID on the request context
func (m *Middleware) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractToken(c.Request())
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}

			authToken, err := m.tokenManager.ValidateToken(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			setUser(c, authToken.UserID, token)
			return next(c)
		}
	}
}

// OptionalAuth extracts auth if present, but doesn't require it
func (m *Middleware) OptionalAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token := extractToken(c.Request()); token != "" {
				if authToken, err := m.tokenManager.ValidateToken(token); err == nil {
					setUser(c, authToken.UserID, token)
				}
			}
			return next(c)
		}
	}
}

// FixedUser authenticates every request as userID. Used when the server is
// bound to a single local user.
func FixedUser(userID uint) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			setUser(c, userID, "")
			return next(c)
		}
	}
}

func setUser(c echo.Context, userID uint, token string) {
	ctx := context.WithValue(c.Request().Context(), UserIDKey, userID)
	if token != "" {
		ctx = context.WithValue(ctx, TokenKey, token)
	}
	c.SetRequest(c.Request().WithContext(ctx))
	c.Set(string(UserIDKey), userID)
}

// extractToken extracts the bearer token from the Authorization header
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return strings.TrimSpace(parts[1])
		}
	}

	// Check query parameter as fallback
	return r.URL.Query().Get("access_token")
}

// UserIDFromEcho returns the authenticated user of an echo request
func UserIDFromEcho(c echo.Context) (uint, bool) {
	return GetUserIDFromContext(c.Request().Context())
}

// GetUserIDFromContext extracts the user ID from request context
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok
}

// GetTokenFromContext extracts the token from request context
func GetTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// WithUserID adds a user ID to a context
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
