// FilePath: api/middleware/api.middleware.auth.go
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/prajukk/backed-traffic/internal/errors"
	"github.com/prajukk/backed-traffic/internal/models"
)

// AuthConfig carries the token-signing secret for bearer-token verification.
type AuthConfig struct {
	JWTSecret string
}

// AuthMiddleware validates dashboard bearer tokens and attaches the caller's
// identity to the request context. Token issuance happens elsewhere; this
// side only verifies HMAC signatures with the shared signing secret.
type AuthMiddleware struct {
	secret []byte
}

// UserContext is the authenticated caller attached to a request/connection.
type UserContext struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type contextKey string

const userContextKey contextKey = "user"

func NewAuthMiddleware(config AuthConfig) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(config.JWTSecret)}
}

// VerifyToken parses and validates a bearer token, returning the caller
// identity. Shared by the HTTP middleware and the live-channel authenticate
// event.
func (a *AuthMiddleware) VerifyToken(tokenString string) (*UserContext, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.NewAuthError("invalid token", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.NewAuthError("invalid token claims", nil)
	}

	user := &UserContext{}
	if sub, ok := claims["sub"].(string); ok {
		user.ID = sub
	}
	if name, ok := claims["username"].(string); ok {
		user.Username = name
	}
	if role, ok := claims["role"].(string); ok {
		user.Role = role
	}
	if !validRole(user.Role) {
		return nil, errors.NewAuthError("token carries no known role", nil)
	}
	return user, nil
}

// Authenticate validates the token and adds user info to context
func (a *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			handleError(w, errors.NewAuthError("no token provided", nil))
			return
		}

		user, err := a.VerifyToken(token)
		if err != nil {
			handleError(w, errors.AsAPIError(err))
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles middleware ensures the caller has one of the given roles.
func (a *AuthMiddleware) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok {
				handleError(w, errors.NewAuthError("no user context found", nil))
				return
			}

			if !HasAnyRole(user.Role, roles) {
				handleError(w, errors.NewAuthorizationError("insufficient permissions", nil))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetUser retrieves the authenticated caller from a request context.
func GetUser(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// GetUserRoles returns the caller's roles for field-level write checks,
// defaulting to viewer when no identity is attached.
func GetUserRoles(ctx context.Context) []string {
	if user, ok := GetUser(ctx); ok {
		return []string{user.Role}
	}
	return []string{models.RoleViewer}
}

// HasAnyRole reports whether role is one of the required roles.
func HasAnyRole(role string, required []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if r == "*" || r == role {
			return true
		}
	}
	return false
}

// Helper functions

func validRole(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleOperator, models.RoleViewer:
		return true
	}
	return false
}

func extractToken(r *http.Request) string {
	bearerToken := r.Header.Get("Authorization")
	parts := strings.Split(bearerToken, " ")
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

func handleError(w http.ResponseWriter, err error) {
	apiErr := errors.AsAPIError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Code)
	_ = json.NewEncoder(w).Encode(apiErr)
}
