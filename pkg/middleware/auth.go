package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/verdantlabs/verdant/pkg/errors"
	"github.com/verdantlabs/verdant/pkg/httputil"
)

type contextKeyType string

const principalKey contextKeyType = "principal"

// Principal is the authenticated identity resolved from a bearer access token.
type Principal struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// Authenticator resolves a bearer access token into a Principal. The service
// layer injects its own resolution logic, including the staleness checks
// against the live user record. Errors returned by the authenticator carry
// the user-visible rejection reason.
type Authenticator func(ctx context.Context, token string) (*Principal, error)

// Auth validates the Authorization header and injects the resolved principal
// into the request context. Each distinct verification failure surfaces its
// own detail message so clients can tell an expired session from a tampered
// or malformed token.
func Auth(authenticate Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err != nil {
				httputil.WriteDetail(w, http.StatusUnauthorized, err.Error())
				return
			}

			principal, err := authenticate(r.Context(), token)
			if err != nil {
				status := apperrors.HTTPStatus(err)
				message := "invalid or expired token"
				var appErr *apperrors.AppError
				if errors.As(err, &appErr) {
					message = appErr.Message
				}
				httputil.WriteDetail(w, status, message)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// BearerToken extracts the raw token from an `Authorization: Bearer <token>`
// header.
func BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("invalid authorization header format")
	}

	return parts[1], nil
}

// RequireRole checks that the authenticated principal has one of the given roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				httputil.WriteDetail(w, http.StatusUnauthorized, "user not authenticated")
				return
			}
			if _, ok := roleSet[p.Role]; !ok {
				httputil.WriteDetail(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal returns a new context carrying the given principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the authenticated principal from the request
// context, or nil if the Auth middleware has not run.
func PrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalKey).(*Principal); ok {
		return p
	}
	return nil
}

// UserIDFromContext extracts the authenticated user's ID, or 0.
func UserIDFromContext(ctx context.Context) int64 {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.UserID
	}
	return 0
}
