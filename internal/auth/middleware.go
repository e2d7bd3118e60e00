package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/MahmoudAthamneh01/leonra/internal/httputil"
	"github.com/MahmoudAthamneh01/leonra/internal/user"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const identityContextKey ContextKey = "identity"

// Identity is the decoded caller attached to the request context by the
// authorization gate.
type Identity struct {
	UserID int64
	Email  string
	Role   user.Role
}

// Middleware is the authorization gate for protected routes. It holds no
// mutable state and is safe on every request.
type Middleware struct {
	verifier AccessTokenVerifier
}

func NewMiddleware(verifier AccessTokenVerifier) *Middleware {
	return &Middleware{verifier: verifier}
}

// RequireAuth validates the bearer access token and attaches the caller's
// identity to the request context. Malformed, wrongly-signed and expired
// tokens all produce the same 401 so callers get no signature-validity
// oracle.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.RespondErrorWithCode(w, "invalid authorization header format", httputil.CodeInvalidAuthHeader, http.StatusUnauthorized)
			return
		}

		claims, err := m.verifier.VerifyAccessToken(parts[1])
		if err != nil {
			httputil.RespondErrorWithCode(w, "invalid or expired token", httputil.CodeInvalidToken, http.StatusUnauthorized)
			return
		}

		identity := Identity{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows only callers whose role is in the given set. It must
// run after RequireAuth.
func (m *Middleware) RequireRole(roles ...user.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := GetIdentityFromContext(r.Context())
			if !ok {
				httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
				return
			}

			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			httputil.RespondErrorWithCode(w, "forbidden", httputil.CodeForbidden, http.StatusForbidden)
		})
	}
}

// GetIdentityFromContext extracts the caller identity from the request context
func GetIdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	return identity, ok
}
