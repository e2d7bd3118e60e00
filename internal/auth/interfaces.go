package auth

import (
	"context"
	"time"

	"github.com/MahmoudAthamneh01/leonra/internal/user"
)

// UserStore is the credential-store contract consumed by the service.
// The production implementation is user.Repository (Postgres via bun);
// tests substitute an in-memory fake.
type UserStore interface {
	Create(ctx context.Context, params user.CreateParams) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id int64) (*user.User, error)
	MarkVerified(ctx context.Context, userID int64) error
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

// TokenStore persists short-lived single-use tokens keyed by their opaque
// value. Used for both email-verification and password-reset tokens.
type TokenStore interface {
	Store(ctx context.Context, token string, userID int64, expiresAt time.Time) error
	Get(ctx context.Context, token string) (*StoredToken, error)
	Delete(ctx context.Context, token string) error
}

// AccessTokenVerifier is the part of the token issuer the authorization
// gate needs. Verification is pure and performs no I/O.
type AccessTokenVerifier interface {
	VerifyAccessToken(tokenStr string) (*TokenClaims, error)
}

// Mailer dispatches account emails. Sends are best-effort: a failure is
// logged and never fails the operation that triggered it.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, toEmail, name, token string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, name, token string) error
}

// RateLimiter guards abuse-prone endpoints.
type RateLimiter interface {
	CheckIPRateLimit(ctx context.Context, ip, purpose string) (bool, error)
	RecordIPRequest(ctx context.Context, ip, purpose string) error
	CheckEmailCooldown(ctx context.Context, email string) (bool, error)
	SetEmailCooldown(ctx context.Context, email string) error
}
