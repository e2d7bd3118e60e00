package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/MahmoudAthamneh01/leonra/internal/logging"
	"github.com/MahmoudAthamneh01/leonra/internal/user"
)

const minPasswordLength = 6

// TokenTTLs bundles the lifetimes of the four token kinds.
type TokenTTLs struct {
	Access       time.Duration // 7 days
	Refresh      time.Duration // 30 days
	Verification time.Duration // 24 hours
	Reset        time.Duration // 1 hour
}

// RegisterParams is the input to Register. Role defaults to buyer when
// empty; anything outside the role enumeration is rejected.
type RegisterParams struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Role     string
}

// AuthTokens is the login result. Field names match the API surface the
// marketplace clients consume.
type AuthTokens struct {
	AccessToken  string     `json:"token"`
	RefreshToken string     `json:"refreshToken"`
	User         *user.User `json:"user"`
}

// Service orchestrates registration, login, email verification, password
// reset and token refresh. All collaborators are injected so tests can
// substitute in-memory fakes.
type Service struct {
	users              UserStore
	verificationTokens TokenStore
	resetTokens        TokenStore
	issuer             *PasetoIssuer
	hasher             *PasswordHasher
	mailer             Mailer
	logger             *logging.Logger
	ttls               TokenTTLs
}

func NewService(
	users UserStore,
	verificationTokens TokenStore,
	resetTokens TokenStore,
	issuer *PasetoIssuer,
	hasher *PasswordHasher,
	mailer Mailer,
	logger *logging.Logger,
	ttls TokenTTLs,
) *Service {
	return &Service{
		users:              users,
		verificationTokens: verificationTokens,
		resetTokens:        resetTokens,
		issuer:             issuer,
		hasher:             hasher,
		mailer:             mailer,
		logger:             logger,
		ttls:               ttls,
	}
}

// Register creates a new unverified account, stores a 24h verification
// token and dispatches the verification email best-effort.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*user.User, error) {
	if params.Email == "" {
		return nil, ErrEmailRequired
	}
	if len(params.Email) > 254 {
		return nil, ErrInvalidEmailFormat
	}
	if _, err := mail.ParseAddress(params.Email); err != nil {
		return nil, ErrInvalidEmailFormat
	}
	if params.Password == "" {
		return nil, ErrPasswordRequired
	}
	if len(params.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if params.Name == "" {
		return nil, ErrNameRequired
	}

	role := user.RoleBuyer
	if params.Role != "" {
		parsed, err := user.ParseRole(params.Role)
		if err != nil {
			return nil, ErrInvalidRole
		}
		role = parsed
	}

	passwordHash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser, err := s.users.Create(ctx, user.CreateParams{
		Email:        params.Email,
		Name:         params.Name,
		Phone:        params.Phone,
		PasswordHash: passwordHash,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, user.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	verificationToken, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	expiresAt := time.Now().Add(s.ttls.Verification)
	if err := s.verificationTokens.Store(ctx, verificationToken, newUser.ID, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store verification token: %w", err)
	}

	// Send the verification email in a goroutine so a slow or failing
	// mailer never blocks or fails registration. A fresh context avoids
	// cancellation when the request finishes.
	go func() {
		emailCtx := context.Background()
		if err := s.mailer.SendVerificationEmail(emailCtx, newUser.Email, newUser.Name, verificationToken); err != nil {
			s.logger.Warn("failed to send verification email", "email", newUser.Email, "error", err)
		}
	}()

	return newUser, nil
}

// Login authenticates a user and returns access + refresh tokens. A
// missing account and a wrong password yield the same error so callers
// cannot probe which emails are registered.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthTokens, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !s.hasher.Verify(existing.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	// Deliberately distinct from ErrInvalidCredentials: an unverified
	// account needs an actionable message, not a dead end.
	if !existing.IsVerified {
		return nil, ErrAccountNotVerified
	}

	accessToken, err := s.issuer.CreateAccessToken(existing, s.ttls.Access)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := s.issuer.CreateRefreshToken(existing.ID, s.ttls.Refresh)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	return &AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         existing,
	}, nil
}

// VerifyEmail consumes a verification token: the user is marked verified
// first, then the token is deleted. If the delete is lost, a retried
// attempt finds no token and fails cleanly instead of re-verifying.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	stored, err := s.verificationTokens.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("failed to get verification token: %w", err)
	}

	if stored.Expired() {
		s.logger.Warn("verification token expired", "user_id", stored.UserID, "expired_at", stored.ExpiresAt)
		return ErrTokenExpired
	}

	if err := s.users.MarkVerified(ctx, stored.UserID); err != nil {
		return fmt.Errorf("failed to mark user as verified: %w", err)
	}

	if err := s.verificationTokens.Delete(ctx, token); err != nil {
		s.logger.Warn("failed to delete verification token", "user_id", stored.UserID, "error", err)
	}

	return nil
}

// RequestPasswordReset stores a 1h reset token and dispatches the reset
// email. Always returns nil so responses never reveal whether an email is
// registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			s.logger.Warn("failed to get user for password reset", "error", err)
		}
		return nil
	}

	token, err := generateRandomToken()
	if err != nil {
		s.logger.Warn("failed to generate password reset token", "error", err)
		return nil
	}

	expiresAt := time.Now().Add(s.ttls.Reset)
	if err := s.resetTokens.Store(ctx, token, existing.ID, expiresAt); err != nil {
		s.logger.Warn("failed to store password reset token", "error", err)
		return nil
	}

	go func() {
		emailCtx := context.Background()
		if err := s.mailer.SendPasswordResetEmail(emailCtx, existing.Email, existing.Name, token); err != nil {
			s.logger.Warn("failed to send password reset email", "email", existing.Email, "error", err)
		}
	}()

	return nil
}

// ResetPassword consumes a reset token and replaces the user's password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return ErrPasswordRequired
	}
	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}

	stored, err := s.resetTokens.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("failed to get password reset token: %w", err)
	}

	if stored.Expired() {
		s.logger.Warn("password reset token expired", "user_id", stored.UserID, "expired_at", stored.ExpiresAt)
		return ErrTokenExpired
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, stored.UserID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.resetTokens.Delete(ctx, token); err != nil {
		s.logger.Warn("failed to delete password reset token", "user_id", stored.UserID, "error", err)
	}

	return nil
}

// RefreshAccessToken mints a new access token from a refresh token. The
// user is re-fetched so un-verifying an account invalidates future
// refreshes; access tokens already in the wild stay valid until their own
// expiry.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	userID, err := s.issuer.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", ErrInvalidToken
	}

	existing, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	if !existing.IsVerified {
		return "", ErrInvalidToken
	}

	accessToken, err := s.issuer.CreateAccessToken(existing, s.ttls.Access)
	if err != nil {
		return "", fmt.Errorf("failed to create access token: %w", err)
	}

	return accessToken, nil
}

// generateRandomToken creates a cryptographically secure random token
func generateRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
