package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/google/uuid"

	"github.com/MahmoudAthamneh01/leonra/internal/user"
)

// TokenClaims represents the claims stored in a PASETO access token
type TokenClaims struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Role      user.Role `json:"role"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// PasetoIssuer mints and verifies session tokens using PASETO v4.local
// (symmetric encryption with XChaCha20-Poly1305). Access and refresh
// tokens use independent keys, so one kind never verifies as the other.
type PasetoIssuer struct {
	accessKey  paseto.V4SymmetricKey
	refreshKey paseto.V4SymmetricKey
}

func NewPasetoIssuer(accessKey, refreshKey []byte) (*PasetoIssuer, error) {
	if len(accessKey) != 32 || len(refreshKey) != 32 {
		return nil, fmt.Errorf("symmetric keys must be exactly 32 bytes, got %d and %d", len(accessKey), len(refreshKey))
	}

	ak, err := paseto.V4SymmetricKeyFromBytes(accessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token key: %w", err)
	}
	rk, err := paseto.V4SymmetricKeyFromBytes(refreshKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token key: %w", err)
	}

	return &PasetoIssuer{accessKey: ak, refreshKey: rk}, nil
}

// CreateAccessToken generates a v4.local access token carrying the user's
// id, email and role.
func (s *PasetoIssuer) CreateAccessToken(u *user.User, duration time.Duration) (string, error) {
	now := time.Now()

	token := paseto.NewToken()
	token.SetJti(uuid.NewString())
	token.SetIssuedAt(now)
	token.SetExpiration(now.Add(duration))
	token.SetString("user_id", strconv.FormatInt(u.ID, 10))
	token.SetString("email", u.Email)
	token.SetString("role", u.Role.String())

	return token.V4Encrypt(s.accessKey, nil), nil
}

// CreateRefreshToken generates a v4.local refresh token carrying only the
// user's id. It does not authorize resource access by itself.
func (s *PasetoIssuer) CreateRefreshToken(userID int64, duration time.Duration) (string, error) {
	now := time.Now()

	token := paseto.NewToken()
	token.SetJti(uuid.NewString())
	token.SetIssuedAt(now)
	token.SetExpiration(now.Add(duration))
	token.SetString("user_id", strconv.FormatInt(userID, 10))

	return token.V4Encrypt(s.refreshKey, nil), nil
}

// VerifyAccessToken validates an access token and returns its claims.
func (s *PasetoIssuer) VerifyAccessToken(tokenStr string) (*TokenClaims, error) {
	parser := paseto.NewParser()

	token, err := parser.ParseV4Local(s.accessKey, tokenStr, nil)
	if err != nil {
		// The parser checks expiration by default; distinguish expired from invalid
		if errors.Is(err, &paseto.RuleError{}) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	userIDStr, err := token.GetString("user_id")
	if err != nil {
		return nil, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	email, err := token.GetString("email")
	if err != nil {
		return nil, ErrInvalidToken
	}

	roleStr, err := token.GetString("role")
	if err != nil {
		return nil, ErrInvalidToken
	}
	role, err := user.ParseRole(roleStr)
	if err != nil {
		return nil, ErrInvalidToken
	}

	tokenID, err := token.GetJti()
	if err != nil {
		return nil, ErrInvalidToken
	}
	issuedAt, err := token.GetIssuedAt()
	if err != nil {
		return nil, ErrInvalidToken
	}
	expiresAt, err := token.GetExpiration()
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &TokenClaims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		TokenID:   tokenID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyRefreshToken validates a refresh token and returns the user id it
// was issued to. Malformed, expired and wrongly-signed tokens all fail
// with ErrInvalidToken.
func (s *PasetoIssuer) VerifyRefreshToken(tokenStr string) (int64, error) {
	parser := paseto.NewParser()

	token, err := parser.ParseV4Local(s.refreshKey, tokenStr, nil)
	if err != nil {
		return 0, ErrInvalidToken
	}

	userIDStr, err := token.GetString("user_id")
	if err != nil {
		return 0, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}

	return userID, nil
}
