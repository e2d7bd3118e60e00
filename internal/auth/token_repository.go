package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoredToken is a single-use token record bound to a user.
type StoredToken struct {
	UserID    int64
	ExpiresAt time.Time
}

// Expired reports whether the token's expiry has passed. The stored
// expires_at is authoritative; the Redis TTL only cleans up afterwards.
func (t *StoredToken) Expired() bool {
	return time.Now().After(t.ExpiresAt)
}

// TokenRepository stores single-use tokens in Redis, keyed by the SHA-256
// of the opaque token value so a Redis dump never yields usable tokens.
type TokenRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewVerificationTokenRepository returns the store for email-verification
// tokens.
func NewVerificationTokenRepository(client *redis.Client) *TokenRepository {
	return &TokenRepository{client: client, keyPrefix: "email_verification"}
}

// NewPasswordResetTokenRepository returns the store for password-reset
// tokens.
func NewPasswordResetTokenRepository(client *redis.Client) *TokenRepository {
	return &TokenRepository{client: client, keyPrefix: "password_reset"}
}

// Store persists a token with its owner and expiry. The Redis TTL matches
// the expiry so stale records are eventually erased without a cron job.
func (r *TokenRepository) Store(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	key := r.key(token)

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("token expiration time is in the past")
	}

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"user_id":    userID,
		"expires_at": expiresAt.Unix(),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	return nil
}

// Get retrieves a token record by its value. Returns ErrTokenNotFound for
// absent tokens; expiry is the caller's check so expired-but-present
// tokens stay distinguishable.
func (r *TokenRepository) Get(ctx context.Context, token string) (*StoredToken, error) {
	data, err := r.client.HGetAll(ctx, r.key(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrTokenNotFound
	}

	userID, err := strconv.ParseInt(data["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token user id: %w", err)
	}

	expiresAtUnix, err := strconv.ParseInt(data["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token expiry: %w", err)
	}

	return &StoredToken{
		UserID:    userID,
		ExpiresAt: time.Unix(expiresAtUnix, 0),
	}, nil
}

// Delete removes a consumed token.
func (r *TokenRepository) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, r.key(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

func (r *TokenRepository) key(token string) string {
	return fmt.Sprintf("%s:%s", r.keyPrefix, hashToken(token))
}

// hashToken returns the hex SHA-256 of a token value.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
