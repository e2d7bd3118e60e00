package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MahmoudAthamneh01/leonra/internal/user"
)

// fakeUserStore is an in-memory UserStore. Emails are stored lower-cased,
// matching the Postgres repository's behavior.
type fakeUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*user.User // keyed by lower-cased email
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{nextID: 1, users: make(map[string]*user.User)}
}

func (s *fakeUserStore) Create(ctx context.Context, params user.CreateParams) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(params.Email))
	if _, exists := s.users[email]; exists {
		return nil, user.ErrDuplicateEmail
	}

	u := &user.User{
		ID:           s.nextID,
		Email:        email,
		Name:         params.Name,
		Phone:        params.Phone,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		IsVerified:   false,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	s.nextID++
	s.users[email] = u

	copied := *u
	return &copied, nil
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, user.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *fakeUserStore) GetByID(ctx context.Context, id int64) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *fakeUserStore) MarkVerified(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID == userID {
			u.IsVerified = true
			return nil
		}
	}
	return user.ErrNotFound
}

func (s *fakeUserStore) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID == userID {
			u.PasswordHash = passwordHash
			return nil
		}
	}
	return user.ErrNotFound
}

// setVerified flips verification state directly, simulating out-of-band
// revocation.
func (s *fakeUserStore) setVerified(email string, verified bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[strings.ToLower(email)]; ok {
		u.IsVerified = verified
	}
}

func (s *fakeUserStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// fakeTokenStore is an in-memory TokenStore. Unlike the Redis
// implementation it never erases expired records, so tests can construct
// the expired-but-present case deterministically.
type fakeTokenStore struct {
	mu     sync.Mutex
	tokens map[string]StoredToken
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: make(map[string]StoredToken)}
}

func (s *fakeTokenStore) Store(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = StoredToken{UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (s *fakeTokenStore) Get(ctx context.Context, token string) (*StoredToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tokens[token]
	if !ok {
		return nil, ErrTokenNotFound
	}
	copied := st
	return &copied, nil
}

func (s *fakeTokenStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

func (s *fakeTokenStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// only returns the single stored token value; empty when count != 1.
func (s *fakeTokenStore) only() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tokens) != 1 {
		return ""
	}
	for token := range s.tokens {
		return token
	}
	return ""
}

// fakeMailer records sends. The service dispatches mail from goroutines,
// so assertions should poll sent counts.
type fakeMailer struct {
	mu            sync.Mutex
	verifications int
	resets        int
}

func (m *fakeMailer) SendVerificationEmail(ctx context.Context, toEmail, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications++
	return nil
}

func (m *fakeMailer) SendPasswordResetEmail(ctx context.Context, toEmail, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	return nil
}

func (m *fakeMailer) sentVerifications() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifications
}

func (m *fakeMailer) sentResets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// fakeLimiter never limits.
type fakeLimiter struct{}

func (fakeLimiter) CheckIPRateLimit(ctx context.Context, ip, purpose string) (bool, error) {
	return false, nil
}
func (fakeLimiter) RecordIPRequest(ctx context.Context, ip, purpose string) error { return nil }
func (fakeLimiter) CheckEmailCooldown(ctx context.Context, email string) (bool, error) {
	return false, nil
}
func (fakeLimiter) SetEmailCooldown(ctx context.Context, email string) error { return nil }
