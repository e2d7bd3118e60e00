package auth

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MahmoudAthamneh01/leonra/internal/logging"
	"github.com/MahmoudAthamneh01/leonra/internal/user"
)

type serviceFixture struct {
	service            *Service
	users              *fakeUserStore
	verificationTokens *fakeTokenStore
	resetTokens        *fakeTokenStore
	mailer             *fakeMailer
	issuer             *PasetoIssuer
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	issuer, err := NewPasetoIssuer(
		bytes.Repeat([]byte{'a'}, 32),
		bytes.Repeat([]byte{'b'}, 32),
	)
	require.NoError(t, err)

	users := newFakeUserStore()
	verificationTokens := newFakeTokenStore()
	resetTokens := newFakeTokenStore()
	mailer := &fakeMailer{}

	service := NewService(
		users,
		verificationTokens,
		resetTokens,
		issuer,
		NewPasswordHasher(bcrypt.MinCost), // low cost keeps tests fast
		mailer,
		logging.NewLogger(true),
		TokenTTLs{
			Access:       7 * 24 * time.Hour,
			Refresh:      30 * 24 * time.Hour,
			Verification: 24 * time.Hour,
			Reset:        1 * time.Hour,
		},
	)

	return &serviceFixture{
		service:            service,
		users:              users,
		verificationTokens: verificationTokens,
		resetTokens:        resetTokens,
		mailer:             mailer,
		issuer:             issuer,
	}
}

func (f *serviceFixture) register(t *testing.T, email, password, role, name string) *user.User {
	t.Helper()
	u, err := f.service.Register(context.Background(), RegisterParams{
		Email:    email,
		Password: password,
		Name:     name,
		Role:     role,
	})
	require.NoError(t, err)
	return u
}

func TestRegisterLoginVerifyFlow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created := f.register(t, "a@x.com", "secret1", "buyer", "Aisha")
	assert.Positive(t, created.ID)
	assert.Equal(t, "a@x.com", created.Email)
	assert.Equal(t, user.RoleBuyer, created.Role)
	assert.False(t, created.IsVerified)
	assert.Equal(t, 1, f.verificationTokens.count())

	// Login before verification is blocked with a distinct, actionable error
	_, err := f.service.Login(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, ErrAccountNotVerified)

	token := f.verificationTokens.only()
	require.NotEmpty(t, token)
	require.NoError(t, f.service.VerifyEmail(ctx, token))

	tokens, err := f.service.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	require.NotNil(t, tokens.User)
	assert.True(t, tokens.User.IsVerified)

	claims, err := f.issuer.VerifyAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.UserID)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, user.RoleBuyer, claims.Role)
}

func TestRegisterSendsVerificationEmail(t *testing.T) {
	f := newServiceFixture(t)

	f.register(t, "mail@x.com", "secret1", "tajira", "Huda")

	assert.Eventually(t, func() bool {
		return f.mailer.sentVerifications() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRegisterDuplicateEmailCaseInsensitive(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.register(t, "dup@x.com", "secret1", "buyer", "First")

	_, err := f.service.Register(ctx, RegisterParams{
		Email:    "DUP@X.com",
		Password: "secret2",
		Name:     "Second",
		Role:     "buyer",
	})
	assert.ErrorIs(t, err, user.ErrDuplicateEmail)

	// No second account and no second token were created
	assert.Equal(t, 1, f.users.count())
	assert.Equal(t, 1, f.verificationTokens.count())
}

func TestRegisterValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		params  RegisterParams
		wantErr error
	}{
		{"missing email", RegisterParams{Password: "secret1", Name: "A"}, ErrEmailRequired},
		{"bad email", RegisterParams{Email: "not-an-email", Password: "secret1", Name: "A"}, ErrInvalidEmailFormat},
		{"missing password", RegisterParams{Email: "v@x.com", Name: "A"}, ErrPasswordRequired},
		{"short password", RegisterParams{Email: "v@x.com", Password: "12345", Name: "A"}, ErrPasswordTooShort},
		{"missing name", RegisterParams{Email: "v@x.com", Password: "secret1"}, ErrNameRequired},
		{"invalid role", RegisterParams{Email: "v@x.com", Password: "secret1", Name: "A", Role: "superuser"}, ErrInvalidRole},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.Register(ctx, tc.params)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	// Nothing was persisted by any of the rejected attempts
	assert.Equal(t, 0, f.users.count())
	assert.Equal(t, 0, f.verificationTokens.count())
}

func TestRegisterDefaultsToBuyerRole(t *testing.T) {
	f := newServiceFixture(t)

	u := f.register(t, "norole@x.com", "secret1", "", "NoRole")
	assert.Equal(t, user.RoleBuyer, u.Role)
}

func TestLoginInvalidCredentialsIndistinguishable(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.register(t, "known@x.com", "secret1", "buyer", "Known")
	token := f.verificationTokens.only()
	require.NoError(t, f.service.VerifyEmail(ctx, token))

	_, wrongPassword := f.service.Login(ctx, "known@x.com", "wrong-password")
	_, noSuchUser := f.service.Login(ctx, "missing@x.com", "whatever")

	// Same error value for both, so callers cannot probe registered emails
	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, noSuchUser, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword, noSuchUser)
}

func TestVerifyEmailSingleUse(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.register(t, "once@x.com", "secret1", "model", "Mona")
	token := f.verificationTokens.only()

	require.NoError(t, f.service.VerifyEmail(ctx, token))

	// The token was consumed; replaying it fails cleanly
	err := f.service.VerifyEmail(ctx, token)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	u, err := f.users.GetByEmail(ctx, "once@x.com")
	require.NoError(t, err)
	assert.True(t, u.IsVerified)
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created := f.register(t, "late@x.com", "secret1", "buyer", "Late")

	expired := "expired-verification-token"
	require.NoError(t, f.verificationTokens.Store(ctx, expired, created.ID, time.Now().Add(-time.Minute)))

	err := f.service.VerifyEmail(ctx, expired)
	assert.ErrorIs(t, err, ErrTokenExpired)

	u, err := f.users.GetByEmail(ctx, "late@x.com")
	require.NoError(t, err)
	assert.False(t, u.IsVerified)
}

func TestVerifyEmailUnknownToken(t *testing.T) {
	f := newServiceFixture(t)

	err := f.service.VerifyEmail(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestForgotPasswordNeverRevealsAccountExistence(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.register(t, "real@x.com", "secret1", "buyer", "Real")

	assert.NoError(t, f.service.RequestPasswordReset(ctx, "real@x.com"))
	assert.NoError(t, f.service.RequestPasswordReset(ctx, "ghost@x.com"))

	// Only the real account got a token
	assert.Equal(t, 1, f.resetTokens.count())

	assert.Eventually(t, func() bool {
		return f.mailer.sentResets() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestResetPasswordFlow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.register(t, "reset@x.com", "oldpassword", "buyer", "Reem")
	require.NoError(t, f.service.VerifyEmail(ctx, f.verificationTokens.only()))

	require.NoError(t, f.service.RequestPasswordReset(ctx, "reset@x.com"))
	token := f.resetTokens.only()
	require.NotEmpty(t, token)

	require.NoError(t, f.service.ResetPassword(ctx, token, "newpassword"))

	_, err := f.service.Login(ctx, "reset@x.com", "oldpassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.service.Login(ctx, "reset@x.com", "newpassword")
	assert.NoError(t, err)

	// Single-use: the token is gone
	err = f.service.ResetPassword(ctx, token, "anotherpassword")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestResetPasswordExpiredTokenKeepsHash(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created := f.register(t, "stale@x.com", "original1", "buyer", "Stale")

	before, err := f.users.GetByEmail(ctx, "stale@x.com")
	require.NoError(t, err)

	expired := "expired-reset-token"
	require.NoError(t, f.resetTokens.Store(ctx, expired, created.ID, time.Now().Add(-2*time.Hour)))

	err = f.service.ResetPassword(ctx, expired, "newpassword")
	assert.ErrorIs(t, err, ErrTokenExpired)

	after, err := f.users.GetByEmail(ctx, "stale@x.com")
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
}

func TestResetPasswordTooShort(t *testing.T) {
	f := newServiceFixture(t)

	err := f.service.ResetPassword(context.Background(), "any-token", "12345")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestRefreshAccessToken(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created := f.register(t, "refresh@x.com", "secret1", "tajira", "Tala")
	require.NoError(t, f.service.VerifyEmail(ctx, f.verificationTokens.only()))

	tokens, err := f.service.Login(ctx, "refresh@x.com", "secret1")
	require.NoError(t, err)

	accessToken, err := f.service.RefreshAccessToken(ctx, tokens.RefreshToken)
	require.NoError(t, err)

	claims, err := f.issuer.VerifyAccessToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.UserID)
	assert.Equal(t, user.RoleTajira, claims.Role)
}

func TestRefreshRejectsGarbageAndAccessTokens(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.register(t, "mix@x.com", "secret1", "buyer", "Mix")
	require.NoError(t, f.service.VerifyEmail(ctx, f.verificationTokens.only()))

	tokens, err := f.service.Login(ctx, "mix@x.com", "secret1")
	require.NoError(t, err)

	_, err = f.service.RefreshAccessToken(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// An access token is signed with the other key and must not refresh
	_, err = f.service.RefreshAccessToken(ctx, tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshFailsAfterVerificationRevoked(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.register(t, "revoke@x.com", "secret1", "buyer", "Rania")
	require.NoError(t, f.service.VerifyEmail(ctx, f.verificationTokens.only()))

	tokens, err := f.service.Login(ctx, "revoke@x.com", "secret1")
	require.NoError(t, err)

	f.users.setVerified("revoke@x.com", false)

	// Refresh consults live user state and fails
	_, err = f.service.RefreshAccessToken(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// The already-issued access token stays valid until its own expiry;
	// the asymmetry is an accepted trade-off of self-contained tokens
	_, err = f.issuer.VerifyAccessToken(tokens.AccessToken)
	assert.NoError(t, err)
}
