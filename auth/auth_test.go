package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"chatsync/domain"
	"chatsync/errors"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(expiresAt)}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test_secret"))
	require.NoError(t, err)
	return signed
}

func TestTokenUsable(t *testing.T) {
	now := time.Now()

	t.Run("should reject empty token", func(t *testing.T) {
		require.False(t, TokenUsable("", now))
	})

	t.Run("should accept opaque non-JWT token", func(t *testing.T) {
		require.True(t, TokenUsable("T1", now))
	})

	t.Run("should accept JWT expiring in the future", func(t *testing.T) {
		require.True(t, TokenUsable(signedToken(t, now.Add(time.Hour)), now))
	})

	t.Run("should reject expired JWT", func(t *testing.T) {
		require.False(t, TokenUsable(signedToken(t, now.Add(-time.Hour)), now))
	})
}

func TestValidateLogin(t *testing.T) {
	t.Run("should accept valid credentials", func(t *testing.T) {
		err := ValidateLogin(domain.Credentials{Email: "alice@x.com", Password: "secret-pw"})
		require.NoError(t, err)
	})

	t.Run("should reject malformed email", func(t *testing.T) {
		err := ValidateLogin(domain.Credentials{Email: "not-an-email", Password: "secret-pw"})
		require.ErrorIs(t, err, errors.ErrInvalidCredentials)
	})

	t.Run("should reject missing password", func(t *testing.T) {
		err := ValidateLogin(domain.Credentials{Email: "alice@x.com"})
		require.ErrorIs(t, err, errors.ErrInvalidCredentials)
	})

	t.Run("should ignore username for login", func(t *testing.T) {
		err := ValidateLogin(domain.Credentials{Username: "x", Email: "alice@x.com", Password: "secret-pw"})
		require.NoError(t, err)
	})
}

func TestValidateRegister(t *testing.T) {
	t.Run("should accept valid credentials", func(t *testing.T) {
		err := ValidateRegister(domain.Credentials{Username: "alice", Email: "alice@x.com", Password: "secret-pw"})
		require.NoError(t, err)
	})

	t.Run("should require a username", func(t *testing.T) {
		err := ValidateRegister(domain.Credentials{Email: "alice@x.com", Password: "secret-pw"})
		require.ErrorIs(t, err, errors.ErrInvalidCredentials)
	})

	t.Run("should reject missing password", func(t *testing.T) {
		err := ValidateRegister(domain.Credentials{Username: "alice", Email: "alice@x.com"})
		require.ErrorIs(t, err, errors.ErrInvalidCredentials)
	})
}
