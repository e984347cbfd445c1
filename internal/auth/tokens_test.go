package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newService(t *testing.T) *TokenService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	s, err := NewTokenService(testSecret, time.Hour, "admin", string(hash), nil)
	require.NoError(t, err)
	return s
}

func TestLogin(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	tok, err := s.Login(ctx, "admin", "hunter22")
	require.NoError(t, err)

	claims, err := s.Validate(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.UserID)
	assert.Equal(t, RoleAdmin, claims.Role)

	_, err = s.Login(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Login(ctx, "root", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateRejectsForeignTokens(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	_, err := s.Validate(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "x"}).
		SignedString([]byte("another-secret-another-secret-xx"))
	require.NoError(t, err)
	_, err = s.Validate(ctx, other)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenServiceValidation(t *testing.T) {
	_, err := NewTokenService("short", time.Hour, "admin", "$2a$10$x", nil)
	assert.Error(t, err)

	_, err = NewTokenService(testSecret, time.Hour, "admin", "plaintext", nil)
	assert.Error(t, err)
}
