package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentforge/talentforge-api/internal/config"
	"github.com/talentforge/talentforge-api/internal/service/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newService(t *testing.T) auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            testSecret,
		TokenLifetimeMinutes: 60,
	})
	require.NoError(t, err)
	return svc
}

// signToken mints a token outside the service to exercise validation
// edge cases the service itself never produces.
func signToken(t *testing.T, secret, tokenType string, userID uuid.UUID, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"uid":  userID.String(),
		"type": tokenType,
		"sub":  userID.String(),
		"iat":  time.Now().Add(-time.Hour).Unix(),
		"exp":  expiresAt.Unix(),
		"jti":  uuid.New().String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestNewJWTServiceRejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := auth.NewJWTService(config.AuthConfig{JWTSecret: "short", TokenLifetimeMinutes: 60})
	assert.Error(t, err)
}

func TestJWTServiceRoundTrip(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	userID := uuid.New()

	token, err := svc.GenerateToken(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "access", claims.TokenType)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestJWTServiceValidationFailures(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	userID := uuid.New()

	t.Run("garbage token", func(t *testing.T) {
		t.Parallel()
		_, err := svc.ValidateToken(context.Background(), "not-a-token")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("wrong signing secret", func(t *testing.T) {
		t.Parallel()
		token := signToken(t, "another-secret-another-secret-xx", "access", userID, time.Now().Add(time.Hour))
		_, err := svc.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()
		token := signToken(t, testSecret, "access", userID, time.Now().Add(-time.Hour))
		_, err := svc.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, auth.ErrExpiredToken)
	})

	t.Run("wrong token type", func(t *testing.T) {
		t.Parallel()
		token := signToken(t, testSecret, "refresh", userID, time.Now().Add(time.Hour))
		_, err := svc.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, auth.ErrWrongTokenType)
	})
}
