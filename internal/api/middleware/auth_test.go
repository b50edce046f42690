package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentforge/talentforge-api/internal/api/middleware"
	"github.com/talentforge/talentforge-api/internal/service/auth"
)

// fakeJWTService validates exactly one known token.
type fakeJWTService struct {
	token  string
	userID uuid.UUID
	err    error
}

func (f *fakeJWTService) GenerateToken(context.Context, uuid.UUID) (string, error) {
	return f.token, nil
}

func (f *fakeJWTService) ValidateToken(_ context.Context, tokenString string) (*auth.Claims, error) {
	if f.err != nil {
		return nil, f.err
	}
	if tokenString != f.token {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{UserID: f.userID, TokenType: "access"}, nil
}

func protectedEndpoint(t *testing.T, jwtService auth.JWTService) (http.Handler, *uuid.UUID) {
	t.Helper()
	var seenUserID uuid.UUID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r)
		require.True(t, ok)
		seenUserID = userID
		w.WriteHeader(http.StatusOK)
	})
	return middleware.NewAuthMiddleware(jwtService).Authenticate(next), &seenUserID
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("valid token passes user ID through", func(t *testing.T) {
		t.Parallel()
		handler, seen := protectedEndpoint(t, &fakeJWTService{token: "good-token", userID: userID})

		req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, userID, *seen)
	})

	t.Run("missing header", func(t *testing.T) {
		t.Parallel()
		handler, _ := protectedEndpoint(t, &fakeJWTService{token: "good-token", userID: userID})

		req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		t.Parallel()
		handler, _ := protectedEndpoint(t, &fakeJWTService{token: "good-token", userID: userID})

		req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
		req.Header.Set("Authorization", "Token good-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		t.Parallel()
		handler, _ := protectedEndpoint(t, &fakeJWTService{token: "good-token", userID: userID})

		req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
		req.Header.Set("Authorization", "Bearer forged-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid token")
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()
		handler, _ := protectedEndpoint(t, &fakeJWTService{err: auth.ErrExpiredToken})

		req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
		req.Header.Set("Authorization", "Bearer anything")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Token expired")
	})
}
