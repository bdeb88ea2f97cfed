package auth

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	token, err := m.GenerateAccessToken(7, "ada")
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "ada", claims.Nickname)
	assert.Equal(t, "7", claims.Subject)
}

func TestJWTManager_Rejects(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	_, err := m.ValidateAccessToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewJWTManager("other-secret", time.Hour)
	token, err := other.GenerateAccessToken(1, "x")
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewJWTManager("test-secret", -time.Minute)
	token, err = expired.GenerateAccessToken(1, "x")
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func newGuardedApp(m *JWTManager) *fiber.App {
	app := fiber.New()
	app.Get("/guarded", AuthMiddleware(m), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	token, err := m.GenerateAccessToken(3, "bob")
	require.NoError(t, err)
	app := newGuardedApp(m)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing", "", "", fiber.StatusUnauthorized},
		{"bad format", "Token " + token, "", fiber.StatusUnauthorized},
		{"bearer", "Bearer " + token, "", fiber.StatusOK},
		{"query", "", "?token=" + token, fiber.StatusOK},
		{"invalid", "Bearer nope", "", fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/guarded"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAuthMiddleware_DemoModePassesThrough(t *testing.T) {
	resp, err := newGuardedApp(nil).Test(httptest.NewRequest("GET", "/guarded", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
}
