package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret-key-at-least-32-chars"

func newTestValidator() *auth.TokenValidator {
	return auth.NewTokenValidator(config.JWTConfig{Secret: testJWTSecret, Issuer: "test-issuer"})
}

func signTestToken(t *testing.T, userID string, tokenType auth.TokenType, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID:    userID,
		Username:  "shopper",
		TokenType: tokenType,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

type identityResult struct {
	UserID        int64  `json:"user_id"`
	Authenticated bool   `json:"authenticated"`
	LogUserID     string `json:"log_user_id"`
}

func newIdentityRouter() *gin.Engine {
	router := gin.New()
	router.Use(Identity(IdentityConfig{Validator: newTestValidator()}))
	router.GET("/cart", func(c *gin.Context) {
		uid, ok := GetJWTUserID(c)
		c.JSON(http.StatusOK, identityResult{
			UserID:        int64(uid),
			Authenticated: ok,
			LogUserID:     logger.GetUserID(c.Request.Context()),
		})
	})
	return router
}

func serveIdentity(t *testing.T, router *gin.Engine, header string) identityResult {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	if header != "" {
		req.Header.Set(AuthHeaderKey, header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var out identityResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestIdentity_ValidToken(t *testing.T) {
	router := newIdentityRouter()
	token := signTestToken(t, "42", auth.TokenTypeAccess, 15*time.Minute)

	out := serveIdentity(t, router, BearerPrefix+token)
	assert.True(t, out.Authenticated)
	assert.Equal(t, int64(42), out.UserID)
	assert.Equal(t, "42", out.LogUserID)
}

func TestIdentity_FallsBackToAnonymous(t *testing.T) {
	router := newIdentityRouter()

	tests := []struct {
		name   string
		header func(t *testing.T) string
	}{
		{"no header", func(t *testing.T) string { return "" }},
		{"not bearer", func(t *testing.T) string { return "Basic dXNlcjpwYXNz" }},
		{"empty bearer", func(t *testing.T) string { return BearerPrefix }},
		{"garbage token", func(t *testing.T) string { return BearerPrefix + "not-a-jwt" }},
		{"expired token", func(t *testing.T) string {
			return BearerPrefix + signTestToken(t, "42", auth.TokenTypeAccess, -time.Minute)
		}},
		{"refresh token", func(t *testing.T) string {
			return BearerPrefix + signTestToken(t, "42", auth.TokenTypeRefresh, time.Hour)
		}},
		{"non numeric user", func(t *testing.T) string {
			return BearerPrefix + signTestToken(t, "3f1c-uuid", auth.TokenTypeAccess, time.Hour)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := serveIdentity(t, router, tt.header(t))
			assert.False(t, out.Authenticated)
			assert.Empty(t, out.LogUserID)
		})
	}
}

func TestRequireIdentity(t *testing.T) {
	router := gin.New()
	router.Use(Identity(IdentityConfig{Validator: newTestValidator()}))
	router.POST("/merge", RequireIdentity(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	t.Run("anonymous is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/merge", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, dto.ErrCodeUnauthorized, resp.Error.Code)
	})

	t.Run("invalid token is reported", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/merge", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+"garbage")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeTokenInvalid)
	})

	t.Run("authenticated passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/merge", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+signTestToken(t, "7", auth.TokenTypeAccess, time.Hour))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestGetJWTUserID_NotFound(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := GetJWTUserID(c)
	assert.False(t, ok)
	assert.Nil(t, GetJWTClaims(c))

	c.Set(JWTUserIDKey, cart.UserID(0))
	_, ok = GetJWTUserID(c)
	assert.False(t, ok)
}
