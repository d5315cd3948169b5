package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// JWT context keys
const (
	JWTClaimsKey   = "jwt_claims"
	JWTUserIDKey   = "jwt_user_id"
	JWTUsernameKey = "jwt_username"
	AuthHeaderKey  = "Authorization"
	BearerPrefix   = "Bearer "
)

// TokenValidator validates access tokens issued by the account service
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*auth.Claims, error)
}

// IdentityConfig holds configuration for the identity middleware
type IdentityConfig struct {
	// Validator is required for token validation
	Validator TokenValidator
	// Logger for middleware logging
	Logger *zap.Logger
}

// Identity resolves the caller's identity from a bearer token. A missing or
// invalid token leaves the request anonymous; it never rejects the request.
// The cart then falls back to the cookie representation.
func Identity(cfg IdentityConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := cfg.Validator.ValidateAccessToken(tokenString)
		if err != nil {
			log.Debug("Ignoring invalid access token",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
			)
			c.Next()
			return
		}

		uid, err := claims.CartUserID()
		if err != nil {
			log.Debug("Ignoring access token without a numeric user id", zap.Error(err))
			c.Next()
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTUserIDKey, uid)
		c.Set(JWTUsernameKey, claims.Username)

		ctx := logger.WithUserID(c.Request.Context(), strconv.FormatInt(int64(uid), 10))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireIdentity rejects requests that Identity left anonymous
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetJWTUserID(c); ok {
			c.Next()
			return
		}

		code, message := dto.ErrCodeUnauthorized, "Authentication required"
		if tokenString, present := bearerToken(c); present && tokenString != "" {
			code, message = dto.ErrCodeTokenInvalid, "Invalid token"
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
	}
}

// bearerToken extracts the token from the Authorization header
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader(AuthHeaderKey)
	if authHeader == "" || !strings.HasPrefix(authHeader, BearerPrefix) {
		return "", false
	}
	tokenString := strings.TrimPrefix(authHeader, BearerPrefix)
	if tokenString == "" {
		return "", false
	}
	return tokenString, true
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(JWTClaimsKey); exists {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}

// GetJWTUserID retrieves the authenticated user id from context
func GetJWTUserID(c *gin.Context) (cart.UserID, bool) {
	if userID, exists := c.Get(JWTUserIDKey); exists {
		if id, ok := userID.(cart.UserID); ok && id > 0 {
			return id, true
		}
	}
	return 0, false
}
