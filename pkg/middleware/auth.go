package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/minglehq/mingle/internal/tokens"
)

// Context keys set by RequireAuth.
const (
	ContextClaims = "claims"
	ContextUserID = "userID"
)

// TokenVerifier is the slice of the token service the middleware needs.
type TokenVerifier interface {
	VerifyAccess(raw string) (*tokens.Claims, error)
}

// RequireAuth enforces a valid bearer access token on the request and stores
// the verified claims in the Gin context for downstream handlers.
func RequireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := ""
		if auth := c.GetHeader("Authorization"); auth != "" {
			if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
				raw = after
			}
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		claims, err := verifier.VerifyAccess(raw)
		if err != nil {
			msg := "token invalid"
			if errors.Is(err, tokens.ErrTokenExpired) {
				msg = "token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		c.Set(ContextClaims, claims)
		c.Set(ContextUserID, claims.Subject)
		c.Next()
	}
}

// CurrentClaims returns the verified claims set by RequireAuth, or nil.
func CurrentClaims(c *gin.Context) *tokens.Claims {
	if v, ok := c.Get(ContextClaims); ok {
		if claims, ok := v.(*tokens.Claims); ok {
			return claims
		}
	}
	return nil
}

// CurrentUserID returns the authenticated subject id, or "".
func CurrentUserID(c *gin.Context) string {
	if v, ok := c.Get(ContextUserID); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
