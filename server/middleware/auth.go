package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIKeyAuth gates the mutating endpoints (calibration, reset) behind a
// shared key. With no key configured the gate is open, for local and
// development deployments.
type APIKeyAuth struct {
	key    string
	logger *zap.Logger
}

func NewAPIKeyAuth(key string, logger *zap.Logger) *APIKeyAuth {
	if key == "" {
		logger.Warn("no API key configured, mutating endpoints are open")
	}
	return &APIKeyAuth{key: key, logger: logger}
}

// RequireKey accepts the key via the X-API-Key header or a Bearer token.
func (a *APIKeyAuth) RequireKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.key == "" {
			c.Next()
			return
		}

		presented := a.extractKey(c)
		if presented == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(a.key)) != 1 {
			a.logger.Warn("rejected API key",
				zap.String("client_ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (a *APIKeyAuth) extractKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
