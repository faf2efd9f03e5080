package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const headerAdminSecret = "X-Admin-Secret"

// RequestLogger access log through logrus
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("http request")
	}
}

// SharedSecretAuth accepts "Authorization: Bearer <secret>" or X-Admin-Secret
func SharedSecretAuth(secret string, logger *logrus.Logger) gin.HandlerFunc {
	expected := []byte(secret)

	return func(c *gin.Context) {
		token := c.GetHeader(headerAdminSecret)
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}

		if token == "" || len(expected) == 0 || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			logger.WithFields(logrus.Fields{
				"path":   c.FullPath(),
				"remote": c.ClientIP(),
			}).Warn("admin request rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing admin secret"})
			return
		}
		c.Next()
	}
}
