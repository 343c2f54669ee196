package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	EncryptedKeyHeader = "encryptedkey"
	AdminTokenHeader   = "X-Admin-Token"

	encryptedKeyCtx = "encryptedKey"
)

// CredentialMiddleware picks the encrypted key out of the request headers. Requests without one
// pass through; the handler may still find a credential in the body.
func CredentialMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := strings.TrimSpace(c.GetHeader(EncryptedKeyHeader)); key != "" {
			c.Set(encryptedKeyCtx, key)
		}
		c.Next()
	}
}

// EncryptedKey returns the key found by CredentialMiddleware.
func EncryptedKey(c *gin.Context) string {
	return c.GetString(encryptedKeyCtx)
}

// AdminMiddleware guards operator routes with a static token. With no token configured the
// routes are closed.
func AdminMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "admin operations are disabled", "kind": "configuration_error"})
			return
		}
		got := c.GetHeader(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			logrus.WithField("path", c.FullPath()).Warn("AdminMiddleware: rejected admin token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "admin token is required in 'X-Admin-Token' header", "kind": "invalid_credential"})
			return
		}
		c.Next()
	}
}
