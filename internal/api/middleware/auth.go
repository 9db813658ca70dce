package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// BearerAuth gates requests behind a shared secret. When no secret is
// configured the check is skipped entirely and the endpoint is open, subject
// to the rate limiter. Tokens are compared in constant time over fixed-size
// digests so neither content nor length leaks through timing.
func BearerAuth(secret string) gin.HandlerFunc {
	want := sha256.Sum256([]byte(secret))

	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			unauthorized(c)
			return
		}

		got := sha256.Sum256([]byte(token))
		if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			unauthorized(c)
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"ok":    false,
		"code":  "unauthorized",
		"error": "a valid bearer token is required",
	})
	c.Abort()
}
