package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyRequired authenticates requests with the configured static API key.
// No key configured means the API is open.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	key := strings.TrimSpace(s.cfg.Server.APIKey)
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		parts := strings.Fields(strings.TrimSpace(c.GetHeader("Authorization")))
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.Header("WWW-Authenticate", `Bearer realm="plexsource"`)
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(key)) != 1 {
			c.Header("WWW-Authenticate", `Bearer realm="plexsource"`)
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}
