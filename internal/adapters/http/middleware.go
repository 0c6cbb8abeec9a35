package http

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var ErrUnauthorized = errors.New("unauthorized")

// ControlPlaneAuth gates privileged routes behind the shared secret.
// An empty secret lets every request through.
func ControlPlaneAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" || secretMatches(c.GetHeader("Authorization"), secret) {
			c.Next()
			return
		}
		log.Warn().Str("module", "adapters.http").Str("path", c.FullPath()).Str("ip", c.ClientIP()).Msg("control plane request rejected")
		_ = c.Error(ErrUnauthorized)
		c.AbortWithStatus(http.StatusUnauthorized)
	}
}

// secretMatches accepts "Bearer <secret>" as well as the bare secret.
// Whitespace around the secret after the Bearer scheme is ignored.
func secretMatches(header, secret string) bool {
	if header == "" {
		return false
	}
	presented := header
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		presented = strings.TrimSpace(header[7:])
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) == 1 ||
		subtle.ConstantTimeCompare([]byte(header), []byte(secret)) == 1
}
