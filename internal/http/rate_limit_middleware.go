package http

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"archmap/internal/observability"
	"archmap/internal/service"
)

const anonFallbackIP = "0.0.0.0"

// RateLimitMiddleware corre delante de toda ruta. La llave del contador
// sale del subject de un access token válido; sin credencial válida se
// cae al origen de red del caller.
func RateLimitMiddleware(limiter service.RateLimiter, tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		key := bucketKey(c, tokens)
		if err := limiter.Admit(c.Request.Context(), key); err != nil {
			if errors.Is(err, service.ErrRateLimited) {
				observability.RateLimitRejections.Inc()
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			} else {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
			}
			c.Abort()
			return
		}

		c.Next()
	}
}

func bucketKey(c *gin.Context, tokens *service.TokenService) string {
	if tokens != nil {
		if token, ok := bearerFromHeader(c.GetHeader("Authorization")); ok {
			if claims, err := tokens.Verify(token); err == nil && claims.TokenType == service.TokenTypeAccess {
				return "user:" + claims.Subject
			}
		}
	}

	ip := c.ClientIP()
	if net.ParseIP(ip) == nil {
		ip = anonFallbackIP
	}
	return "anon:" + ip
}

func bearerFromHeader(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}
