package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"archmap/internal/domain"
	"archmap/internal/service"
)

const currentUserKey = "current_user"

// AuthRequired resuelve la identidad desde el header Authorization y la
// deja en el contexto. Cualquier fallo de verificación responde un 401
// uniforme; los fallos de los colaboradores externos responden 503.
func AuthRequired(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authSvc == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
			c.Abort()
			return
		}

		user, err := authSvc.ResolveBearer(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			if errors.Is(err, service.ErrUnauthenticated) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			} else {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
			}
			c.Abort()
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// GetCurrentUser obtiene la identidad resuelta desde el contexto.
func GetCurrentUser(c *gin.Context) (domain.User, bool) {
	val, ok := c.Get(currentUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := val.(domain.User)
	return user, ok
}
