package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"archmap/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas. El gate
// de admisión corre delante de toda operación.
func NewRouter(
	logger *zap.Logger,
	limiter service.RateLimiter,
	tokens *service.TokenService,
	authSvc *service.AuthService,
	authH *AuthHandler,
	userH *UserHandler,
	projectH *ProjectHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y admisión.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), RateLimitMiddleware(limiter, tokens))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/api/auth")
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.POST("/refresh", authH.Refresh)
	auth.POST("/logout", authH.Logout)
	auth.POST("/logout_all", AuthRequired(authSvc), authH.LogoutAll)
	auth.GET("/me", AuthRequired(authSvc), authH.Me)

	users := r.Group("/users", AuthRequired(authSvc))
	users.GET("", userH.ListUsers)
	users.GET("/:id", userH.GetUser)

	projects := r.Group("/projects", AuthRequired(authSvc))
	projects.POST("", projectH.CreateProject)
	projects.GET("", projectH.ListProjects)
	projects.GET("/:id", projectH.GetProject)
	projects.PUT("/:id", projectH.UpdateProject)
	projects.DELETE("/:id", projectH.DeleteProject)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
