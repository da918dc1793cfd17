package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"archmap/internal/config"
	"archmap/internal/db"
	apihttp "archmap/internal/http"
	"archmap/internal/observability"
	"archmap/internal/repository"
	"archmap/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Ping(ctx, pool); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}
	if err := db.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatal("db migrations", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	if err := redisClient.Ping(ctxPing).Err(); err != nil {
		cancel()
		// Sin el store compartido no hay sesiones ni admisión: abortar.
		logger.Fatal("redis ping", zap.Error(err))
	}
	cancel()

	userRepo := repository.NewPgUserRepository(pool)
	projectRepo := repository.NewPgProjectRepository(pool)

	tokenSvc := service.NewTokenService(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	sessionRegistry := service.NewRedisSessionRegistry(redisClient)
	rateLimiter := service.NewRedisRateLimiter(redisClient, cfg.RateLimitPerMinute)
	authSvc := service.NewAuthService(logger, userRepo, tokenSvc, sessionRegistry)

	observability.Register()

	authHandler := apihttp.NewAuthHandler(logger, authSvc)
	userHandler := apihttp.NewUserHandler(logger, userRepo)
	projectHandler := apihttp.NewProjectHandler(logger, projectRepo)
	router := apihttp.NewRouter(logger, rateLimiter, tokenSvc, authSvc, authHandler, userHandler, projectHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
