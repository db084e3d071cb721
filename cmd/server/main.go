package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/fashionfolio/portfolio-auth/application/port/inbound"
	"github.com/fashionfolio/portfolio-auth/application/usecase"
	"github.com/fashionfolio/portfolio-auth/infrastructure/adapter/store"
	"github.com/fashionfolio/portfolio-auth/infrastructure/config"
	"github.com/fashionfolio/portfolio-auth/infrastructure/http/handler"
	"github.com/fashionfolio/portfolio-auth/infrastructure/http/middleware"
	"github.com/fashionfolio/portfolio-auth/infrastructure/service/jwt"
	"github.com/fashionfolio/portfolio-auth/infrastructure/service/logger"
	"github.com/fashionfolio/portfolio-auth/infrastructure/service/password"
	"github.com/fashionfolio/portfolio-auth/infrastructure/service/ratelimit"
)

const serviceName = "portfolio-auth"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	structuredLogger := logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: serviceName,
	})
	structuredLogger.Info(ctx, "Application starting", map[string]interface{}{
		"env":          cfg.Environment,
		"store_driver": cfg.StoreDriver,
	})

	st, err := store.Open(ctx, cfg)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to open user store", err, map[string]interface{}{
			"store_driver": cfg.StoreDriver,
		})
		log.Fatalf("Failed to open user store: %v", err)
	}
	defer st.Close()
	structuredLogger.Info(ctx, "User store ready", map[string]interface{}{
		"store_driver": st.Driver,
	})

	rlLogger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		rlLogger.SetLevel(level)
	}
	if cfg.LogFormat == "json" {
		rlLogger.SetFormatter(&logrus.JSONFormatter{})
	}

	var rateLimitService inbound.RateLimitService
	rateLimitService, err = ratelimit.NewRateLimitService(ratelimit.RateLimitConfig{
		Enabled:       cfg.RateLimitEnabled,
		RedisURL:      cfg.RedisURL,
		IPAttempts:    cfg.RateLimitIPAttempts,
		IPWindow:      cfg.RateLimitIPWindow,
		BlockDuration: cfg.RateLimitBlockDuration,
	}, rlLogger)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to initialize rate limit service, continuing without it", err, map[string]interface{}{
			"redis_url": cfg.RedisURL,
		})
		rateLimitService = ratelimit.NewNoopRateLimitService()
	}

	tokenService, err := jwt.NewJWTService(jwt.Config{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize JWT service: %v", err)
	}
	passwordService := password.NewBcryptPasswordService()

	authUseCase := usecase.NewAuthUseCase(
		st.Users,
		tokenService,
		passwordService,
		rateLimitService,
		structuredLogger,
		usecase.LoginPolicy{
			MaxFailedAttempts: cfg.RateLimitIPAttempts,
			Window:            cfg.RateLimitIPWindow,
			BlockDuration:     cfg.RateLimitBlockDuration,
		},
	)

	authMiddleware := middleware.NewAuthMiddleware(authUseCase, structuredLogger)
	var rateLimitMiddleware *middleware.RateLimitMiddleware
	if cfg.RateLimitEnabled {
		rateLimitMiddleware = middleware.NewRateLimitMiddleware(rateLimitService, structuredLogger,
			middleware.DefaultRateLimitRules(cfg.RateLimitIPAttempts, cfg.RateLimitIPWindow, cfg.RateLimitBlockDuration))
	}

	authHandler := handler.NewAuthHandler(authUseCase, structuredLogger, handler.CookieSettings{
		Secure: cfg.IsProduction(),
	})
	healthHandler := handler.NewHealthHandler(map[string]handler.HealthCheck{
		"store": st.Ping,
	})

	router := mux.NewRouter()
	if cfg.LogEnableRequestLog {
		router.Use(middleware.RequestLogMiddleware(structuredLogger))
	}
	authHandler.RegisterRoutes(router, authMiddleware, rateLimitMiddleware)
	healthHandler.RegisterRoutes(router)

	// CORS and recovery sit outside the router so preflight and unmatched
	// requests are covered too.
	var root http.Handler = router
	if cfg.CORSEnabled && len(cfg.CORSAllowedOrigins) > 0 {
		root = middleware.CORSMiddleware(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials)(root)
	}
	root = middleware.RecoverMiddleware(structuredLogger)(root)
	root = middleware.CorrelationIDMiddleware(root)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		structuredLogger.Info(ctx, "Starting server", map[string]interface{}{
			"addr": server.Addr,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			structuredLogger.Error(ctx, "Server failed to start", err, map[string]interface{}{
				"addr": server.Addr,
			})
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	structuredLogger.Info(ctx, "Shutting down server...", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		structuredLogger.Error(ctx, "Server forced to shutdown", err, nil)
	}
	structuredLogger.Info(ctx, "Server exited", nil)
}
