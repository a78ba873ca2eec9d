package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"foodshare/docs"
	"foodshare/internal/auth"
	"foodshare/internal/cache"
	"foodshare/internal/config"
	"foodshare/internal/db"
	"foodshare/internal/handler"
	"foodshare/internal/logger"
	"foodshare/internal/notify"
	"foodshare/internal/repository"
	"foodshare/internal/repository/memory"
	"foodshare/internal/router"
	"foodshare/internal/service"
)

// @title FoodShare API
// @version 1.0
// @description Food donation marketplace: OTP sign-in, donations, requests and courier jobs.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	cfg := config.Load()

	sugar, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = sugar.Sync() }()

	store, err := openStore(cfg, sugar)
	if err != nil {
		sugar.Fatalw("store init", "driver", cfg.DBDriver, "error", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer func() { _ = cacheClient.Close() }()
	if err := cacheClient.Ping(context.Background()); err != nil {
		sugar.Warnw("redis unreachable, continuing without cache", "addr", cfg.RedisAddr, "error", err)
	}

	notifier := newNotifier(cfg, sugar)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret).WithPendingTTL(cfg.PendingTokenTTL)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	limiter := service.NewRedisLimiter(cacheClient, cfg.OTPMaxAttempts, cfg.OTPAttemptWindow)
	otpService := service.NewOTPService(store, notifier, limiter, sugar, service.OTPOptions{
		TTL:      cfg.OTPTTL,
		HashCost: cfg.OTPHashCost,
	})
	authService := service.NewAuthService(store, otpService, jwtService, tokenStore, cacheClient, sugar)
	userService := service.NewUserService(store.Users(), cacheClient)
	listingService := service.NewListingService(store, sugar)
	jobService := service.NewJobService(store, otpService, sugar)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())

	router.Register(e, jwtService, tokenStore, router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		User:    handler.NewUserHandler(userService),
		Listing: handler.NewListingHandler(listingService),
		Job:     handler.NewJobHandler(jobService),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go otpService.StartSweeper(ctx, cfg.OTPSweepInterval)

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
	}
	sugar.Infow("swagger documentation available", "url", swaggerURL(cfg.SwaggerHost, cfg.ServerPort))

	go func() {
		addr := ":" + cfg.ServerPort
		sugar.Infow("server starting", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server start", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("server forced to shutdown", "error", err)
	}
	sugar.Info("server exiting")
}

func openStore(cfg *config.Config, sugar *zap.SugaredLogger) (repository.Store, error) {
	if cfg.DBDriver == "memory" {
		sugar.Warn("DB_DRIVER=memory, data is lost on restart")
		return memory.New(), nil
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	if cfg.ResetDB {
		sugar.Warn("RESET_DB=true detected, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			sugar.Warnw("failed to drop tables", "error", err)
		}
	}
	if err := db.Migrate(gormDB); err != nil {
		return nil, err
	}
	return repository.NewStore(gormDB), nil
}

func newNotifier(cfg *config.Config, sugar *zap.SugaredLogger) notify.Notifier {
	if !cfg.TwilioEnabled() {
		sugar.Info("twilio not configured, codes are written to the log")
		return notify.NewConsoleNotifier(sugar)
	}
	twilio, err := notify.NewTwilioNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, sugar)
	if err != nil {
		sugar.Warnw("twilio init failed, falling back to console", "error", err)
		return notify.NewConsoleNotifier(sugar)
	}
	return twilio
}

func swaggerURL(host, port string) string {
	if host == "" {
		return "http://localhost:" + port + "/swagger/index.html"
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return strings.TrimSuffix(host, "/") + "/swagger/index.html"
}
