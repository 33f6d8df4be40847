package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"attendsheets/internal/attendance"
	"attendsheets/internal/auth"
	"attendsheets/internal/codestore"
	"attendsheets/internal/config"
	"attendsheets/internal/handler"
	"attendsheets/internal/httpmiddleware"
	"attendsheets/internal/identity"
	"attendsheets/internal/mailer"
	"attendsheets/internal/queue"
	"attendsheets/internal/store"
	"attendsheets/internal/verification"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}
	cfg := config.Load()

	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx := context.Background()
	checks := map[string]handler.HealthCheck{}

	var (
		db  *store.DB
		rdb *store.Redis
	)
	if cfg.SessionStoreBackend == "postgres" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		d, err := store.NewDB(connectCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			return err
		}
		db = d
		defer db.Close()
		if cfg.MigrateOnStart {
			if err := db.Migrate(ctx); err != nil {
				return err
			}
		}
		checks["db"] = db.Healthy
	}
	if cfg.CodeStoreBackend == "redis" || cfg.MailBackend == "queue" {
		rdb = store.NewRedis(cfg.RedisAddr)
		defer rdb.Close()
		checks["redis"] = rdb.Healthy
	}

	var codeBackend codestore.Backend
	switch cfg.CodeStoreBackend {
	case "memory":
		codeBackend = codestore.NewMemoryBackend()
	case "redis":
		codeBackend = codestore.NewRedisBackend(rdb.Client, "attendsheets:codes")
	default:
		return fmt.Errorf("unknown CODE_STORE_BACKEND %q", cfg.CodeStoreBackend)
	}
	codes := codestore.New(codeBackend, codestore.WithLogger(logger.Named("codestore")))

	var (
		ids      identity.Store
		sessions attendance.Store
	)
	switch cfg.SessionStoreBackend {
	case "memory":
		ids = identity.NewMemoryStore()
		sessions = attendance.NewMemoryStore()
	case "postgres":
		ids = identity.NewRepository(db.Client)
		sessions = attendance.NewRepository(db.Client)
	default:
		return fmt.Errorf("unknown SESSION_STORE_BACKEND %q", cfg.SessionStoreBackend)
	}

	var mail mailer.Mailer
	switch cfg.MailBackend {
	case "log":
		mail = mailer.NewLog(logger.Named("mail"))
	case "smtp":
		mail = mailer.NewSMTP(smtpConfig(cfg))
	case "queue":
		mail = mailer.NewQueued(queue.NewRedisQueue(rdb.Client, cfg.MailQueueKey))
	default:
		return fmt.Errorf("unknown MAIL_BACKEND %q", cfg.MailBackend)
	}

	flow := verification.New(codes, ids, mail, cfg.CodeTTL, logger.Named("verification"))
	engine := attendance.NewEngine(sessions,
		attendance.WithLocation(cfg.Location()),
		attendance.WithDefaultRotation(cfg.DefaultRotationInterval),
		attendance.WithLogger(logger.Named("attendance")))
	issuer := auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey)
	limiter := httpmiddleware.NewRateLimiter(float64(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", handler.Healthz(checks))

	handler.New(flow, engine, issuer, cfg.AccessTTL, logger.Named("http")).Routes(r, limiter.GinMiddleware())

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr),
			zap.String("codes", cfg.CodeStoreBackend),
			zap.String("sessions", cfg.SessionStoreBackend),
			zap.String("mail", cfg.MailBackend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}

func smtpConfig(cfg config.App) mailer.SMTPConfig {
	return mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
