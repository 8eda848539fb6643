package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/innovatube/innovatube-api/internal/captcha"
	"github.com/innovatube/innovatube-api/internal/config"
	"github.com/innovatube/innovatube-api/internal/database"
	"github.com/innovatube/innovatube-api/internal/handler"
	"github.com/innovatube/innovatube-api/internal/logger"
	"github.com/innovatube/innovatube-api/internal/mailer"
	"github.com/innovatube/innovatube-api/internal/middleware"
	"github.com/innovatube/innovatube-api/internal/queue"
	"github.com/innovatube/innovatube-api/internal/repository"
	"github.com/innovatube/innovatube-api/internal/router"
	"github.com/innovatube/innovatube-api/internal/service"
)

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg := config.Load()
	prod := cfg.IsProduction()

	zl, err := logger.New(cfg.LogLevel, prod)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		zl.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		zl.Fatal("migrate database", zap.Error(err))
	}

	users := repository.NewUserRepo(db)
	sessionRepo := repository.NewSessionRepo(db)
	resets := repository.NewResetRepo(db)

	gate := captcha.NewVerifier(captcha.Config{
		Secret:     cfg.Captcha.Secret,
		VerifyURL:  cfg.Captcha.VerifyURL,
		Production: prod,
		Timeout:    cfg.Captcha.Timeout,
	}, zl)

	smtp := mailer.NewSMTPSender(mailer.Config{
		Host:     cfg.Mail.SMTPHost,
		Port:     cfg.Mail.SMTPPort,
		Username: cfg.Mail.SMTPUsername,
		Password: cfg.Mail.SMTPPassword,
		FromName: cfg.Mail.FromName,
		Timeout:  cfg.Mail.Timeout,
	}, zl)

	var notifier service.Notifier = smtp
	if cfg.Mail.AMQPURL != "" {
		pub := queue.NewPublisher(cfg.Mail.AMQPURL, cfg.Mail.Queue, zl)
		defer func() { _ = pub.Close() }()
		notifier = pub

		consumer := queue.NewConsumer(cfg.Mail.AMQPURL, cfg.Mail.Queue, smtp, cfg.Mail.Timeout, zl)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("reset mail consumer stopped", zap.Error(err))
			}
		}()
	}

	creds := service.NewCredentials(users, cfg.BcryptCost)
	sessions := service.NewSessions(sessionRepo, cfg.SessionSecret, cfg.SessionTTL)
	auth := service.NewAuth(creds, sessions, gate, zl)
	reset := service.NewPasswordReset(creds, resets, gate, notifier, zl, service.ResetOptions{
		Production:  prod,
		MailTimeout: cfg.Mail.Timeout,
	})

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		zl.Warn("redis unavailable, auth rate limiting disabled")
	} else {
		defer rdb.Close()
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, zl)

	e := newEcho(cfg, zl)
	router.RegisterRoutes(e, cfg.Env)
	router.RegisterAuth(e, handler.NewAuthHandler(auth), handler.NewResetHandler(reset), auth, limiter)

	zl.Info("starting InnovaTube API",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.Bool("captcha_configured", cfg.Captcha.Secret != ""),
		zap.Bool("smtp_configured", smtp.Configured()),
		zap.Bool("mail_queue", cfg.Mail.AMQPURL != ""),
	)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("http shutdown", zap.Error(err))
	}
	reset.Wait()
}

func newEcho(cfg config.Config, zl *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(zl, cfg.IsProduction())

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			zl.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
				zap.String("remote_ip", v.RemoteIP),
			)
			return nil
		},
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     allowedOrigins(cfg.FrontendURL),
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	e.Use(echomw.Secure())
	e.Use(echomw.BodyLimit("10M"))
	return e
}

func allowedOrigins(frontend string) []string {
	origins := []string{"http://localhost:3000", "http://localhost:5173", "http://localhost:5174"}
	if frontend != "" {
		origins = append([]string{frontend}, origins...)
	}
	return origins
}
