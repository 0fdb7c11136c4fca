package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harlequingg/taskmanager-api/internal/data"
	"github.com/harlequingg/taskmanager-api/internal/mailer"
	"github.com/harlequingg/taskmanager-api/internal/notify"
)

const version = "1.0.0"

const (
	jobDueDateScan          = "due-date-scan"
	jobNotificationDelivery = "notification-delivery"
	jobNotificationPrune    = "notification-retention"
)

type mailSender interface {
	Send(recipient, templateFile string, data any) error
}

type jobRunner interface {
	RunNow(ctx context.Context, name string) error
}

type application struct {
	config    config
	logger    *logrus.Logger
	storage   storage
	mailer    mailSender
	scheduler jobRunner
}

func main() {
	var cfg config
	flag.IntVar(&cfg.port, "port", envInt("PORT", 5000), "Server Port")
	flag.StringVar(&cfg.env, "env", envOrDefault("APP_ENV", "development"), "Environment [development|staging|production]")
	flag.StringVar(&cfg.configFile, "config", os.Getenv("TASKS_CONFIG"), "Path to a YAML file with the notifications block")
	flag.StringVar(&cfg.frontendURL, "frontend-url", envOrDefault("FRONTEND_URL", "http://localhost:3000"), "Base URL used in password reset links")

	flag.StringVar(&cfg.db.dsn, "db-dsn", os.Getenv("DB_DSN"), "PostgreSQL DSN")
	flag.IntVar(&cfg.db.maxOpenConnections, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.IntVar(&cfg.db.maxIdleConnections, "db-max-idle-conns", 25, "PostgreSQL max idle connections")
	flag.DurationVar(&cfg.db.maxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max connection idle time")

	flag.StringVar(&cfg.smtp.host, "smtp-host", os.Getenv("SMTP_HOST"), "SMTP host")
	flag.IntVar(&cfg.smtp.port, "smtp-port", envInt("SMTP_PORT", 587), "SMTP port")
	flag.StringVar(&cfg.smtp.username, "smtp-username", os.Getenv("SMTP_USERNAME"), "SMTP username")
	flag.StringVar(&cfg.smtp.password, "smtp-password", os.Getenv("SMTP_PASSWORD"), "SMTP password")
	flag.StringVar(&cfg.smtp.sender, "smtp-sender", envOrDefault("SMTP_SENDER", "Task Manager <no-reply@taskmanager.local>"), "SMTP sender")

	flag.StringVar(&cfg.jwt.secret, "jwt-secret", os.Getenv("JWT_SECRET"), "JWT secret")
	flag.DurationVar(&cfg.jwt.ttl, "jwt-ttl", 24*time.Hour, "JWT lifetime")

	flag.BoolVar(&cfg.limiter.enabled, "limiter-enabled", true, "Enable per-IP rate limiting")
	flag.Float64Var(&cfg.limiter.maxRequestPerSecond, "limiter-rps", 2, "Rate limiter maximum requests per second")
	flag.IntVar(&cfg.limiter.burst, "limiter-burst", 4, "Rate limiter maximum burst")

	flag.Func("cors-trusted-origins", "Trusted CORS origins (space separated)", func(val string) error {
		cfg.cors.trustedOrigins = strings.Fields(val)
		return nil
	})
	flag.Parse()

	if cfg.cors.trustedOrigins == nil {
		cfg.cors.trustedOrigins = strings.Fields(os.Getenv("CORS_TRUSTED_ORIGINS"))
	}

	logger := setupLogger(cfg.env)

	notifications, err := loadNotificationsConfig(cfg.configFile)
	if err != nil {
		logger.WithError(err).Fatal("invalid notification configuration")
	}
	cfg.notifications = notifications

	db, err := data.Open(data.Config{
		DSN:          cfg.db.dsn,
		MaxOpenConns: cfg.db.maxOpenConnections,
		MaxIdleConns: cfg.db.maxIdleConnections,
		MaxIdleTime:  cfg.db.maxIdleTime,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	logger.Info("established a connection with database")

	if cfg.jwt.secret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.WithError(err).Fatal("failed to generate jwt secret")
		}
		cfg.jwt.secret = hex.EncodeToString(secret)
		logger.Warn("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}

	store := data.NewStorage(db, cfg.notifications.RetainPerUser)
	m := mailer.New(cfg.smtp.host, cfg.smtp.port, cfg.smtp.username, cfg.smtp.password, cfg.smtp.sender)

	scheduler := notify.NewScheduler(logger)
	if err := registerJobs(scheduler, cfg, store, m, logger); err != nil {
		logger.WithError(err).Fatal("failed to register background jobs")
	}

	app := &application{
		config:    cfg,
		logger:    logger,
		storage:   store,
		mailer:    m,
		scheduler: scheduler,
	}

	scheduler.Start()
	if err := app.serve(); err != nil {
		logger.WithError(err).Error("server stopped with error")
	}
	scheduler.Stop()
	logger.Info("application stopped")
}

func registerJobs(s *notify.Scheduler, cfg config, store *data.Storage, m *mailer.Mailer, logger *logrus.Logger) error {
	n := cfg.notifications

	scanner := notify.NewScanner(store, notify.ScanConfig{
		Horizon:         n.Horizon,
		SoonWindow:      n.SoonWindow,
		Debounce:        n.Debounce,
		OverdueLookback: n.OverdueLookback,
	}, logger)
	err := s.Register(jobDueDateScan, n.ScanSchedule, func(ctx context.Context) error {
		_, err := scanner.Run(ctx)
		return err
	}, true)
	if err != nil {
		return err
	}

	if cfg.smtp.host != "" {
		dispatcher := notify.NewDispatcher(store, m, logger)
		err = s.Register(jobNotificationDelivery, n.DeliverySchedule, func(ctx context.Context) error {
			_, err := dispatcher.Run(ctx)
			return err
		}, false)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("SMTP host not configured, notification emails are disabled")
	}

	pruner := notify.NewPruner(store, time.Duration(n.RetentionDays)*24*time.Hour, logger)
	return s.Register(jobNotificationPrune, n.PruneSchedule, func(ctx context.Context) error {
		_, err := pruner.Run(ctx)
		return err
	}, false)
}

// serve blocks until the server fails or a SIGINT/SIGTERM has been handled.
func (app *application) serve() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.config.port),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorLog:     stdLogger(app.logger),
	}

	shutdownErr := make(chan error, 1)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-quit
		app.logger.WithField("signal", sig.String()).Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		shutdownErr <- srv.Shutdown(ctx)
	}()

	app.logger.WithFields(logrus.Fields{"env": app.config.env, "port": app.config.port}).Info("starting server")

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-shutdownErr
}

func setupLogger(env string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	switch env {
	case "development":
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "staging":
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	default:
		logger.SetLevel(logrus.WarnLevel)
		logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}
	return logger
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func stdLogger(l *logrus.Logger) *log.Logger {
	return log.New(l.WriterLevel(logrus.ErrorLevel), "", 0)
}
