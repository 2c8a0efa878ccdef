package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"user_manager/internal/cache"
	"user_manager/internal/config"
	"user_manager/internal/db"
	"user_manager/internal/handler"
	"user_manager/internal/middleware"
	"user_manager/internal/observability"
	"user_manager/internal/queue"
	"user_manager/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	observability.SetupLogging(cfg.App.Env, cfg.App.LogLevel)
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Prometheus metrics
	metrics := observability.InitMetrics()
	logrus.Info("Metrics initialized")

	rateLimitCfg := handler.RateLimiterConfig(&cfg.RateLimit)

	var store cache.Store
	var limiter middleware.Limiter
	if cfg.Redis.Enabled() {
		rdb, err := cache.SetupRedis(&cfg.Redis)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logrus.WithError(err).Error("Failed to close redis connection")
			}
		}()

		store = cache.NewRedisStore(rdb, cfg.Session.TTL)
		limiter, err = middleware.NewRedisLimiter(ctx, rdb, rateLimitCfg)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to initialize rate limiter")
		}
	} else {
		logrus.Warn("REDIS_HOST not set, keeping sessions in memory")
		store = cache.NewMemoryStore(cfg.Session.TTL)
		limiter = middleware.NewLocalLimiter(rateLimitCfg)
	}

	var database *sql.DB
	if cfg.DB.Enabled() {
		database, err = db.Init(&cfg.DB)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to database")
		}
		defer func() {
			if err := database.Close(); err != nil {
				logrus.WithError(err).Error("Failed to close database connection")
			}
		}()
		if err := db.Migrate(database); err != nil {
			logrus.WithError(err).Fatal("Failed to migrate database")
		}
	} else {
		logrus.Warn("DB_HOST not set, activity journal disabled")
	}

	var publisher user.Publisher = queue.NoopPublisher{}
	if cfg.RabbitMQ.Enabled() {
		conn, err := queue.SetupRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to RabbitMQ")
		}
		defer func() {
			if err := conn.Close(); err != nil {
				logrus.WithError(err).Error("Failed to close RabbitMQ connection")
			}
		}()

		p, err := queue.NewPublisher(conn, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue, metrics)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to create event publisher")
		}
		defer p.Close()
		publisher = p
	} else {
		logrus.Warn("RABBITMQ_URL not set, user events will not be published")
	}

	r, err := handler.SetupHandler(handler.Dependencies{
		Config:    cfg,
		Store:     store,
		Limiter:   limiter,
		Publisher: publisher,
		DB:        database,
		Metrics:   metrics,
	})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up handler")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.Infof("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("Server stopped with error")
	}
}
