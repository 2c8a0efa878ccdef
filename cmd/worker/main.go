package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"user_manager/internal/activity"
	"user_manager/internal/config"
	"user_manager/internal/db"
	"user_manager/internal/observability"
	"user_manager/internal/queue"
	"user_manager/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
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

	if !cfg.DB.Enabled() || !cfg.RabbitMQ.Enabled() {
		logrus.Fatal("Worker requires DB_HOST and RABBITMQ_URL")
	}

	database, err := db.Init(&cfg.DB)
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

	conn, err := queue.SetupRabbitMQ(&cfg.RabbitMQ)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to RabbitMQ")
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close RabbitMQ connection")
		}
	}()

	topologyChannel, err := queue.CreateChannel(conn)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create RabbitMQ channel")
	}
	if _, err := queue.DeclareTopology(topologyChannel, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue); err != nil {
		logrus.WithError(err).Fatal("Failed to declare RabbitMQ topology")
	}
	if err := topologyChannel.Close(); err != nil {
		logrus.WithError(err).Fatal("Failed to close RabbitMQ channel")
	}

	// Initialize Prometheus metrics
	metrics := observability.InitMetrics()
	logrus.Info("Metrics initialized")

	recorder := activity.NewActivityService(activity.NewActivityRepository(), database, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.Worker.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		logrus.Infof("Worker metrics server started on %s", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	for i := 1; i <= cfg.Worker.Count; i++ {
		w := worker.NewWorker(i, cfg.RabbitMQ.Queue, recorder, metrics)
		g.Go(func() error {
			return w.Run(gctx, conn)
		})
	}

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("Worker stopped with error")
	}
}
