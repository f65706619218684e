// Provisio API — бэкенд мастера настройки: принимает действия мастера,
// ведёт прогресс сайтов и хранит аудит событий из RabbitMQ.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shaiso/Provisio/internal/api"
	"github.com/shaiso/Provisio/internal/config"
	"github.com/shaiso/Provisio/internal/mq"
	"github.com/shaiso/Provisio/internal/repo"
	"github.com/shaiso/Provisio/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "provisio_api_healthz_requests_total",
		Help: "Total health check requests handled by provisio-api",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting provisio-api")

	cfg, err := config.LoadServer()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.Migrate(ctx, pool); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	siteRepo := repo.NewSiteRepo(pool)
	eventRepo := repo.NewEventRepo(pool)

	// RabbitMQ: аудит событий мастера
	var mqConn *mq.Connection
	if cfg.RabbitMQURL != "" {
		mqConn, err = mq.Dial(mq.ConnectionConfig{URL: cfg.RabbitMQURL, Name: "provisio-api", Logger: logger})
		if err != nil {
			logger.Warn("RabbitMQ not available, event audit disabled", "error", err)
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			logger.Debug("rabbitmq topology", "topology", mq.TopologyInfo())

			consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
				Handler:  mq.HandleEvents(eventRepo.Insert),
				Prefetch: 10,
			})
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("event consumer stopped", "error", err)
				}
			}()
		}
	} else {
		logger.Info("RABBITMQ_URL not set, event audit disabled")
	}

	handler := api.NewHandler(api.Config{
		Sites:  siteRepo,
		Events: eventRepo,
		Nonce:  cfg.Nonce,
		Logger: logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		broker := "disabled"
		if mqConn != nil {
			broker = "down"
			if mqConn.Healthy() {
				broker = "up"
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s rabbitmq=%s", time.Since(startTime), broker)
	})
	mux.Handle("/metrics", promhttp.Handler())

	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
