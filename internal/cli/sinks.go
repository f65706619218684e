package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shaiso/Provisio/internal/journal"
	"github.com/shaiso/Provisio/internal/mq"
	"github.com/shaiso/Provisio/internal/orchestrator"
	"github.com/shaiso/Provisio/internal/telemetry"
	"github.com/shaiso/Provisio/internal/transport"
)

// sinkOptions — куда отправлять события прохождения.
type sinkOptions struct {
	JournalPath string
	MetricsAddr string
	RabbitMQURL string
}

// sinkSet — подключённые получатели событий и функции их закрытия.
type sinkSet struct {
	sink     orchestrator.EventSink
	observer transport.Observer
	closers  []func() error
}

// Close закрывает всё, что было открыто, в обратном порядке.
func (s *sinkSet) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// openSinks подключает журнал, метрики и RabbitMQ.
//
// Журнал обязателен, если задан путь. Недоступный RabbitMQ не мешает
// пройти мастер: событие теряется, ошибка пишется в лог.
func openSinks(ctx context.Context, opts sinkOptions, logger *slog.Logger) (*sinkSet, error) {
	set := &sinkSet{}
	var sinks []orchestrator.EventSink

	if opts.JournalPath != "" {
		store, err := journal.Open(opts.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		sinks = append(sinks, store)
		set.closers = append(set.closers, store.Close)
	}

	if opts.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics := telemetry.NewMetrics(reg)
		sinks = append(sinks, metrics)
		set.observer = metrics.ObserveAction

		srv := &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "addr", opts.MetricsAddr, "error", err)
			}
		}()
		set.closers = append(set.closers, func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		logger.Info("metrics endpoint started", "addr", opts.MetricsAddr)
	}

	if opts.RabbitMQURL != "" {
		conn, err := mq.Dial(mq.ConnectionConfig{URL: opts.RabbitMQURL, Name: "provisio-cli", Logger: logger})
		if err != nil {
			logger.Warn("rabbitmq unavailable, events will not be published", "error", err)
		} else if err := mq.SetupTopology(ctx, conn); err != nil {
			logger.Warn("rabbitmq topology setup failed, events will not be published", "error", err)
			conn.Close()
		} else {
			sinks = append(sinks, mq.NewEventPublisher(mq.NewPublisher(conn, logger)))
			set.closers = append(set.closers, conn.Close)
		}
	}

	set.sink = orchestrator.Sinks(sinks...)
	return set, nil
}
