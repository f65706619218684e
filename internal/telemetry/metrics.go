package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shaiso/Provisio/internal/domain"
)

// Metrics — Prometheus метрики мастера.
//
// Реализует orchestrator.EventSink: счётчики обновляются по событиям.
// ObserveAction подключается к transport.Client как hook.
type Metrics struct {
	stepsEntered   *prometheus.CounterVec
	itemsProcessed *prometheus.CounterVec
	runsFinished   *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// Если reg == nil, используется prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		stepsEntered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provisio_wizard_steps_entered_total",
			Help: "Wizard steps entered, by step",
		}, []string{"step"}),
		itemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provisio_wizard_items_total",
			Help: "Queue items processed, by queue and outcome",
		}, []string{"queue", "outcome"}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provisio_wizard_runs_finished_total",
			Help: "Wizard runs that stopped, by result",
		}, []string{"result"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "provisio_wizard_action_duration_seconds",
			Help:    "Latency of wizard server actions",
			Buckets: prometheus.DefBuckets,
		}, []string{"action", "result"}),
	}

	reg.MustRegister(m.stepsEntered, m.itemsProcessed, m.runsFinished, m.actionDuration)
	return m
}

// Emit обновляет счётчики по событию мастера.
func (m *Metrics) Emit(_ context.Context, ev domain.Event) error {
	switch ev.Type {
	case domain.EventStepEntered:
		m.stepsEntered.WithLabelValues(string(ev.Step)).Inc()
	case domain.EventItemProcessed:
		m.itemsProcessed.WithLabelValues(string(ev.Queue), string(ev.Outcome)).Inc()
	case domain.EventWizardCompleted:
		m.runsFinished.WithLabelValues("completed").Inc()
	case domain.EventWizardHalted:
		m.runsFinished.WithLabelValues("halted").Inc()
	case domain.EventAwaitingConnect:
		m.runsFinished.WithLabelValues("awaiting_connect").Inc()
	}
	return nil
}

// ObserveAction записывает длительность действия.
func (m *Metrics) ObserveAction(action string, d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.actionDuration.WithLabelValues(action, result).Observe(d.Seconds())
}
