package orchestrator

import (
	"context"
	"errors"

	"github.com/shaiso/Provisio/internal/domain"
)

// Event — событие прохождения мастера.
type Event = domain.Event

// EventSink принимает события мастера.
//
// Реализации: telemetry.Metrics, mq.EventPublisher, journal.Store.
// Ошибка sink логируется и не влияет на мастер.
type EventSink interface {
	Emit(ctx context.Context, ev Event) error
}

// SinkFunc — адаптер функции к EventSink.
type SinkFunc func(ctx context.Context, ev Event) error

// Emit вызывает f(ctx, ev).
func (f SinkFunc) Emit(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// multiSink рассылает событие во все sinks.
type multiSink []EventSink

// Sinks объединяет несколько sinks в один. Nil-значения пропускаются.
func Sinks(sinks ...EventSink) EventSink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Emit отправляет событие во все sinks, даже если часть из них вернула ошибку.
func (m multiSink) Emit(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// nopSink — sink по умолчанию.
type nopSink struct{}

func (nopSink) Emit(context.Context, Event) error { return nil }
