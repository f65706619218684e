package orchestrator

import (
	"context"

	"github.com/shaiso/Provisio/internal/domain"
)

// itemFunc обрабатывает один элемент очереди: не больше одного сетевого запроса.
type itemFunc func(ctx context.Context, id string) ItemResult

// dedupe удаляет повторы, сохраняя порядок первых вхождений.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// drain обрабатывает очередь по одному элементу, пока она не опустеет.
//
// Исход элемента не останавливает очередь. pending указывает на поле st,
// поэтому элементы, добавленные во время обработки, тоже будут обработаны.
func (o *Orchestrator) drain(ctx context.Context, queue domain.Queue, pending *[]string, fn itemFunc) {
	o.mutate(func(*WizardState) {
		*pending = dedupe(*pending)
	})

	o.logger.Debug("draining queue",
		"queue", queue,
		"size", len(*pending),
	)

	for {
		id, ok := o.pop(pending)
		if !ok {
			return
		}

		res := fn(ctx, id)
		res.Queue = queue
		res.ID = id
		o.record(ctx, res)
	}
}

// pop снимает первый элемент очереди.
func (o *Orchestrator) pop(pending *[]string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(*pending) == 0 {
		return "", false
	}
	id := (*pending)[0]
	*pending = (*pending)[1:]
	return id, true
}

// record сохраняет результат элемента и отправляет событие.
func (o *Orchestrator) record(ctx context.Context, res ItemResult) {
	o.mutate(func(st *WizardState) {
		st.Items = append(st.Items, res)
	})

	o.logger.Info("item processed",
		"queue", res.Queue,
		"item", res.ID,
		"outcome", res.Outcome,
	)
	o.emit(ctx, Event{
		Type:    domain.EventItemProcessed,
		Step:    o.st.CurrentStep,
		Queue:   res.Queue,
		Item:    res.ID,
		Outcome: res.Outcome,
		Detail:  res.Detail,
	})
}
