package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType — тип события мастера.
type EventType string

const (
	EventWizardStarted   EventType = "wizard.started"
	EventStepEntered     EventType = "step.entered"
	EventItemProcessed   EventType = "item.processed"
	EventWizardHalted    EventType = "wizard.halted"
	EventAwaitingConnect EventType = "wizard.awaiting_connect"
	EventWizardCompleted EventType = "wizard.completed"
)

// Event — запись о том, что произошло во время прохождения мастера.
//
// События рассылаются в метрики, RabbitMQ и локальный журнал.
type Event struct {
	// ID — уникальный идентификатор события.
	ID uuid.UUID `json:"id"`

	// RunID — идентификатор прохождения мастера.
	RunID uuid.UUID `json:"run_id"`

	// SiteID — сайт, если известен.
	SiteID string `json:"site_id,omitempty"`

	Type EventType `json:"type"`
	Step Step      `json:"step,omitempty"`

	// Queue, Item, Outcome — заполняются для item.processed.
	Queue   Queue       `json:"queue,omitempty"`
	Item    string      `json:"item,omitempty"`
	Outcome ItemOutcome `json:"outcome,omitempty"`

	// Detail — текст ошибки или причина остановки.
	Detail string `json:"detail,omitempty"`

	At time.Time `json:"at"`
}
