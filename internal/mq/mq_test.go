package mq

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Provisio/internal/domain"
)

// --- EventMessage Tests ---

func TestEventMessage_KeepsIDAndTime(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ev := domain.Event{
		ID:    uuid.New(),
		RunID: uuid.New(),
		Type:  domain.EventStepEntered,
		Step:  domain.StepMeta,
		At:    at,
	}

	msg := EventMessage(ev)

	if msg.ID != ev.ID.String() {
		t.Errorf("expected id %s, got %s", ev.ID, msg.ID)
	}
	if msg.Type != MessageTypeWizardEvent {
		t.Errorf("expected type %s, got %s", MessageTypeWizardEvent, msg.Type)
	}
	if !msg.Timestamp.Equal(at) {
		t.Errorf("expected timestamp %v, got %v", at, msg.Timestamp)
	}
}

func TestEventMessage_FillsMissing(t *testing.T) {
	msg := EventMessage(domain.Event{Type: domain.EventWizardStarted})

	if _, err := uuid.Parse(msg.ID); err != nil {
		t.Errorf("expected generated uuid, got %q", msg.ID)
	}
	if msg.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

// --- HandleEvents Tests ---

// roundTrip имитирует доставку: сообщение проходит через JSON, как в очереди.
func roundTrip(t *testing.T, msg *Message) *Delivery {
	t.Helper()
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Message
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &Delivery{Message: decoded}
}

func TestHandleEvents_DecodesEvent(t *testing.T) {
	ev := domain.Event{
		ID:      uuid.New(),
		RunID:   uuid.New(),
		SiteID:  "site-1",
		Type:    domain.EventItemProcessed,
		Step:    domain.StepInstallDependencies,
		Queue:   domain.QueueInstall,
		Item:    "forms",
		Outcome: domain.ItemFailed,
		Detail:  "boom",
		At:      time.Now().UTC().Truncate(time.Second),
	}

	var got domain.Event
	h := HandleEvents(func(_ context.Context, e domain.Event) error {
		got = e
		return nil
	})

	if err := h(context.Background(), roundTrip(t, EventMessage(ev))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.ID != ev.ID || got.RunID != ev.RunID {
		t.Errorf("ids mismatch: %+v", got)
	}
	if got.Queue != domain.QueueInstall || got.Item != "forms" || got.Outcome != domain.ItemFailed {
		t.Errorf("item fields mismatch: %+v", got)
	}
	if !got.At.Equal(ev.At) {
		t.Errorf("expected at %v, got %v", ev.At, got.At)
	}
}

func TestHandleEvents_IgnoresOtherTypes(t *testing.T) {
	called := false
	h := HandleEvents(func(context.Context, domain.Event) error {
		called = true
		return nil
	})

	d := &Delivery{Message: Message{ID: "x", Type: "something.else"}}
	if err := h(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("handler should not be called for foreign messages")
	}
}

func TestHandleEvents_PropagatesError(t *testing.T) {
	want := errors.New("db down")
	h := HandleEvents(func(context.Context, domain.Event) error { return want })

	err := h(context.Background(), roundTrip(t, EventMessage(domain.Event{Type: domain.EventWizardCompleted})))
	if !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

// --- Consumer Tests ---

func TestSettle(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name        string
		err         error
		redelivered bool
		want        settlement
	}{
		{"ok", nil, false, settleAck},
		{"ok redelivered", nil, true, settleAck},
		{"first failure", boom, false, settleRequeue},
		{"second failure", boom, true, settleDeadLetter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := settle(tt.err, tt.redelivered); got != tt.want {
				t.Errorf("settle() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewConsumer_Defaults(t *testing.T) {
	c := NewConsumer(nil, nil, ConsumerConfig{})
	if c.queue != string(QueueWizardEvents) {
		t.Errorf("expected default queue %s, got %s", QueueWizardEvents, c.queue)
	}
	if c.prefetch != 1 {
		t.Errorf("expected prefetch 1, got %d", c.prefetch)
	}
}

// --- Topology Tests ---

func TestTopology_EventsQueueHasDLQ(t *testing.T) {
	for _, q := range queues {
		if q.name != QueueWizardEvents {
			continue
		}
		if q.args["x-dead-letter-exchange"] != string(ExchangeDLQ) {
			t.Errorf("expected DLQ exchange, got %v", q.args["x-dead-letter-exchange"])
		}
		return
	}
	t.Fatal("wizard.events queue not declared")
}

func TestTopologyInfo(t *testing.T) {
	info := TopologyInfo()
	for _, want := range []string{string(ExchangeWizard), string(QueueWizardEvents), string(QueueDLQEvents)} {
		if !strings.Contains(info, want) {
			t.Errorf("topology info missing %q", want)
		}
	}
}

// --- Connection Tests ---

func TestBackoff(t *testing.T) {
	limit := 30 * time.Second
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{4, 16 * time.Second},
		{5, limit},
		{100, limit},
	}

	for _, tt := range tests {
		if got := backoff(tt.attempt, limit); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestWithChannel_NoChannel(t *testing.T) {
	c := &Connection{}
	called := false

	err := c.WithChannel(context.Background(), func(*amqp.Channel) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrNoChannel) {
		t.Errorf("expected ErrNoChannel, got %v", err)
	}
	if called {
		t.Error("fn must not be called without a channel")
	}
	if c.Healthy() {
		t.Error("connection without channel must not be healthy")
	}
}

func TestWithChannel_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := (&Connection{}).WithChannel(ctx, func(*amqp.Channel) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
