package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Provisio/internal/domain"
)

// EventRepo — репозиторий аудита событий мастера.
type EventRepo struct {
	pool *pgxpool.Pool
}

// NewEventRepo создаёт новый EventRepo.
func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Insert сохраняет событие. Повторная доставка того же события игнорируется.
func (r *EventRepo) Insert(ctx context.Context, ev domain.Event) error {
	query := `
		INSERT INTO wizard_events (id, run_id, site_id, type, step, queue, item, outcome, detail, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		ev.ID,
		ev.RunID,
		nullString(ev.SiteID),
		ev.Type,
		nullString(string(ev.Step)),
		nullString(string(ev.Queue)),
		nullString(ev.Item),
		nullString(string(ev.Outcome)),
		nullString(ev.Detail),
		ev.At,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListByRun возвращает события прохождения в порядке возникновения.
func (r *EventRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.Event, error) {
	query := `
		SELECT id, run_id, site_id, type, step, queue, item, outcome, detail, at
		FROM wizard_events
		WHERE run_id = $1
		ORDER BY at ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListBySite возвращает последние события сайта, новые первыми.
func (r *EventRepo) ListBySite(ctx context.Context, siteID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, run_id, site_id, type, step, queue, item, outcome, detail, at
		FROM wizard_events
		WHERE site_id = $1
		ORDER BY at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, siteID, limit)
	if err != nil {
		return nil, fmt.Errorf("list site events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// scanEvent сканирует строку в Event.
func scanEvent(rows pgx.Rows) (domain.Event, error) {
	var ev domain.Event
	var siteID, step, queue, item, outcome, detail *string

	err := rows.Scan(
		&ev.ID,
		&ev.RunID,
		&siteID,
		&ev.Type,
		&step,
		&queue,
		&item,
		&outcome,
		&detail,
		&ev.At,
	)
	if err != nil {
		return ev, fmt.Errorf("scan event: %w", err)
	}

	ev.SiteID = deref(siteID)
	ev.Step = domain.Step(deref(step))
	ev.Queue = domain.Queue(deref(queue))
	ev.Item = deref(item)
	ev.Outcome = domain.ItemOutcome(deref(outcome))
	ev.Detail = deref(detail)
	return ev, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
