package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Provisio/internal/domain"
	_ "modernc.org/sqlite"
)

// ErrNotFound — прохождение не найдено в журнале.
var ErrNotFound = errors.New("run not found in journal")

// Статусы прохождения в журнале.
const (
	StatusRunning         = "running"
	StatusCompleted       = "completed"
	StatusHalted          = "halted"
	StatusAwaitingConnect = "awaiting_connect"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	site_id    TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	final_step TEXT NOT NULL DEFAULT '',
	started_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id      TEXT PRIMARY KEY,
	run_id  TEXT NOT NULL REFERENCES runs(run_id),
	type    TEXT NOT NULL,
	step    TEXT NOT NULL DEFAULT '',
	queue   TEXT NOT NULL DEFAULT '',
	item    TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL DEFAULT '',
	detail  TEXT NOT NULL DEFAULT '',
	at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, at);
`

// Run — сводка одного прохождения.
type Run struct {
	RunID     uuid.UUID   `json:"run_id"`
	SiteID    string      `json:"site_id,omitempty"`
	Status    string      `json:"status"`
	FinalStep domain.Step `json:"final_step,omitempty"`
	Events    int         `json:"events"`
	StartedAt time.Time   `json:"started_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Store — журнал в SQLite.
type Store struct {
	db *sql.DB
}

// Open открывает (и при необходимости создаёт) журнал.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close закрывает журнал.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Emit сохраняет событие и обновляет сводку прохождения.
func (s *Store) Emit(ctx context.Context, ev domain.Event) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	at := ev.At.UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, site_id, status, final_step, started_at, updated_at)
		VALUES (?, ?, ?, '', ?, ?)
		ON CONFLICT (run_id) DO NOTHING`,
		ev.RunID.String(), ev.SiteID, StatusRunning, at, at,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, run_id, type, step, queue, item, outcome, detail, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID.String(), ev.RunID.String(), string(ev.Type), string(ev.Step),
		string(ev.Queue), ev.Item, string(ev.Outcome), ev.Detail, at,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	finalStep := ""
	if ev.Type == domain.EventStepEntered {
		finalStep = string(ev.Step)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE runs SET
			status = COALESCE(NULLIF(?, ''), status),
			final_step = COALESCE(NULLIF(?, ''), final_step),
			updated_at = MAX(updated_at, ?)
		WHERE run_id = ?`,
		statusFor(ev.Type), finalStep, at, ev.RunID.String(),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	return tx.Commit()
}

// statusFor возвращает статус прохождения после события или "" без изменений.
func statusFor(t domain.EventType) string {
	switch t {
	case domain.EventWizardStarted, domain.EventStepEntered:
		return StatusRunning
	case domain.EventWizardCompleted:
		return StatusCompleted
	case domain.EventWizardHalted:
		return StatusHalted
	case domain.EventAwaitingConnect:
		return StatusAwaitingConnect
	default:
		return ""
	}
}

// ListRuns возвращает последние прохождения, новые первыми.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.site_id, r.status, r.final_step, r.started_at, r.updated_at,
		       (SELECT COUNT(*) FROM events e WHERE e.run_id = r.run_id)
		FROM runs r
		ORDER BY r.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                    Run
			runID, finalStep     string
			startedAt, updatedAt int64
		)
		if err := rows.Scan(&runID, &r.SiteID, &r.Status, &finalStep, &startedAt, &updatedAt, &r.Events); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.RunID, err = uuid.Parse(runID)
		if err != nil {
			return nil, fmt.Errorf("parse run id: %w", err)
		}
		r.FinalStep = domain.Step(finalStep)
		r.StartedAt = time.UnixMilli(startedAt).UTC()
		r.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Events возвращает события прохождения по порядку.
func (s *Store) Events(ctx context.Context, runID uuid.UUID) ([]domain.Event, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE run_id = ?`, runID.String()).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.type, e.step, e.queue, e.item, e.outcome, e.detail, e.at, r.site_id
		FROM events e JOIN runs r ON r.run_id = e.run_id
		WHERE e.run_id = ?
		ORDER BY e.at, e.rowid`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			id, typ, step, queue, outcome string
			at                            int64
		)
		ev := domain.Event{RunID: runID}
		if err := rows.Scan(&id, &typ, &step, &queue, &ev.Item, &outcome, &ev.Detail, &at, &ev.SiteID); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse event id %q: %w", id, err)
		}
		ev.Type = domain.EventType(typ)
		ev.Step = domain.Step(step)
		ev.Queue = domain.Queue(queue)
		ev.Outcome = domain.ItemOutcome(outcome)
		ev.At = time.UnixMilli(at).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}
