package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool открывает пул соединений и проверяет доступность БД.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// schema — таблицы бэкенда мастера.
const schema = `
CREATE TABLE IF NOT EXISTS sites (
	id              TEXT PRIMARY KEY,
	current_step    TEXT        NOT NULL DEFAULT 'start',
	completed_steps JSONB       NOT NULL DEFAULT '[]',
	meta            JSONB,
	license_key     TEXT,
	is_pro          BOOLEAN     NOT NULL DEFAULT FALSE,
	pro_tested      BOOLEAN     NOT NULL DEFAULT FALSE,
	campaign_id     TEXT,
	payment_methods JSONB       NOT NULL DEFAULT '[]',
	payload         JSONB       NOT NULL DEFAULT '{}',
	completed_at    TIMESTAMPTZ,
	version         BIGINT      NOT NULL DEFAULT 1,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

ALTER TABLE sites ADD COLUMN IF NOT EXISTS version BIGINT NOT NULL DEFAULT 1;

CREATE TABLE IF NOT EXISTS wizard_events (
	id       UUID PRIMARY KEY,
	run_id   UUID        NOT NULL,
	site_id  TEXT,
	type     TEXT        NOT NULL,
	step     TEXT,
	queue    TEXT,
	item     TEXT,
	outcome  TEXT,
	detail   TEXT,
	at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS wizard_events_run_idx ON wizard_events (run_id, at);
CREATE INDEX IF NOT EXISTS wizard_events_site_idx ON wizard_events (site_id, at);
`

// Migrate создаёт таблицы, если их ещё нет.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
