package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Provisio/internal/domain"
)

// pgUniqueViolation — код ошибки PostgreSQL при нарушении уникальности.
const pgUniqueViolation = "23505"

// SiteRepo — репозиторий для работы с sites.
type SiteRepo struct {
	pool *pgxpool.Pool
}

// NewSiteRepo создаёт новый SiteRepo.
func NewSiteRepo(pool *pgxpool.Pool) *SiteRepo {
	return &SiteRepo{pool: pool}
}

// siteColumns — JSON-поля сайта в виде, готовом для записи.
type siteColumns struct {
	completed []byte
	meta      []byte
	methods   []byte
	payload   []byte
}

func encodeSite(site *domain.Site) (siteColumns, error) {
	var (
		cols siteColumns
		err  error
	)
	if cols.completed, err = json.Marshal(nonNil(site.CompletedSteps)); err != nil {
		return cols, fmt.Errorf("marshal completed steps: %w", err)
	}
	if site.Meta != nil {
		if cols.meta, err = json.Marshal(site.Meta); err != nil {
			return cols, fmt.Errorf("marshal meta: %w", err)
		}
	}
	if cols.methods, err = json.Marshal(nonNil(site.PaymentMethods)); err != nil {
		return cols, fmt.Errorf("marshal payment methods: %w", err)
	}
	if cols.payload, err = json.Marshal(site.Payload); err != nil {
		return cols, fmt.Errorf("marshal payload: %w", err)
	}
	return cols, nil
}

// Create создаёт новый сайт.
func (r *SiteRepo) Create(ctx context.Context, site *domain.Site) error {
	if site.CurrentStep == "" {
		site.CurrentStep = domain.StepStart
	}
	now := time.Now().UTC()
	if site.CreatedAt.IsZero() {
		site.CreatedAt = now
	}
	site.UpdatedAt = now
	site.Version = 1

	cols, err := encodeSite(site)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sites (id, current_step, completed_steps, meta, license_key, is_pro, pro_tested,
		                   campaign_id, payment_methods, payload, completed_at, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.pool.Exec(ctx, query,
		site.ID,
		site.CurrentStep,
		cols.completed,
		cols.meta,
		nullString(site.LicenseKey),
		site.IsPro,
		site.ProTested,
		nullString(site.CampaignID),
		cols.methods,
		cols.payload,
		site.CompletedAt,
		site.CreatedAt,
		site.UpdatedAt,
		site.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert site: %w", err)
	}
	return nil
}

// Get возвращает сайт по ID.
func (r *SiteRepo) Get(ctx context.Context, id string) (*domain.Site, error) {
	query := `
		SELECT id, current_step, completed_steps, meta, license_key, is_pro, pro_tested,
		       campaign_id, payment_methods, payload, completed_at, created_at, updated_at, version
		FROM sites
		WHERE id = $1
	`
	var site domain.Site
	var completed, meta, methods, payload []byte
	var licenseKey, campaignID *string

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&site.ID,
		&site.CurrentStep,
		&completed,
		&meta,
		&licenseKey,
		&site.IsPro,
		&site.ProTested,
		&campaignID,
		&methods,
		&payload,
		&site.CompletedAt,
		&site.CreatedAt,
		&site.UpdatedAt,
		&site.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan site: %w", err)
	}

	if err := unmarshalIfSet(completed, &site.CompletedSteps); err != nil {
		return nil, fmt.Errorf("unmarshal completed steps: %w", err)
	}
	if err := unmarshalIfSet(meta, &site.Meta); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}
	if err := unmarshalIfSet(methods, &site.PaymentMethods); err != nil {
		return nil, fmt.Errorf("unmarshal payment methods: %w", err)
	}
	if err := unmarshalIfSet(payload, &site.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	if licenseKey != nil {
		site.LicenseKey = *licenseKey
	}
	if campaignID != nil {
		site.CampaignID = *campaignID
	}

	return &site, nil
}

// Save обновляет прогресс сайта, если с момента Get его никто не сохранил.
//
// Проверяется site.Version: при расхождении возвращается ErrConflict и запись
// не меняется. После успешного сохранения site.Version увеличивается.
func (r *SiteRepo) Save(ctx context.Context, site *domain.Site) error {
	cols, err := encodeSite(site)
	if err != nil {
		return err
	}
	updatedAt := time.Now().UTC()

	query := `
		UPDATE sites
		SET current_step = $3, completed_steps = $4, meta = $5, license_key = $6, is_pro = $7,
		    pro_tested = $8, campaign_id = $9, payment_methods = $10, payload = $11,
		    completed_at = $12, updated_at = $13, version = version + 1
		WHERE id = $1 AND version = $2
	`
	result, err := r.pool.Exec(ctx, query,
		site.ID,
		site.Version,
		site.CurrentStep,
		cols.completed,
		cols.meta,
		nullString(site.LicenseKey),
		site.IsPro,
		site.ProTested,
		nullString(site.CampaignID),
		cols.methods,
		cols.payload,
		site.CompletedAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("update site: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.missingOrStale(ctx, site.ID)
	}

	site.Version++
	site.UpdatedAt = updatedAt
	return nil
}

// missingOrStale объясняет, почему UPDATE не затронул строк.
func (r *SiteRepo) missingOrStale(ctx context.Context, id string) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sites WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check site: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

// --- Helpers ---

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nonNil заменяет nil-срез пустым, чтобы в JSONB попадал [] вместо null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// unmarshalIfSet декодирует JSON, пропуская NULL.
func unmarshalIfSet(data []byte, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
