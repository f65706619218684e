package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/Provisio/internal/domain"
)

// SiteStore — хранилище прогресса сайтов (repo.SiteRepo).
//
// Save сравнивает Site.Version с сохранённой и возвращает repo.ErrConflict,
// если сайт успели изменить после Get.
type SiteStore interface {
	Get(ctx context.Context, id string) (*domain.Site, error)
	Create(ctx context.Context, site *domain.Site) error
	Save(ctx context.Context, site *domain.Site) error
}

// EventStore — хранилище аудита (repo.EventRepo).
type EventStore interface {
	ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.Event, error)
	ListBySite(ctx context.Context, siteID string, limit int) ([]domain.Event, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	sites       SiteStore
	events      EventStore
	nonce       string
	redirectURL string
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Sites  SiteStore
	Events EventStore

	// Nonce — ожидаемый токен в теле /ajax. Пустой отключает проверку.
	Nonce string

	// RedirectURL — куда отправить пользователя после complete_setup (default: "/").
	RedirectURL string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = "/"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		sites:       cfg.Sites,
		events:      cfg.Events,
		nonce:       cfg.Nonce,
		redirectURL: cfg.RedirectURL,
		logger:      cfg.Logger,
	}
}
