package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shaiso/Provisio/internal/config"
	"github.com/shaiso/Provisio/internal/domain"
)

// CreateSite регистрирует сайт со стартовой конфигурацией мастера.
// POST /api/v1/sites
func (h *Handler) CreateSite(w http.ResponseWriter, r *http.Request) {
	var req CreateSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		BadRequest(w, "id is required")
		return
	}
	if err := config.ValidatePayload(&req.Payload); err != nil {
		BadRequest(w, err.Error())
		return
	}

	site := &domain.Site{
		ID:          req.ID,
		CurrentStep: domain.StepStart,
		Payload:     req.Payload,
	}
	if req.Payload.CurrentStep.IsValid() {
		site.CurrentStep = req.Payload.CurrentStep
	}

	err := h.sites.Create(r.Context(), site)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	h.logger.Info("site registered", "site_id", site.ID, "current_step", site.CurrentStep)
	Created(w, SiteFromDomain(site))
}

// GetSite возвращает прогресс сайта.
// GET /api/v1/sites/{id}
func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	site, err := h.sites.Get(r.Context(), r.PathValue("id"))
	if HandleRepoError(w, h.logger, err, "site not found") {
		return
	}

	Success(w, SiteFromDomain(site))
}

// GetWizard возвращает стартовую конфигурацию мастера с актуальным шагом.
// GET /api/v1/sites/{id}/wizard
func (h *Handler) GetWizard(w http.ResponseWriter, r *http.Request) {
	site, err := h.sites.Get(r.Context(), r.PathValue("id"))
	if HandleRepoError(w, h.logger, err, "site not found") {
		return
	}

	Success(w, site.StartupPayload())
}

// ListSiteEvents возвращает последние события сайта.
// GET /api/v1/sites/{id}/events?limit=...
func (h *Handler) ListSiteEvents(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), 100)

	events, err := h.events.ListBySite(r.Context(), r.PathValue("id"), limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	if events == nil {
		events = []domain.Event{}
	}

	List(w, events, len(events))
}

// ListRunEvents возвращает события одного прохождения мастера.
// GET /api/v1/runs/{id}/events
func (h *Handler) ListRunEvents(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	events, err := h.events.ListByRun(r.Context(), runID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	if events == nil {
		events = []domain.Event{}
	}

	List(w, events, len(events))
}

// parseLimit парсит limit из query, возвращает def при ошибке.
func parseLimit(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
