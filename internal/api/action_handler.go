package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shaiso/Provisio/internal/domain"
	"github.com/shaiso/Provisio/internal/repo"
	"github.com/shaiso/Provisio/internal/telemetry"
	"github.com/shaiso/Provisio/internal/transport"
)

// licensePattern — формат лицензионного ключа.
var licensePattern = regexp.MustCompile(`^[A-Z0-9]{6,}$`)

// proPrefix — ключи с этим префиксом открывают платный тариф.
const proPrefix = "PRO"

// rejection — отказ в действии, уходит клиенту как success:false.
type rejection struct {
	msg string
}

func (r *rejection) Error() string { return r.msg }

func reject(format string, args ...any) error {
	return &rejection{msg: fmt.Sprintf(format, args...)}
}

// actionFunc выполняет действие над сайтом и возвращает data ответа.
type actionFunc func(h *Handler, site *domain.Site, payload json.RawMessage) (any, error)

var actions = map[domain.Action]actionFunc{
	domain.ActionSaveMeta:          (*Handler).saveMeta,
	domain.ActionInstallPlugin:     (*Handler).installPlugin,
	domain.ActionActivatePlugin:    (*Handler).activatePlugin,
	domain.ActionActivateLicense:   (*Handler).activateLicense,
	domain.ActionActivateFeature:   (*Handler).activateFeature,
	domain.ActionCreateCampaign:    (*Handler).createCampaign,
	domain.ActionConfigurePayments: (*Handler).configurePayments,
	domain.ActionCompleteSetup:     (*Handler).completeSetup,
}

// HandleAction выполняет действие мастера и отмечает шаг сайта.
// POST /ajax
func (h *Handler) HandleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ActionFailed(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if h.nonce != "" && req.Nonce != h.nonce {
		h.logger.Warn("action rejected: bad nonce", "action", req.Action, "site_id", req.SiteID)
		ActionFailed(w, http.StatusForbidden, "invalid nonce")
		return
	}

	fn, ok := actions[req.Action]
	if !ok {
		ActionFailed(w, http.StatusBadRequest, fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	var (
		site *domain.Site
		data any
		err  error
	)
	for attempt := 1; ; attempt++ {
		site, data, err = h.apply(r.Context(), req, fn)
		if !errors.Is(err, repo.ErrConflict) || attempt == maxActionAttempts {
			break
		}
		h.logger.Debug("site changed concurrently, retrying action",
			"site_id", req.SiteID, "action", req.Action, "attempt", attempt)
	}

	var rej *rejection
	switch {
	case err == nil:
		telemetry.WithSiteID(h.logger, site.ID).Info("action completed",
			"action", req.Action, "current_step", site.CurrentStep)
		Envelope(w, http.StatusOK, transport.Success(data))
	case errors.Is(err, repo.ErrNotFound):
		ActionFailed(w, http.StatusNotFound, fmt.Sprintf("unknown site: %s", req.SiteID))
	case errors.As(err, &rej):
		h.logger.Info("action rejected", "site_id", req.SiteID, "action", req.Action, "reason", rej.msg)
		ActionFailed(w, http.StatusOK, rej.msg)
	case errors.Is(err, repo.ErrConflict):
		h.logger.Warn("action gave up on concurrent updates", "site_id", req.SiteID, "action", req.Action)
		ActionFailed(w, http.StatusConflict, "site is being updated, retry the action")
	default:
		h.logger.Error("action failed", "site_id", req.SiteID, "action", req.Action, "error", err)
		ActionFailed(w, http.StatusInternalServerError, "internal server error")
	}
}

// maxActionAttempts — сколько раз действие перечитывает сайт при ErrConflict.
const maxActionAttempts = 3

// apply читает сайт, выполняет действие, отмечает шаг и сохраняет сайт.
// Save отклоняет запись, если сайт изменили после Get (repo.ErrConflict).
func (h *Handler) apply(ctx context.Context, req actionRequest, fn actionFunc) (*domain.Site, any, error) {
	site, err := h.sites.Get(ctx, req.SiteID)
	if err != nil {
		return nil, nil, err
	}

	data, err := fn(h, site, req.Payload)
	if err != nil {
		return nil, nil, err
	}

	site.MarkStep(req.Action.Step())
	if err := h.sites.Save(ctx, site); err != nil {
		return nil, nil, err
	}
	return site, data, nil
}

// decodePayload разбирает payload действия. Пустой payload даёт нулевое значение.
func decodePayload[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, reject("invalid payload: %v", err)
	}
	return v, nil
}

func (h *Handler) saveMeta(site *domain.Site, raw json.RawMessage) (any, error) {
	p, err := decodePayload[saveMetaPayload](raw)
	if err != nil {
		return nil, err
	}

	if site.Meta == nil {
		site.Meta = make(map[string]any, len(p.Meta))
	}
	for k, v := range p.Meta {
		site.Meta[k] = v
	}

	// Пройденный мастер сразу ведём на финальный экран.
	data := map[string]any{"saved": true}
	if site.IsFinished() {
		data["next_step"] = domain.StepComplete
	}
	return data, nil
}

func (h *Handler) installPlugin(site *domain.Site, raw json.RawMessage) (any, error) {
	p, err := decodePayload[pluginPayload](raw)
	if err != nil {
		return nil, err
	}

	item, ok := site.Payload.PluginInfo(p.Plugin)
	if !ok {
		return nil, reject("unknown plugin: %s", p.Plugin)
	}

	basename := item.Basename
	if basename == "" {
		slug := item.Slug
		if slug == "" {
			slug = item.ID
		}
		basename = slug + "/" + slug + ".php"
	}

	return map[string]any{
		"basename": basename,
		"message":  fmt.Sprintf("%s installed", item.DisplayName()),
	}, nil
}

func (h *Handler) activatePlugin(site *domain.Site, raw json.RawMessage) (any, error) {
	p, err := decodePayload[pluginPayload](raw)
	if err != nil {
		return nil, err
	}

	item, ok := site.Payload.PluginInfo(p.Plugin)
	if !ok {
		return nil, reject("unknown plugin: %s", p.Plugin)
	}

	return map[string]any{
		"activated": true,
		"message":   fmt.Sprintf("%s activated", item.DisplayName()),
	}, nil
}

func (h *Handler) activateLicense(site *domain.Site, raw json.RawMessage) (any, error) {
	p, err := decodePayload[licensePayload](raw)
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(p.LicenseKey)
	if !licensePattern.MatchString(key) {
		return nil, reject("invalid license key")
	}

	site.LicenseKey = key
	site.IsPro = strings.HasPrefix(key, proPrefix)
	site.ProTested = true

	return map[string]any{
		"valid":  true,
		"is_pro": site.IsPro,
	}, nil
}

func (h *Handler) activateFeature(site *domain.Site, raw json.RawMessage) (any, error) {
	p, err := decodePayload[featurePayload](raw)
	if err != nil {
		return nil, err
	}

	item, ok := site.Payload.Feature(p.Feature)
	if !ok {
		return nil, reject("unknown feature: %s", p.Feature)
	}
	if !site.IsPro {
		return nil, reject("pro tier required for %s", item.DisplayName())
	}

	return map[string]any{
		"activated": true,
		"message":   fmt.Sprintf("%s activated", item.DisplayName()),
	}, nil
}

func (h *Handler) createCampaign(site *domain.Site, raw json.RawMessage) (any, error) {
	p, err := decodePayload[campaignPayload](raw)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(p.Title) == "" {
		return nil, reject("campaign title is required")
	}
	if p.Goal < 0 {
		return nil, reject("campaign goal must not be negative")
	}

	site.CampaignID = uuid.NewString()

	return map[string]any{
		"campaign_id": site.CampaignID,
	}, nil
}

func (h *Handler) configurePayments(site *domain.Site, raw json.RawMessage) (any, error) {
	p, err := decodePayload[paymentsPayload](raw)
	if err != nil {
		return nil, err
	}

	site.PaymentMethods = slices.Clone(p.PaymentMethods)

	data := map[string]any{"saved": true}
	if url := site.Payload.ConnectURL; url != "" && len(site.PaymentMethods) > 0 {
		data["connect_url"] = url
	}
	return data, nil
}

func (h *Handler) completeSetup(site *domain.Site, raw json.RawMessage) (any, error) {
	p, err := decodePayload[completePayload](raw)
	if err != nil {
		return nil, err
	}

	if p.LicenseIssue || p.FeatureIssue {
		h.logger.Info("wizard completed with issues",
			"site_id", site.ID,
			"license_issue", p.LicenseIssue,
			"feature_issue", p.FeatureIssue,
		)
	}

	return map[string]any{
		"redirect_url": h.redirectURL,
	}, nil
}
