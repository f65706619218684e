package api

import (
	"encoding/json"
	"time"

	"github.com/shaiso/Provisio/internal/domain"
)

// actionRequest — тело POST /ajax.
type actionRequest struct {
	Action  domain.Action   `json:"action"`
	Nonce   string          `json:"nonce"`
	SiteID  string          `json:"site_id"`
	Payload json.RawMessage `json:"payload"`
}

// Payload-структуры действий.

type saveMetaPayload struct {
	Meta map[string]any `json:"meta"`
}

type pluginPayload struct {
	Plugin   string `json:"plugin"`
	Slug     string `json:"slug"`
	Basename string `json:"basename"`
}

type licensePayload struct {
	LicenseKey string `json:"license_key"`
}

type featurePayload struct {
	Feature string `json:"feature"`
}

type campaignPayload struct {
	Title       string  `json:"title"`
	Goal        float64 `json:"goal"`
	Description string  `json:"description"`
}

type paymentsPayload struct {
	PaymentMethods []string `json:"payment_methods"`
}

type completePayload struct {
	LicenseIssue bool   `json:"license_issue"`
	FeatureIssue bool   `json:"feature_issue"`
	CampaignID   string `json:"campaign_id"`
}

// Site DTOs

// CreateSiteRequest — запрос на регистрацию сайта.
type CreateSiteRequest struct {
	ID      string                `json:"id"`
	Payload domain.StartupPayload `json:"payload"`
}

// SiteResponse — ответ с прогрессом сайта.
type SiteResponse struct {
	ID             string        `json:"id"`
	CurrentStep    domain.Step   `json:"current_step"`
	CompletedSteps []domain.Step `json:"completed_steps"`
	IsPro          bool          `json:"is_pro"`
	CampaignID     string        `json:"campaign_id,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// SiteFromDomain конвертирует domain.Site в SiteResponse.
func SiteFromDomain(s *domain.Site) SiteResponse {
	steps := s.CompletedSteps
	if steps == nil {
		steps = []domain.Step{}
	}
	return SiteResponse{
		ID:             s.ID,
		CurrentStep:    s.CurrentStep,
		CompletedSteps: steps,
		IsPro:          s.IsPro,
		CampaignID:     s.CampaignID,
		CompletedAt:    s.CompletedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}
