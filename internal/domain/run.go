package domain

import (
	"time"
)

// Site — прогресс мастера для одного сайта, как его видит бэкенд.
//
// Сервер ведёт собственную запись шагов независимо от клиента: каждое
// успешное действие отмечает соответствующий шаг.
type Site struct {
	// ID — идентификатор сайта.
	ID string `json:"id"`

	// CurrentStep — последний отмеченный шаг.
	CurrentStep Step `json:"current_step"`

	// CompletedSteps — отмеченные шаги в порядке прохождения.
	CompletedSteps []Step `json:"completed_steps,omitempty"`

	// Meta — сохранённые настройки с первых экранов.
	Meta map[string]any `json:"meta,omitempty"`

	// LicenseKey, IsPro — результат последней проверки лицензии.
	LicenseKey string `json:"license_key,omitempty"`
	IsPro      bool   `json:"is_pro"`
	ProTested  bool   `json:"pro_tested"`

	// CampaignID — созданная кампания.
	CampaignID string `json:"campaign_id,omitempty"`

	// PaymentMethods — сохранённые способы оплаты.
	PaymentMethods []string `json:"payment_methods,omitempty"`

	// Payload — стартовая конфигурация, которую получает клиент.
	Payload StartupPayload `json:"payload"`

	// CompletedAt — время завершения мастера. Nil, пока мастер не пройден.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Version растёт при каждом сохранении. Save с устаревшей версией не применяется.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsFinished возвращает true, если мастер пройден.
func (s *Site) IsFinished() bool {
	return s.CurrentStep.IsTerminal()
}

// MarkStep отмечает шаг пройденным.
//
// Шаги раньше текущего игнорируются, повторная отметка не дублирует запись.
// Возвращает true, если запись изменилась.
func (s *Site) MarkStep(step Step) bool {
	if !step.IsValid() || step.Index() < s.CurrentStep.Index() {
		return false
	}
	for _, done := range s.CompletedSteps {
		if done == step {
			return false
		}
	}
	s.CurrentStep = step
	s.CompletedSteps = append(s.CompletedSteps, step)
	if step.IsTerminal() {
		now := time.Now()
		s.CompletedAt = &now
	}
	return true
}

// StartupPayload возвращает конфигурацию для клиента с актуальным прогрессом.
func (s *Site) StartupPayload() StartupPayload {
	p := s.Payload
	p.SiteID = s.ID
	p.CurrentStep = s.CurrentStep
	p.ChecklistCompleted = p.ChecklistCompleted || s.IsFinished()
	if s.ProTested {
		p.ProTested = true
		p.IsPro = s.IsPro
	}
	return p
}
