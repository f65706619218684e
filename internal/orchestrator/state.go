package orchestrator

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Provisio/internal/domain"
)

// FeatureGate — чем закончился шаг activateFeatures.
type FeatureGate string

const (
	// FeatureGateNone — функции не запрашивались.
	FeatureGateNone FeatureGate = "NONE"

	// FeatureGateProRequired — функции запрошены, но тариф их не позволяет.
	// Запросы не отправляются, FeatureIssue не выставляется.
	FeatureGateProRequired FeatureGate = "PRO_REQUIRED"

	// FeatureGateAttempted — очередь функций обработана.
	FeatureGateAttempted FeatureGate = "ATTEMPTED"
)

// ItemResult — результат обработки одного элемента очереди.
type ItemResult struct {
	Queue   domain.Queue       `json:"queue"`
	ID      string             `json:"id"`
	Name    string             `json:"name,omitempty"`
	Outcome domain.ItemOutcome `json:"outcome"`
	Detail  string             `json:"detail,omitempty"`
}

// WizardState — состояние одного прохождения мастера.
//
// Создаётся из StartupPayload и изменяется только горутиной,
// выполняющей Run/ConfirmConnect.
type WizardState struct {
	// CurrentStep — текущий шаг. Пустой до первого advanceTo.
	CurrentStep domain.Step

	// Очереди. Дубликаты удаляются перед обработкой.
	PendingInstalls    []string
	PendingActivations []string
	PendingFeatures    []string

	// Basenames — handle активации, обновлённые ответами на установку.
	Basenames map[string]string

	LicenseKey   string
	LicenseIssue bool
	FeatureIssue bool
	FeatureGate  FeatureGate

	PaymentMethods        []string
	ConnectURL            string
	SkipCampaign          bool
	ChecklistCompleted    bool
	ReturningFromRedirect bool
	ProTested             bool
	IsPro                 bool

	// ServerNextStep — шаг, предложенный сервером после meta и допущенный CanJumpTo.
	ServerNextStep domain.Step

	CampaignID  string
	RedirectURL string

	// Visited — пройденные шаги по порядку.
	Visited []domain.Step

	// Items — результаты обработки элементов всех очередей.
	Items []ItemResult

	Halted          bool
	HaltReason      string
	AwaitingConnect bool
	Completed       bool
}

// newWizardState создаёт состояние из стартовой конфигурации.
func newWizardState(p *domain.StartupPayload) *WizardState {
	return &WizardState{
		PendingInstalls:       slices.Clone(p.Install),
		PendingActivations:    slices.Clone(p.Activate),
		PendingFeatures:       slices.Clone(p.Features),
		Basenames:             make(map[string]string),
		LicenseKey:            p.LicenseKey,
		FeatureGate:           FeatureGateNone,
		PaymentMethods:        slices.Clone(p.PaymentMethods),
		ConnectURL:            p.ConnectURL,
		SkipCampaign:          p.SkipCampaign,
		ChecklistCompleted:    p.ChecklistCompleted,
		ReturningFromRedirect: p.ReturningFromRedirect,
		ProTested:             p.ProTested,
		IsPro:                 p.IsPro,
	}
}

// clone возвращает независимую копию состояния.
func (s *WizardState) clone() WizardState {
	c := *s
	c.PendingInstalls = slices.Clone(s.PendingInstalls)
	c.PendingActivations = slices.Clone(s.PendingActivations)
	c.PendingFeatures = slices.Clone(s.PendingFeatures)
	c.PaymentMethods = slices.Clone(s.PaymentMethods)
	c.Visited = slices.Clone(s.Visited)
	c.Items = slices.Clone(s.Items)
	c.Basenames = make(map[string]string, len(s.Basenames))
	for k, v := range s.Basenames {
		c.Basenames[k] = v
	}
	return c
}

// Summary — итог прохождения мастера (или его текущей части).
type Summary struct {
	RunID           uuid.UUID     `json:"run_id"`
	FinalStep       domain.Step   `json:"final_step"`
	Visited         []domain.Step `json:"visited"`
	Completed       bool          `json:"completed"`
	Halted          bool          `json:"halted"`
	HaltReason      string        `json:"halt_reason,omitempty"`
	AwaitingConnect bool          `json:"awaiting_connect"`
	ConnectURL      string        `json:"connect_url,omitempty"`
	LicenseIssue    bool          `json:"license_issue"`
	FeatureIssue    bool          `json:"feature_issue"`
	FeatureGate     FeatureGate   `json:"feature_gate"`
	CampaignID      string        `json:"campaign_id,omitempty"`
	RedirectURL     string        `json:"redirect_url,omitempty"`
	Items           []ItemResult  `json:"items,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// Counts возвращает количество элементов по исходам.
func (s *Summary) Counts() map[domain.ItemOutcome]int {
	counts := make(map[domain.ItemOutcome]int)
	for _, it := range s.Items {
		counts[it.Outcome]++
	}
	return counts
}
