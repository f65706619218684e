package locale

import (
	"log/slog"

	"github.com/shaiso/Provisio/internal/domain"
)

// Ключи статусных сообщений.
const (
	MsgInstalling        = "installing"
	MsgInstalled         = "installed"
	MsgInstallFailed     = "install_failed"
	MsgActivating        = "activating"
	MsgActivated         = "activated"
	MsgActivateFailed    = "activate_failed"
	MsgActivatingFeature = "activating_feature"
	MsgFeatureActivated  = "feature_activated"
	MsgFeatureFailed     = "feature_failed"
	MsgFeatureRequired   = "feature_required"
	MsgSkipped           = "skipped"
	MsgMetaSaving        = "meta_saving"
	MsgMetaFailed        = "meta_failed"
	MsgLicenseChecking   = "license_checking"
	MsgLicenseValid      = "license_valid"
	MsgLicenseFailed     = "license_failed"
	MsgCampaignCreating  = "campaign_creating"
	MsgCampaignCreated   = "campaign_created"
	MsgCampaignFailed    = "campaign_failed"
	MsgPaymentsSaving    = "payments_saving"
	MsgPaymentConnect    = "payment_connect"
	MsgCompleteFailed    = "complete_failed"
)

// Data — данные для статусных шаблонов.
type Data struct {
	// ID, Name — элемент очереди.
	ID   string
	Name string

	// Detail — текст ошибки.
	Detail string

	// URL — адрес подключения провайдера.
	URL string
}

// DefaultMessages — тексты по умолчанию.
var DefaultMessages = map[string]string{
	MsgInstalling:        "Installing {{ .Name }}…",
	MsgInstalled:         "Installed {{ .Name }}.",
	MsgInstallFailed:     "Could not install {{ .Name }}: {{ default \"unknown error\" .Detail }}",
	MsgActivating:        "Activating {{ .Name }}…",
	MsgActivated:         "Activated {{ .Name }}.",
	MsgActivateFailed:    "Could not activate {{ .Name }}: {{ default \"unknown error\" .Detail }}",
	MsgActivatingFeature: "Enabling {{ .Name }}…",
	MsgFeatureActivated:  "Enabled {{ .Name }}.",
	MsgFeatureFailed:     "Could not enable {{ .Name }}: {{ default \"unknown error\" .Detail }}",
	MsgFeatureRequired:   "A Pro license is required to enable the selected features.",
	MsgSkipped:           "Skipped {{ .ID }}: no details available.",
	MsgMetaSaving:        "Saving your settings…",
	MsgMetaFailed:        "Could not save your settings: {{ default \"unknown error\" .Detail }}",
	MsgLicenseChecking:   "Checking your license…",
	MsgLicenseValid:      "License activated.",
	MsgLicenseFailed:     "License could not be activated: {{ default \"invalid key\" .Detail }}",
	MsgCampaignCreating:  "Creating your first campaign…",
	MsgCampaignCreated:   "Campaign created.",
	MsgCampaignFailed:    "Could not create the campaign: {{ default \"unknown error\" .Detail }}",
	MsgPaymentsSaving:    "Saving payment methods…",
	MsgPaymentConnect:    "Connect your payment account to finish: {{ .URL }}",
	MsgCompleteFailed:    "Setup finished, but the server was not notified: {{ default \"unknown error\" .Detail }}",
}

// DefaultHeadlines — заголовки шагов по умолчанию.
var DefaultHeadlines = map[domain.Step]domain.Headline{
	domain.StepStart:                   {Title: "Welcome", Subtitle: "Let's get your site ready."},
	domain.StepMeta:                    {Title: "Saving your settings"},
	domain.StepInstallDependencies:     {Title: "Installing plugins", Subtitle: "This may take a minute."},
	domain.StepActivateDependencies:    {Title: "Activating plugins"},
	domain.StepActivateLicense:         {Title: "Activating your license"},
	domain.StepActivateFeatures:        {Title: "Enabling features"},
	domain.StepCreateCampaign:          {Title: "Creating your first campaign"},
	domain.StepConfigurePaymentMethods: {Title: "Configuring payment methods"},
	domain.StepAlmostComplete:          {Title: "Almost done"},
	domain.StepComplete:                {Title: "You're all set!", Subtitle: "Your site is ready."},
}

// Catalog — тексты мастера: заголовки по шагам и статусные сообщения.
type Catalog struct {
	messages  map[string]string
	headlines map[domain.Step]domain.Headline
	logger    *slog.Logger
}

// NewCatalog создаёт Catalog, в котором тексты из texts перекрывают тексты по умолчанию.
func NewCatalog(texts domain.Copy, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}

	messages := make(map[string]string, len(DefaultMessages)+len(texts.Messages))
	for k, v := range DefaultMessages {
		messages[k] = v
	}
	for k, v := range texts.Messages {
		if v != "" {
			messages[k] = v
		}
	}

	headlines := make(map[domain.Step]domain.Headline, len(DefaultHeadlines))
	for k, v := range DefaultHeadlines {
		headlines[k] = v
	}
	for k, v := range texts.Headlines {
		headlines[k] = v
	}

	return &Catalog{
		messages:  messages,
		headlines: headlines,
		logger:    logger,
	}
}

// Headline возвращает заголовок шага. Для шагов без текста заголовком служит имя шага.
func (c *Catalog) Headline(step domain.Step) domain.Headline {
	if h, ok := c.headlines[step]; ok {
		return h
	}
	return domain.Headline{Title: string(step)}
}

// Message рендерит сообщение по ключу.
//
// Неизвестный ключ возвращается как есть. При ошибке шаблона
// возвращается сырая строка.
func (c *Catalog) Message(key string, data any) string {
	tmpl, ok := c.messages[key]
	if !ok {
		return key
	}

	text, err := Render(tmpl, data)
	if err != nil {
		c.logger.Warn("failed to render message",
			"key", key,
			"error", err,
		)
		return tmpl
	}
	return text
}
