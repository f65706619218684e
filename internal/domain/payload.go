package domain

// StartupPayload — конфигурация, которую мастер читает один раз при запуске.
//
// После чтения не изменяется: всё изменяемое состояние живёт в WizardState оркестратора.
type StartupPayload struct {
	// SiteID — идентификатор сайта на бэкенде.
	SiteID string `json:"site_id,omitempty" toml:"site_id"`

	// CurrentStep — шаг, сохранённый сервером с прошлого визита.
	CurrentStep Step `json:"current_step,omitempty" toml:"current_step"`

	// Install, Activate, Features — упорядоченные списки идентификаторов.
	// Могут содержать дубликаты, оркестратор их убирает.
	Install  []string `json:"install,omitempty" toml:"install"`
	Activate []string `json:"activate,omitempty" toml:"activate"`
	Features []string `json:"features,omitempty" toml:"features"`

	// Plugins — метаданные плагинов по идентификатору.
	Plugins map[string]Item `json:"plugins,omitempty" toml:"plugins"`

	// FeatureInfo — метаданные функций по идентификатору.
	FeatureInfo map[string]Item `json:"feature_info,omitempty" toml:"feature_info"`

	// LicenseKey — введённый ключ. Пустой ключ означает пропуск activateLicense.
	LicenseKey string `json:"license_key,omitempty" toml:"license_key"`

	// PaymentMethods — выбранные способы оплаты.
	PaymentMethods []string `json:"payment_methods,omitempty" toml:"payment_methods"`

	// ConnectURL — адрес подключения платёжного провайдера.
	ConnectURL string `json:"connect_url,omitempty" toml:"connect_url"`

	SkipCampaign          bool `json:"skip_campaign,omitempty" toml:"skip_campaign"`
	ChecklistCompleted    bool `json:"checklist_completed,omitempty" toml:"checklist_completed"`
	ReturningFromRedirect bool `json:"returning_from_redirect,omitempty" toml:"returning_from_redirect"`

	// ProTested — тариф уже проверялся; вместе с IsPro=false означает,
	// что платные функции недоступны.
	ProTested bool `json:"pro_tested,omitempty" toml:"pro_tested"`
	IsPro     bool `json:"is_pro,omitempty" toml:"is_pro"`

	// Meta — настройки с первых экранов, сохраняются шагом meta.
	Meta map[string]any `json:"meta,omitempty" toml:"meta"`

	// Campaign — черновик первой кампании.
	Campaign CampaignDraft `json:"campaign" toml:"campaign"`

	// Copy — локализованные тексты.
	Copy Copy `json:"copy" toml:"copy"`
}

// CampaignDraft — данные для создания первой кампании.
type CampaignDraft struct {
	Title       string  `json:"title,omitempty" toml:"title"`
	Goal        float64 `json:"goal,omitempty" toml:"goal"`
	Description string  `json:"description,omitempty" toml:"description"`
}

// Copy — тексты интерфейса мастера.
type Copy struct {
	// Headlines — заголовки по шагам.
	Headlines map[Step]Headline `json:"headlines,omitempty" toml:"headlines"`

	// Messages — шаблоны статусных сообщений (text/template).
	Messages map[string]string `json:"messages,omitempty" toml:"messages"`
}

// Headline — заголовок и подзаголовок шага.
type Headline struct {
	Title    string `json:"title" toml:"title"`
	Subtitle string `json:"subtitle,omitempty" toml:"subtitle"`
}

// PluginInfo возвращает метаданные плагина и флаг наличия.
func (p *StartupPayload) PluginInfo(id string) (Item, bool) {
	item, ok := p.Plugins[id]
	if ok && item.ID == "" {
		item.ID = id
	}
	return item, ok
}

// Feature возвращает метаданные функции и флаг наличия.
func (p *StartupPayload) Feature(id string) (Item, bool) {
	item, ok := p.FeatureInfo[id]
	if ok && item.ID == "" {
		item.ID = id
	}
	return item, ok
}
