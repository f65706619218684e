package domain

// Response — успешный ответ сервера на действие мастера.
//
// Поля заполняются из data конверта {success, data}. Неизвестные поля
// остаются доступны через Raw.
type Response struct {
	// NextStep — шаг, предложенный сервером после meta.
	NextStep string `json:"next_step,omitempty"`

	// Basename — актуальный handle плагина после установки.
	Basename string `json:"basename,omitempty"`

	// SetupURL — адрес дополнительной настройки плагина.
	SetupURL string `json:"setup_url,omitempty"`

	// RedirectURL — адрес перехода после завершения мастера.
	RedirectURL string `json:"redirect_url,omitempty"`

	// Valid, IsPro — результат проверки лицензии.
	Valid bool `json:"valid,omitempty"`
	IsPro bool `json:"is_pro,omitempty"`

	// CampaignID — идентификатор созданной кампании.
	CampaignID string `json:"campaign_id,omitempty"`

	// ConnectURL — адрес подключения провайдера, если сервер его вернул.
	ConnectURL string `json:"connect_url,omitempty"`

	// Message — текст сервера.
	Message string `json:"message,omitempty"`

	// Raw — data как есть.
	Raw map[string]any `json:"-"`
}
