package domain

// Item — метаданные одного элемента очереди (плагина или функции).
//
// Очереди мастера хранят только идентификаторы, метаданные берутся из
// StartupPayload.Plugins / StartupPayload.FeatureInfo.
type Item struct {
	// ID — идентификатор элемента в очереди.
	ID string `json:"id" toml:"id"`

	// Name — человекочитаемое имя для статусных сообщений.
	Name string `json:"name" toml:"name"`

	// Basename — handle, по которому плагин активируется.
	// Может быть обновлён ответом на установку.
	Basename string `json:"basename,omitempty" toml:"basename"`

	// Slug — идентификатор пакета для установки.
	Slug string `json:"slug,omitempty" toml:"slug"`
}

// DisplayName возвращает Name, а если оно пустое — ID.
func (i Item) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.ID
}
