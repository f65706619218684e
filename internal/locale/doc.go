// Package locale отвечает за тексты мастера настройки.
//
// Статусные сообщения — это Go templates ("Installing {{ .Name }}…").
// Catalog объединяет тексты из стартовой конфигурации с текстами
// по умолчанию и никогда не возвращает ошибку вызывающему коду.
package locale
