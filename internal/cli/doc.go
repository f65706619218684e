// Package cli реализует инструмент командной строки Provisio.
//
// # Обзор
//
// CLI проходит мастер настройки для сайта: читает стартовую конфигурацию,
// запускает orchestrator и показывает прогресс на экране.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент REST API бэкенда: стартовая конфигурация сайта, прогресс,
// аудит событий. Действия мастера отправляет transport.Client на /ajax.
//
//	client := cli.NewClient("http://localhost:8080")
//	payload, err := client.GetWizard("site-1")
//
// ## Surface
//
// Экран мастера:
//   - TerminalSurface (lipgloss) — для TTY
//   - JSONSurface — одна JSON-строка на вызов, для pipe и --json
//
// ## Output
//
// Форматирование итогов. Поддерживает два режима:
//   - Таблицы (go-pretty) — по умолчанию
//   - JSON — с флагом --json
//
// ## Commands
//
//   - run: проходит мастер, пишет события в журнал, метрики и RabbitMQ
//   - history: прохождения из локального журнала или аудита бэкенда
//   - steps: шаги мастера и проценты прогресса
//   - site: show, events
package cli
