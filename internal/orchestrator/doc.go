// Package orchestrator проводит сайт через мастер первичной настройки.
//
// Orchestrator отвечает за:
//   - Последовательность шагов от start до complete (только вперёд)
//   - Очереди установки, активации плагинов и включения функций
//   - Выбор следующего шага (Router)
//   - Прогресс и статусные тексты (Reporter)
//
// Единственная блокирующая ошибка — сбой сохранения настроек на шаге meta.
// Остальные сбои записываются во флаги и показываются на финальном экране.
package orchestrator
