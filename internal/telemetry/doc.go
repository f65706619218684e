// Package telemetry обеспечивает наблюдаемость мастера и бэкенда.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики прохождения мастера
//
// Все сервисы используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
