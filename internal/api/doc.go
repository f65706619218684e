// Package api содержит HTTP API бэкенда мастера.
//
// Структура:
//   - handler.go        — Handler с DI (хранилища, nonce, logger)
//   - routes.go         — регистрация маршрутов
//   - middleware.go     — middleware (request id, logging, recovery)
//   - response.go       — унифицированные JSON-ответы и обработка ошибок
//   - dto.go            — Data Transfer Objects (request/response)
//   - action_handler.go — POST /ajax: действия мастера и серверный учёт шагов
//   - site_handler.go   — обработчики для /sites и /runs
//
// Сервер ведёт прогресс каждого сайта независимо от клиента: каждое
// успешное действие отмечает соответствующий шаг.
package api
