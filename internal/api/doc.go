// Package api содержит HTTP API хост-приложения Player.
//
// Структура:
//   - handler.go             — Handler с DI (хранилища, publisher, logger)
//   - routes.go              — регистрация маршрутов
//   - middleware.go          — middleware (logging, recovery)
//   - response.go            — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                 — Data Transfer Objects (request/response)
//   - run_handler.go         — обработчики для /workflows и /runs
//   - interaction_handler.go — взаимодействия и прокси /runs/{id}/proxy
//
// API создаёт pending runs и выставляет флаг отмены. Всё выполнение
// ведёт воркер, API только читает его результаты.
package api
