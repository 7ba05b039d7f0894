package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Workflows
	mux.Handle("POST /api/v1/workflows", chain(http.HandlerFunc(h.CreateWorkflow)))

	// Runs
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("POST /api/v1/runs", chain(http.HandlerFunc(h.CreateRun)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("POST /api/v1/runs/{id}/cancel", chain(http.HandlerFunc(h.CancelRun)))
	mux.Handle("GET /api/v1/runs/{id}/inputs", chain(http.HandlerFunc(h.ListRunInputs)))
	mux.Handle("GET /api/v1/runs/{id}/outputs", chain(http.HandlerFunc(h.ListRunOutputs)))
	mux.Handle("GET /api/v1/runs/{id}/interactions", chain(http.HandlerFunc(h.ListRunInteractions)))

	// Interaction proxy: сюда ведут ссылки переписанных страниц.
	mux.Handle("GET /runs/{id}/proxy/{interaction}", chain(http.HandlerFunc(h.GetInteractionPage)))
	mux.Handle("POST /runs/{id}/proxy/{interaction}", chain(http.HandlerFunc(h.ReplyInteraction)))
}
