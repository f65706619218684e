package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		RequestID(),
		Logging(h.logger),
		Recovery(h.logger),
	)

	// Действия мастера
	mux.Handle("POST /ajax", chain(http.HandlerFunc(h.HandleAction)))

	// Sites
	mux.Handle("POST /api/v1/sites", chain(http.HandlerFunc(h.CreateSite)))
	mux.Handle("GET /api/v1/sites/{id}", chain(http.HandlerFunc(h.GetSite)))
	mux.Handle("GET /api/v1/sites/{id}/wizard", chain(http.HandlerFunc(h.GetWizard)))
	mux.Handle("GET /api/v1/sites/{id}/events", chain(http.HandlerFunc(h.ListSiteEvents)))

	// Audit
	mux.Handle("GET /api/v1/runs/{id}/events", chain(http.HandlerFunc(h.ListRunEvents)))
}
