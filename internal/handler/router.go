package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/preorder-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса предзаказа.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/designs", h.GetDesigns)

		r.Post("/order", h.CreateOrder)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.GetOrders)
			r.Get("/export", h.ExportOrders)

			r.Put("/{id}/status", h.UpdateStatus)
			r.Get("/{id}/slip", h.GetSlip)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
