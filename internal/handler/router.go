package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/cardtab-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса карт-контроля.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/cards", func(r chi.Router) {
			r.Post("/", h.OpenCard)
			r.Get("/", h.GetCards)

			r.Route("/{code}", func(r chi.Router) {
				r.Get("/", h.GetCard)
				r.Post("/products", h.AddProduct)
				r.Post("/close", h.CloseCard)
			})
		})

		r.Route("/customers", func(r chi.Router) {
			r.Post("/", h.CreateCustomer)
			r.Get("/", h.GetCustomers)
			r.Get("/{id}", h.GetCustomer)
			r.Post("/{id}/visits", h.IncrementVisits)
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", h.CreateProduct)
			r.Get("/", h.GetProducts)
			r.Get("/{id}", h.GetProduct)
		})

		r.Route("/stock-products", func(r chi.Router) {
			r.Post("/", h.CreateStockProduct)
			r.Get("/", h.GetStockProducts)
		})

		r.Route("/employees", func(r chi.Router) {
			r.Post("/", h.CreateEmployee)
			r.Get("/", h.GetEmployees)
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
