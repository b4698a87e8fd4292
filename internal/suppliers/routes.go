package suppliers

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Post("/{id}/deactivate", h.Deactivate)
	r.Post("/{id}/activate", h.Activate)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/products", h.Products)
	r.Get("/{id}/stats", h.Stats)
	r.Post("/{id}/products", h.Link)
	r.Delete("/{id}/products/{productID}", h.Unlink)
	r.Get("/by-product/{productID}", h.ProductSuppliers)
	r.Get("/by-product/{productID}/preferred", h.Preferred)
}
