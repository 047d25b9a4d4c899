package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/walletapp/walletapp/internal/account"
)

// RegisterAccountRoutes wires account CRUD and balance endpoints.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler) {
	r.Get("/accounts", h.List)
	r.Post("/accounts", h.Create)
	r.Get("/accounts/:accountId", h.Get)
	r.Put("/accounts/:accountId", h.Update)
	r.Delete("/accounts/:accountId", h.Delete)
	r.Get("/accounts/:accountId/balance", h.Balance)
}
