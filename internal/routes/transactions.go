package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/walletapp/walletapp/internal/transaction"
)

// RegisterTransactionRoutes wires the transaction endpoints nested under an account.
func RegisterTransactionRoutes(r fiber.Router, h *transaction.Handler) {
	txns := r.Group("/accounts/:accountId/transactions")
	txns.Get("/", h.List)
	txns.Post("/", h.Create)
	txns.Get("/:id", h.Get)
	txns.Put("/:id", h.Update)
	txns.Delete("/:id", h.Delete)
	txns.Post("/:id/execute", h.Execute)
}
