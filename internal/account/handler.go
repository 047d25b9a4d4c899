package account

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/walletapp/walletapp/internal/locking"
)

// Handler exposes account HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type accountRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

type accountResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toResponse(acc Account) accountResponse {
	return accountResponse{
		ID:        acc.ID.String(),
		Name:      acc.Name,
		Currency:  acc.Currency,
		CreatedAt: acc.CreatedAt,
		UpdatedAt: acc.UpdatedAt,
	}
}

// Create provisions an account.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req accountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acc, err := h.service.Create(c.UserContext(), CreateInput{Name: req.Name, Currency: req.Currency})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(acc))
}

// Update overwrites the account's mutable fields.
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := parseAccountID(c)
	if err != nil {
		return err
	}
	var req accountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acc, err := h.service.Update(c.UserContext(), id, UpdateInput{Name: req.Name, Currency: req.Currency})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(acc))
}

// Get returns one account.
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := parseAccountID(c)
	if err != nil {
		return err
	}
	acc, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(acc))
}

// List returns every account.
func (h *Handler) List(c *fiber.Ctx) error {
	accounts, err := h.service.List(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, toResponse(acc))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Balance returns the account's derived balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	id, err := parseAccountID(c)
	if err != nil {
		return err
	}
	bal, err := h.service.Balance(c.UserContext(), id)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_id": id.String(),
		"balance":    bal,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Delete removes an account with a zero balance.
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := parseAccountID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseAccountID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("accountId"))
	if err != nil {
		return uuid.Nil, fiber.NewError(http.StatusBadRequest, "invalid account id")
	}
	return id, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNameRequired):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrBalanceNotZero):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, locking.ErrTimeout):
		return fiber.NewError(http.StatusConflict, "account busy, try again")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
