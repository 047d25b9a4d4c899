package transaction

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/walletapp/walletapp/internal/locking"
)

// Handler exposes transaction HTTP endpoints nested under an account.
type Handler struct {
	service  *Service
	accounts AccountDirectory
}

// NewHandler builds a transaction HTTP handler. The account directory backs
// the route-level lookup of the owning account.
func NewHandler(service *Service, accounts AccountDirectory) *Handler {
	return &Handler{service: service, accounts: accounts}
}

type transactionRequest struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

type transactionResponse struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Status    Status          `json:"status"`
	AccountID string          `json:"account_id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Revision  int64           `json:"revision"`
}

func toTransactionResponse(txn Transaction) (transactionResponse, error) {
	data, err := MarshalPayload(txn.Payload)
	if err != nil {
		return transactionResponse{}, err
	}
	return transactionResponse{
		ID:        txn.ID.String(),
		Type:      txn.Type,
		Status:    txn.Status,
		AccountID: txn.AccountID.String(),
		Data:      data,
		CreatedAt: txn.CreatedAt,
		UpdatedAt: txn.UpdatedAt,
		Revision:  txn.Revision,
	}, nil
}

// Create validates and stores a PENDING transaction.
func (h *Handler) Create(c *fiber.Ctx) error {
	accountID, err := h.lookupAccount(c)
	if err != nil {
		return err
	}
	draft, err := h.parseDraft(c, accountID)
	if err != nil {
		return err
	}
	txn, err := h.service.Submit(c.UserContext(), draft)
	if err != nil {
		return mapTransactionError(err)
	}
	return respond(c, http.StatusCreated, txn)
}

// Update overwrites a still-pending or failed transaction.
func (h *Handler) Update(c *fiber.Ctx) error {
	accountID, err := h.lookupAccount(c)
	if err != nil {
		return err
	}
	id, err := parseTransactionID(c)
	if err != nil {
		return err
	}
	draft, err := h.parseDraft(c, accountID)
	if err != nil {
		return err
	}
	txn, err := h.service.Update(c.UserContext(), id, accountID, draft)
	if err != nil {
		return mapTransactionError(err)
	}
	return respond(c, http.StatusOK, txn)
}

// Get returns one transaction of the account.
func (h *Handler) Get(c *fiber.Ctx) error {
	accountID, err := h.lookupAccount(c)
	if err != nil {
		return err
	}
	id, err := parseTransactionID(c)
	if err != nil {
		return err
	}
	txn, err := h.service.Get(c.UserContext(), id, accountID)
	if err != nil {
		return mapTransactionError(err)
	}
	return respond(c, http.StatusOK, txn)
}

// List returns the account's transactions, optionally filtered by ?status=.
func (h *Handler) List(c *fiber.Ctx) error {
	accountID, err := h.lookupAccount(c)
	if err != nil {
		return err
	}

	var (
		txns    []Transaction
		listErr error
	)
	if status := c.Query("status"); status != "" {
		txns, listErr = h.service.ListByStatus(c.UserContext(), accountID, Status(status))
	} else {
		txns, listErr = h.service.List(c.UserContext(), accountID)
	}
	if listErr != nil {
		return mapTransactionError(listErr)
	}

	out := make([]transactionResponse, 0, len(txns))
	for _, txn := range txns {
		resp, err := toTransactionResponse(txn)
		if err != nil {
			return mapTransactionError(err)
		}
		out = append(out, resp)
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Delete removes a still-pending or failed transaction.
func (h *Handler) Delete(c *fiber.Ctx) error {
	accountID, err := h.lookupAccount(c)
	if err != nil {
		return err
	}
	id, err := parseTransactionID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), id, accountID); err != nil {
		return mapTransactionError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Execute drives the transaction to a terminal status.
func (h *Handler) Execute(c *fiber.Ctx) error {
	accountID, err := h.lookupAccount(c)
	if err != nil {
		return err
	}
	id, err := parseTransactionID(c)
	if err != nil {
		return err
	}
	txn, err := h.service.Execute(c.UserContext(), id, accountID)
	if err != nil {
		return mapTransactionError(err)
	}
	return respond(c, http.StatusOK, txn)
}

// lookupAccount parses the account path segment and verifies the account
// exists, the caller-side lookup the validator relies on.
func (h *Handler) lookupAccount(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("accountId"))
	if err != nil {
		return uuid.Nil, fiber.NewError(http.StatusBadRequest, "invalid account id")
	}
	exists, err := h.accounts.Exists(c.UserContext(), id)
	if err != nil {
		return uuid.Nil, fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if !exists {
		return uuid.Nil, fiber.NewError(http.StatusNotFound, "account not found")
	}
	return id, nil
}

func (h *Handler) parseDraft(c *fiber.Ctx, accountID uuid.UUID) (Draft, error) {
	var req transactionRequest
	if err := c.BodyParser(&req); err != nil {
		return Draft{}, fiber.NewError(http.StatusBadRequest, err.Error())
	}

	draft := Draft{Type: req.Type, AccountID: accountID}
	if len(req.Data) > 0 {
		payload, err := UnmarshalPayload(req.Data)
		if err != nil {
			return Draft{}, fiber.NewError(http.StatusBadRequest, err.Error())
		}
		draft.Payload = payload
	}
	return draft, nil
}

func parseTransactionID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(http.StatusBadRequest, "invalid transaction id")
	}
	return id, nil
}

func respond(c *fiber.Ctx, status int, txn Transaction) error {
	resp, err := toTransactionResponse(txn)
	if err != nil {
		return mapTransactionError(err)
	}
	return c.Status(status).JSON(resp)
}

func mapTransactionError(err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return fiber.NewError(http.StatusBadRequest, verr.Reason)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDestinationNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInsufficientFunds):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrCompletedImmutable), errors.Is(err, ErrRevisionConflict):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, locking.ErrTimeout):
		return fiber.NewError(http.StatusConflict, "transaction busy, try again")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
