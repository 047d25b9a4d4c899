package transaction

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported transaction kinds.
type Type string

const (
	TypeDeposit  Type = "DEPOSIT"
	TypeWithdraw Type = "WITHDRAW"
	TypeTransfer Type = "TRANSFER"
)

// Status enumerates the transaction lifecycle states. PENDING transactions
// are mutable drafts; DONE and FAILED are terminal, and only DONE is
// immutable.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusExecuting Status = "EXECUTING"
	StatusDone      Status = "DONE"
	StatusFailed    Status = "FAILED"
)

// Payload is the closed union of type-specific transaction data. The
// discriminator returned by Kind must match the owning transaction's Type.
type Payload interface {
	Kind() Type
}

// DepositPayload credits the owning account.
type DepositPayload struct {
	Amount      decimal.Decimal
	Description string
}

func (DepositPayload) Kind() Type { return TypeDeposit }

// WithdrawPayload debits the owning account.
type WithdrawPayload struct {
	Amount      decimal.Decimal
	Description string
}

func (WithdrawPayload) Kind() Type { return TypeWithdraw }

// TransferPayload moves funds from the owning account to the destination
// account.
type TransferPayload struct {
	DestinationAccountID uuid.UUID
	Amount               decimal.Decimal
	Description          string
}

func (TransferPayload) Kind() Type { return TypeTransfer }

// Transaction is a declared money movement. Its balance effect becomes real
// only once the executor commits status DONE; balances are always derived
// from the ledger, never stored.
type Transaction struct {
	ID        uuid.UUID
	Type      Type
	Status    Status
	AccountID uuid.UUID
	Payload   Payload
	CreatedAt time.Time
	UpdatedAt time.Time
	Revision  int64
}

// Draft carries the caller-supplied fields of a not-yet-stored transaction.
type Draft struct {
	Type      Type
	AccountID uuid.UUID
	Payload   Payload
}

// amountOf extracts the amount from any payload variant.
func amountOf(p Payload) decimal.Decimal {
	switch d := p.(type) {
	case DepositPayload:
		return d.Amount
	case WithdrawPayload:
		return d.Amount
	case TransferPayload:
		return d.Amount
	default:
		return decimal.Zero
	}
}

// payloadEnvelope is the wire and storage form of a payload: a tagged union
// keyed by the type discriminator.
type payloadEnvelope struct {
	Type                 Type            `json:"type"`
	Amount               decimal.Decimal `json:"amount"`
	Description          string          `json:"description,omitempty"`
	DestinationAccountID *uuid.UUID      `json:"destination_account_id,omitempty"`
}

// MarshalPayload encodes a payload as its tagged JSON envelope.
func MarshalPayload(p Payload) (json.RawMessage, error) {
	env := payloadEnvelope{Type: p.Kind()}
	switch d := p.(type) {
	case DepositPayload:
		env.Amount = d.Amount
		env.Description = d.Description
	case WithdrawPayload:
		env.Amount = d.Amount
		env.Description = d.Description
	case TransferPayload:
		env.Amount = d.Amount
		env.Description = d.Description
		dest := d.DestinationAccountID
		env.DestinationAccountID = &dest
	default:
		return nil, fmt.Errorf("unsupported payload type %T", p)
	}
	return json.Marshal(env)
}

// UnmarshalPayload decodes a tagged JSON envelope into the matching payload
// variant. The declared discriminator is preserved so the validator can catch
// mismatches against the transaction type.
func UnmarshalPayload(raw json.RawMessage) (Payload, error) {
	var env payloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode transaction payload: %w", err)
	}

	switch env.Type {
	case TypeDeposit:
		return DepositPayload{Amount: env.Amount, Description: env.Description}, nil
	case TypeWithdraw:
		return WithdrawPayload{Amount: env.Amount, Description: env.Description}, nil
	case TypeTransfer:
		p := TransferPayload{Amount: env.Amount, Description: env.Description}
		if env.DestinationAccountID != nil {
			p.DestinationAccountID = *env.DestinationAccountID
		}
		return p, nil
	case "":
		return nil, fmt.Errorf("payload type is required")
	default:
		return nil, fmt.Errorf("unknown payload type %q", env.Type)
	}
}
