package transaction

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ValidationError reports the first business-rule violation found in a draft.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalidf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// AccountDirectory answers account existence checks against the account store.
type AccountDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Validator checks type/payload consistency and business rules on a draft.
// Checks run in a fixed order and short-circuit on the first violation.
type Validator struct {
	accounts AccountDirectory
}

// NewValidator builds a validator backed by the given account directory.
func NewValidator(accounts AccountDirectory) *Validator {
	return &Validator{accounts: accounts}
}

// Validate returns nil for a well-formed draft, or a *ValidationError
// describing the first violation. Existence of the owning account is the
// caller's concern; only the transfer destination is resolved here.
func (v *Validator) Validate(ctx context.Context, draft Draft) error {
	if draft.Type == "" {
		return invalidf("transaction type is required")
	}
	if draft.AccountID == uuid.Nil {
		return invalidf("account id is required")
	}
	if draft.Payload == nil {
		return invalidf("transaction payload is required")
	}
	if draft.Payload.Kind() != draft.Type {
		return invalidf("payload type (%s) does not match transaction type (%s)", draft.Payload.Kind(), draft.Type)
	}
	if !amountOf(draft.Payload).IsPositive() {
		return invalidf("amount must be positive")
	}

	switch p := draft.Payload.(type) {
	case DepositPayload, WithdrawPayload:
		return nil
	case TransferPayload:
		if p.DestinationAccountID == uuid.Nil {
			return invalidf("destination account id is required")
		}
		if p.DestinationAccountID == draft.AccountID {
			return invalidf("destination account must differ from source account")
		}
		exists, err := v.accounts.Exists(ctx, p.DestinationAccountID)
		if err != nil {
			return err
		}
		if !exists {
			return invalidf("destination account %s does not exist", p.DestinationAccountID)
		}
		return nil
	default:
		return invalidf("unsupported transaction type %q", draft.Type)
	}
}
