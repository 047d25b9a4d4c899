package transaction

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestUnmarshalPayloadPreservesDiscriminator(t *testing.T) {
	// The declared discriminator survives decoding, which is what lets the
	// validator catch a mismatch against the transaction type.
	p, err := UnmarshalPayload(json.RawMessage(`{"type":"WITHDRAW","amount":"25.00","description":"atm"}`))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Kind() != TypeWithdraw {
		t.Fatalf("expected WITHDRAW discriminator, got %s", p.Kind())
	}
	w, ok := p.(WithdrawPayload)
	if !ok {
		t.Fatalf("expected WithdrawPayload, got %T", p)
	}
	if !w.Amount.Equal(decimal.RequireFromString("25.00")) || w.Description != "atm" {
		t.Fatalf("payload fields not decoded: %#v", w)
	}
}

func TestUnmarshalPayloadTransferCarriesDestination(t *testing.T) {
	dest := uuid.New()
	raw := `{"type":"TRANSFER","amount":100.5,"destination_account_id":"` + dest.String() + `"}`
	p, err := UnmarshalPayload(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	tr, ok := p.(TransferPayload)
	if !ok {
		t.Fatalf("expected TransferPayload, got %T", p)
	}
	if tr.DestinationAccountID != dest {
		t.Fatalf("expected destination %s, got %s", dest, tr.DestinationAccountID)
	}
}

func TestUnmarshalPayloadRejectsUnknownType(t *testing.T) {
	if _, err := UnmarshalPayload(json.RawMessage(`{"type":"LOAN","amount":"1"}`)); err == nil || !strings.Contains(err.Error(), "unknown payload type") {
		t.Fatalf("expected unknown-type error, got %v", err)
	}
	if _, err := UnmarshalPayload(json.RawMessage(`{"amount":"1"}`)); err == nil || !strings.Contains(err.Error(), "payload type is required") {
		t.Fatalf("expected missing-type error, got %v", err)
	}
}

func TestMarshalPayloadRoundTrip(t *testing.T) {
	dest := uuid.New()
	original := TransferPayload{
		DestinationAccountID: dest,
		Amount:               decimal.RequireFromString("42.42"),
		Description:          "settlement",
	}
	raw, err := MarshalPayload(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := UnmarshalPayload(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	tr, ok := decoded.(TransferPayload)
	if !ok {
		t.Fatalf("expected TransferPayload, got %T", decoded)
	}
	if tr.DestinationAccountID != dest || !tr.Amount.Equal(original.Amount) || tr.Description != original.Description {
		t.Fatalf("round trip mismatch: %#v", tr)
	}
}
