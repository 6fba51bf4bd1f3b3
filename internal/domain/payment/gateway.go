package payment

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Gateway port
// ---------------------------------------------------------------------------

// GatewayStatus is the outcome reported by the payment gateway
type GatewayStatus string

const (
	GatewayStatusPending GatewayStatus = "PENDING"
	GatewayStatusPaid    GatewayStatus = "PAID"
	GatewayStatusFailed  GatewayStatus = "FAILED"
)

// IsValid checks if the gateway status is valid
func (s GatewayStatus) IsValid() bool {
	switch s {
	case GatewayStatusPending, GatewayStatusPaid, GatewayStatusFailed:
		return true
	}
	return false
}

// IsFinal returns true if the status settles the payment one way or another
func (s GatewayStatus) IsFinal() bool {
	return s == GatewayStatusPaid || s == GatewayStatusFailed
}

// ChargeRequest asks the gateway to collect a payment
type ChargeRequest struct {
	TransactionID string
	Amount        decimal.Decimal
	StudentID     uuid.UUID
	ClassID       uuid.UUID
	Description   string
}

// ChargeResponse is the gateway's acknowledgement of a charge request
type ChargeResponse struct {
	Reference string
	Status    GatewayStatus
}

// GatewayResult is the outcome of a charge, either from a callback or from
// an operator recording a counter payment
type GatewayResult struct {
	TransactionID string
	Status        GatewayStatus
	Amount        decimal.Decimal
	PaymentMethod Method
	RawNotes      string
	Reference     string
}

// Gateway is the boundary to the external payment provider
type Gateway interface {
	// InitiateCharge submits a charge. Implementations must honour ctx deadlines.
	InitiateCharge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error)

	// ParseCallback verifies the signature of a webhook body and decodes it
	ParseCallback(ctx context.Context, body []byte, signature string) (*GatewayResult, error)
}

// ---------------------------------------------------------------------------
// Transaction identifiers
// ---------------------------------------------------------------------------

// TransactionIDGenerator produces opaque unique transaction identifiers
type TransactionIDGenerator interface {
	NewTransactionID(at time.Time) string
}

// RandomTransactionIDGenerator derives IDs from version 4 UUIDs read from
// crypto/rand, e.g. TXN-20260115-9F1C...; the date prefix is for humans only.
type RandomTransactionIDGenerator struct{}

// NewTransactionID returns a new identifier
func (RandomTransactionIDGenerator) NewTransactionID(at time.Time) string {
	id := uuid.Must(uuid.NewRandomFromReader(rand.Reader))
	return "TXN-" + at.UTC().Format("20060102") + "-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
}
