package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
)

// ChargeInput describes the payment attempt for one order. IdempotencyKey is
// stable across retries of the same attempt so a replay settles exactly once.
type ChargeInput struct {
	OrderID        uuid.UUID
	Method         enums.PaymentMethod
	Amount         decimal.Decimal
	IdempotencyKey string
}

// ChargeResult reports the gateway outcome. Cash on delivery stays pending
// until the courier settles it.
type ChargeResult struct {
	Status        enums.PaymentStatus
	TransactionID *string
}

// Gateway abstracts the payment provider so checkout and cancellation do not
// depend on a concrete processor.
type Gateway interface {
	Charge(ctx context.Context, input ChargeInput) (ChargeResult, error)
	Refund(ctx context.Context, transactionID string, amount decimal.Decimal) error
}

// InProcessGateway settles charges locally. It stands in for the hosted
// processor in dev and test environments.
type InProcessGateway struct {
	mu      sync.Mutex
	charges map[string]ChargeResult
}

// NewInProcessGateway builds the local gateway.
func NewInProcessGateway() *InProcessGateway {
	return &InProcessGateway{charges: make(map[string]ChargeResult)}
}

// Charge approves card and bank transfers immediately and leaves cash on
// delivery pending. A replayed idempotency key returns the original result
// instead of settling a second charge.
func (g *InProcessGateway) Charge(ctx context.Context, input ChargeInput) (ChargeResult, error) {
	if !input.Method.IsValid() {
		return ChargeResult{}, fmt.Errorf("invalid payment method %q", input.Method)
	}
	if input.Amount.IsNegative() {
		return ChargeResult{}, fmt.Errorf("charge amount cannot be negative")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if input.IdempotencyKey != "" {
		if cached, ok := g.charges[input.IdempotencyKey]; ok {
			return cached, nil
		}
	}

	result := ChargeResult{Status: enums.PaymentStatusPending}
	if input.Method != enums.PaymentMethodCashOnDelivery {
		txnID := "txn_" + uuid.NewString()
		result = ChargeResult{Status: enums.PaymentStatusPaid, TransactionID: &txnID}
	}
	if input.IdempotencyKey != "" {
		g.charges[input.IdempotencyKey] = result
	}
	return result, nil
}

// Refund acknowledges the refund for a settled transaction.
func (g *InProcessGateway) Refund(ctx context.Context, transactionID string, amount decimal.Decimal) error {
	if transactionID == "" {
		return fmt.Errorf("transaction id is required")
	}
	if amount.IsNegative() {
		return fmt.Errorf("refund amount cannot be negative")
	}
	return nil
}
