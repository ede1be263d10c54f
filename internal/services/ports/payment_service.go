package ports

import (
	"context"

	"github.com/kevin07696/tsys-connector/internal/domain/models"
	"github.com/shopspring/decimal"
)

// PaymentAttempt contains the inputs of one payment attempt
type PaymentAttempt struct {
	ProcessorID      int64
	Amount           decimal.Decimal
	CurrencyOverride string // Highest priority
	FormCurrency     string // Used when no override is given
	PaymentToken     string
	Card             *models.RawCard

	// Recurring context. Boarding only happens when IsRecur and RecurSeriesID > 0.
	IsRecur       bool
	RecurSeriesID int64
	ContactID     int64
}

// PaymentProcessor runs single payment attempts against the gateway
type PaymentProcessor interface {
	// Process runs one attempt. Approvals, declines and gateway failures are
	// returned as an outcome; configuration errors are returned as errors.
	Process(ctx context.Context, attempt PaymentAttempt) (*models.PaymentOutcome, error)

	// DoPayment is the host-facing entry point working on the host's parameter map.
	DoPayment(ctx context.Context, params map[string]any) (map[string]any, error)
}
