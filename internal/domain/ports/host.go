package ports

import (
	"context"
	"time"

	"github.com/kevin07696/tsys-connector/internal/domain/models"
	"github.com/shopspring/decimal"
)

// HostPlatform is the lookup surface of the host CRM.
type HostPlatform interface {
	GetProcessorSettings(ctx context.Context, processorID int64) (*models.ProcessorSettings, error)
	DefaultCurrency(ctx context.Context) (string, error)
	ContributionStatusID(ctx context.Context, status models.ContributionStatus) (int, error)
	// CardTypeOptionValue returns nil when the host has no option for the card type.
	CardTypeOptionValue(ctx context.Context, cardTypeName string) (*int, error)
	CreatePaymentToken(ctx context.Context, token *models.PaymentTokenRecord) (int64, error)
}

// RepeatTransactionRequest asks the host to copy a template contribution
type RepeatTransactionRequest struct {
	OriginalContributionID int64
	RecurSeriesID          int64
	Status                 models.ContributionStatus
	IsEmailReceipt         bool
}

// CompleteTransactionRequest marks a contribution as paid
type CompleteTransactionRequest struct {
	ContributionID     int64
	PaymentProcessorID int64
	TrxnID             string
	ReceiveDate        time.Time
	IsEmailReceipt     bool
}

// ContributionPatch restores fields the host overwrites on repeattransaction.
type ContributionPatch struct {
	ContributionID      int64
	InvoiceID           string
	Source              string
	ReceiveDate         time.Time
	PaymentInstrumentID int64
	StatusID            int // 0 leaves the status unchanged
}

// ContributionLedger is the write surface of the host contribution ledger.
type ContributionLedger interface {
	// RepeatTransaction returns 0 when the host created nothing.
	RepeatTransaction(ctx context.Context, req RepeatTransactionRequest) (int64, error)
	CreateContribution(ctx context.Context, c *models.Contribution) (int64, error)
	PatchContribution(ctx context.Context, patch ContributionPatch) error
	CompleteTransaction(ctx context.Context, req CompleteTransactionRequest) error
	SetValue(ctx context.Context, contributionID int64, field, value string) error
	CreateMembershipPayment(ctx context.Context, contributionID, membershipID int64) error
	// FindTemplateContribution returns the first contribution of a series, 0 if none.
	FindTemplateContribution(ctx context.Context, recurSeriesID int64, amount decimal.Decimal) (int64, error)
}

// RecurringSchedule lists and advances host recurring series.
type RecurringSchedule interface {
	ListDueRecurringSeries(ctx context.Context, asOf time.Time, limit int) ([]*models.RecurringSeries, error)
	AdvanceRecurringSchedule(ctx context.Context, recurSeriesID int64, next time.Time) error
}
