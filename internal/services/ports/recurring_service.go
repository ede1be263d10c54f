package ports

import (
	"context"
	"time"

	"github.com/kevin07696/tsys-connector/internal/domain/models"
)

// RecurringResult is the reconciled outcome of one recurring charge
type RecurringResult struct {
	ContributionID int64
	RecurSeriesID  int64
	Status         models.ContributionStatus
	TrxnID         string
	UsedRepeat     bool // true when the repeattransaction path produced the contribution
	Message        string
	Warnings       []string
}

// BatchError describes one series that could not be charged or recorded
type BatchError struct {
	RecurSeriesID int64
	Error         string
	Retriable     bool
}

// BatchSummary reports a ProcessDue run
type BatchSummary struct {
	ProcessedCount int
	SuccessCount   int
	FailedCount    int
	Errors         []BatchError
	Messages       []string
}

// RecurringService charges stored vault tokens on a schedule and reconciles
// the result into the host ledger
type RecurringService interface {
	ProcessContributionPayment(ctx context.Context, contribution *models.Contribution, opts models.RecurOptions, originalContributionID int64) (*RecurringResult, error)

	// ProcessDue charges every series due at asOf, up to limit series
	ProcessDue(ctx context.Context, asOf time.Time, limit int) (*BatchSummary, error)
}
