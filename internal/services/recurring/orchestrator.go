package recurring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kevin07696/tsys-connector/internal/domain"
	"github.com/kevin07696/tsys-connector/internal/domain/models"
	"github.com/kevin07696/tsys-connector/internal/domain/ports"
	serviceports "github.com/kevin07696/tsys-connector/internal/services/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

var chargesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "recurring_charges_total",
	Help: "Recurring charges by ledger path and status",
}, []string{"path", "status"})

// DefaultSource is the contribution source written for scheduled charges
const DefaultSource = "Tsys recurring contribution"

// Config tunes batch runs
type Config struct {
	Concurrency int    // Series charged in parallel by ProcessDue
	Source      string // Contribution source for scheduled charges
}

// DefaultConfig returns the batch defaults
func DefaultConfig() Config {
	return Config{Concurrency: 4, Source: DefaultSource}
}

// Orchestrator charges stored vault tokens and reconciles the result into
// the host ledger. Ledger failures after an approved charge are recorded as
// warnings; the charge is never reversed. A captured charge whose
// contribution cannot be created is reported as ErrChargeNotRecorded.
type Orchestrator struct {
	processor serviceports.PaymentProcessor
	vault     serviceports.VaultManager
	host      ports.HostPlatform
	ledger    ports.ContributionLedger
	schedule  ports.RecurringSchedule
	logger    ports.Logger
	cfg       Config
}

var _ serviceports.RecurringService = (*Orchestrator)(nil)

// NewOrchestrator creates a recurring orchestrator
func NewOrchestrator(
	processor serviceports.PaymentProcessor,
	vault serviceports.VaultManager,
	host ports.HostPlatform,
	ledger ports.ContributionLedger,
	schedule ports.RecurringSchedule,
	logger ports.Logger,
	cfg Config,
) *Orchestrator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	return &Orchestrator{
		processor: processor,
		vault:     vault,
		host:      host,
		ledger:    ledger,
		schedule:  schedule,
		logger:    logger,
		cfg:       cfg,
	}
}

// ProcessContributionPayment charges the series' vault token and records one
// contribution. With an original contribution and no existing contribution id
// the host's repeattransaction is tried first; otherwise, or when it yields
// nothing, the contribution is created directly.
func (o *Orchestrator) ProcessContributionPayment(
	ctx context.Context,
	contribution *models.Contribution,
	opts models.RecurOptions,
	originalContributionID int64,
) (*serviceports.RecurringResult, error) {
	if contribution.RecurSeriesID <= 0 {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "contribution_recur_id")
	}

	token, err := o.vault.TokenForSeries(ctx, contribution.RecurSeriesID)
	if err != nil {
		return nil, err
	}

	outcome, err := o.processor.Process(ctx, serviceports.PaymentAttempt{
		ProcessorID:      contribution.PaymentProcessorID,
		Amount:           contribution.TotalAmount,
		CurrencyOverride: contribution.Currency,
		PaymentToken:     token,
		IsRecur:          true,
		RecurSeriesID:    contribution.RecurSeriesID,
		ContactID:        contribution.ContactID,
	})
	if outcome == nil || !outcome.Sent {
		// Nothing reached the gateway; leave the ledger alone.
		return nil, err
	}

	result := &serviceports.RecurringResult{
		RecurSeriesID: contribution.RecurSeriesID,
		Status:        outcome.Status,
		TrxnID:        outcome.TrxnID,
		Warnings:      append([]string(nil), outcome.Warnings...),
	}
	if err != nil {
		result.Warnings = append(result.Warnings, "charge failed: "+err.Error())
	}
	if contribution.InvoiceID == "" {
		contribution.InvoiceID = outcome.InvoiceNumber
	}

	if originalContributionID == 0 && contribution.ID == 0 {
		originalContributionID = o.findTemplate(ctx, contribution)
	}
	isRecurrence := originalContributionID > 0

	if originalContributionID > 0 && contribution.ID == 0 {
		if id := o.repeat(ctx, contribution, originalContributionID); id > 0 {
			contribution.ID = id
			result.UsedRepeat = true
			o.reconcileRepeat(ctx, contribution, opts, outcome, result)
		}
	}
	if !result.UsedRepeat {
		if err := o.reconcileCreate(ctx, contribution, opts, outcome, result); err != nil {
			chargesTotal.WithLabelValues("create", "ledger_error").Inc()
			return result, err
		}
	}

	result.ContributionID = contribution.ID
	result.Message = o.message(contribution, outcome, result.UsedRepeat, isRecurrence)

	path := "create"
	if result.UsedRepeat {
		path = "repeat"
	}
	chargesTotal.WithLabelValues(path, string(outcome.Status)).Inc()

	o.logger.Info("Recurring contribution processed",
		ports.Int64("recur_id", contribution.RecurSeriesID),
		ports.Int64("contribution_id", contribution.ID),
		ports.String("status", string(outcome.Status)),
		ports.String("ledger_path", path),
		ports.Int("warnings", len(result.Warnings)))
	return result, nil
}

// findTemplate returns the first contribution of the series, or 0
func (o *Orchestrator) findTemplate(ctx context.Context, c *models.Contribution) int64 {
	id, err := o.ledger.FindTemplateContribution(ctx, c.RecurSeriesID, c.TotalAmount)
	if err != nil {
		o.logger.Warn("Template contribution lookup failed",
			ports.Int64("recur_id", c.RecurSeriesID),
			ports.Err(err))
		return 0
	}
	return id
}

// repeat asks the host to copy the template as a Pending contribution.
// Returns 0 when the caller must fall back to a direct create.
func (o *Orchestrator) repeat(ctx context.Context, c *models.Contribution, originalID int64) int64 {
	id, err := o.ledger.RepeatTransaction(ctx, ports.RepeatTransactionRequest{
		OriginalContributionID: originalID,
		RecurSeriesID:          c.RecurSeriesID,
		Status:                 models.ContributionPending,
		IsEmailReceipt:         false,
	})
	if err != nil {
		o.logger.Warn("repeattransaction failed, creating contribution directly",
			ports.Int64("recur_id", c.RecurSeriesID),
			ports.Int64("original_contribution_id", originalID),
			ports.Err(err))
		return 0
	}
	if id == 0 {
		o.logger.Warn("repeattransaction returned no contribution, creating contribution directly",
			ports.Int64("recur_id", c.RecurSeriesID),
			ports.Int64("original_contribution_id", originalID))
	}
	return id
}

// reconcileRepeat restores the fields repeattransaction overwrites and
// completes the contribution when the charge was approved.
func (o *Orchestrator) reconcileRepeat(
	ctx context.Context,
	c *models.Contribution,
	opts models.RecurOptions,
	outcome *models.PaymentOutcome,
	result *serviceports.RecurringResult,
) {
	patch := ports.ContributionPatch{
		ContributionID:      c.ID,
		InvoiceID:           c.InvoiceID,
		Source:              c.Source,
		ReceiveDate:         c.ReceiveDate,
		PaymentInstrumentID: c.PaymentInstrumentID,
	}
	if !outcome.Completed() {
		patch.StatusID = outcome.StatusID
	}
	if err := o.ledger.PatchContribution(ctx, patch); err != nil {
		o.warn(result, c, "restore contribution fields", err)
	}

	if !outcome.Completed() {
		return
	}
	err := o.ledger.CompleteTransaction(ctx, ports.CompleteTransactionRequest{
		ContributionID:     c.ID,
		PaymentProcessorID: c.PaymentProcessorID,
		TrxnID:             outcome.TrxnID,
		ReceiveDate:        c.ReceiveDate,
		IsEmailReceipt:     opts.IsEmailReceipt,
	})
	if err != nil {
		o.warn(result, c, "completetransaction", err)
		o.restoreAfterComplete(ctx, c, outcome, result, err)
	}
}

// reconcileCreate records the contribution directly. Approved charges are
// created Pending and completed; failed charges are created Failed.
func (o *Orchestrator) reconcileCreate(
	ctx context.Context,
	c *models.Contribution,
	opts models.RecurOptions,
	outcome *models.PaymentOutcome,
	result *serviceports.RecurringResult,
) error {
	c.StatusID = outcome.StatusID
	if outcome.Completed() {
		pending, err := o.host.ContributionStatusID(ctx, models.ContributionPending)
		if err != nil {
			o.warn(result, c, "resolve Pending status", err)
		} else {
			c.StatusID = pending
		}
	}

	id, err := o.ledger.CreateContribution(ctx, c)
	if err != nil {
		o.logger.Error("Charge processed but contribution could not be recorded",
			ports.Int64("recur_id", c.RecurSeriesID),
			ports.String("status", string(outcome.Status)),
			ports.String("trxn_id", outcome.TrxnID),
			ports.Err(err))
		if outcome.Completed() {
			return domain.WrapError(domain.ErrorCodeChargeNotRecorded,
				fmt.Sprintf("charge %s captured but contribution not recorded", outcome.TrxnID), err).
				WithDetail("recur_id", c.RecurSeriesID).
				WithDetail("trxn_id", outcome.TrxnID)
		}
		return domain.WrapError(domain.ErrorCodeHostAPI, "create contribution", err).
			WithDetail("recur_id", c.RecurSeriesID)
	}
	c.ID = id

	if opts.MembershipID != nil {
		if err := o.ledger.CreateMembershipPayment(ctx, c.ID, *opts.MembershipID); err != nil {
			o.logger.Debug("Membership payment link failed",
				ports.Int64("contribution_id", c.ID),
				ports.Int64("membership_id", *opts.MembershipID),
				ports.Err(err))
		}
	}

	if !outcome.Completed() {
		return nil
	}

	err = o.ledger.CompleteTransaction(ctx, ports.CompleteTransactionRequest{
		ContributionID:     c.ID,
		PaymentProcessorID: c.PaymentProcessorID,
		TrxnID:             outcome.TrxnID,
		ReceiveDate:        c.ReceiveDate,
		IsEmailReceipt:     opts.IsEmailReceipt,
	})
	if err != nil {
		o.warn(result, c, "completetransaction", err)
	}
	o.restoreAfterComplete(ctx, c, outcome, result, err)
	return nil
}

// restoreAfterComplete writes source and trxn_id back onto the contribution.
// completetransaction overwrites source on success and never writes trxn_id
// on failure; a failure is noted in the source.
func (o *Orchestrator) restoreAfterComplete(
	ctx context.Context,
	c *models.Contribution,
	outcome *models.PaymentOutcome,
	result *serviceports.RecurringResult,
	completeErr error,
) {
	if completeErr != nil {
		c.Source += fmt.Sprintf(" [with unexpected api.completetransaction error: %s]", completeErr.Error())
	}
	if err := o.ledger.SetValue(ctx, c.ID, "source", c.Source); err != nil {
		o.warn(result, c, "restore source", err)
	}
	if err := o.ledger.SetValue(ctx, c.ID, "trxn_id", outcome.TrxnID); err != nil {
		o.warn(result, c, "set trxn_id", err)
	}
}

func (o *Orchestrator) warn(result *serviceports.RecurringResult, c *models.Contribution, step string, err error) {
	result.Warnings = append(result.Warnings, fmt.Sprintf("%s failed: %v", step, err))
	o.logger.Warn("Ledger step failed after charge",
		ports.String("step", step),
		ports.Int64("recur_id", c.RecurSeriesID),
		ports.Int64("contribution_id", c.ID),
		ports.Err(err))
}

func (o *Orchestrator) message(c *models.Contribution, outcome *models.PaymentOutcome, usedRepeat, isRecurrence bool) string {
	switch {
	case !outcome.Completed():
		return fmt.Sprintf("Failed to process recurring contribution id %d: %s", c.RecurSeriesID, outcome.Message)
	case usedRepeat:
		return fmt.Sprintf("Successfully processed recurring contribution in series id %d: %s", c.RecurSeriesID, outcome.AuthorizationCode)
	case isRecurrence:
		return fmt.Sprintf("Successfully processed contribution in recurring series id %d: %s", c.RecurSeriesID, outcome.AuthorizationCode)
	default:
		return "Successfully processed one-time contribution: " + outcome.AuthorizationCode
	}
}

// ProcessDue charges every series due at asOf. Series are processed in
// parallel up to Config.Concurrency; one failing series never stops the batch.
// A series' schedule advances once its contribution is recorded, and always
// after a captured charge so the card is never charged twice for one date.
func (o *Orchestrator) ProcessDue(ctx context.Context, asOf time.Time, limit int) (*serviceports.BatchSummary, error) {
	due, err := o.schedule.ListDueRecurringSeries(ctx, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("list due recurring series: %w", err)
	}

	summary := &serviceports.BatchSummary{
		ProcessedCount: len(due),
		Errors:         make([]serviceports.BatchError, 0),
	}
	o.logger.Info("Processing recurring batch",
		ports.String("as_of_date", asOf.Format(time.RFC3339)),
		ports.Int("count", len(due)))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(o.cfg.Concurrency)

	for _, series := range due {
		g.Go(func() error {
			result, err := o.processSeries(ctx, series, asOf)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				summary.FailedCount++
				summary.Errors = append(summary.Errors, serviceports.BatchError{
					RecurSeriesID: series.ID,
					Error:         err.Error(),
					Retriable:     retriable(err),
				})
			case result.Status == models.ContributionCompleted:
				summary.SuccessCount++
			default:
				summary.FailedCount++
			}
			if result != nil && result.Message != "" {
				summary.Messages = append(summary.Messages, result.Message)
			}
			return nil
		})
	}
	_ = g.Wait()

	o.logger.Info("Recurring batch completed",
		ports.Int("processed", summary.ProcessedCount),
		ports.Int("success", summary.SuccessCount),
		ports.Int("failed", summary.FailedCount))
	return summary, nil
}

// retriable reports whether running the series again is safe. A captured
// charge is never retriable even when the ledger error underneath is.
func retriable(err error) bool {
	if errors.Is(err, domain.ErrChargeNotRecorded) {
		return false
	}
	return domain.IsRetryable(err) || errors.Is(err, domain.ErrHostAPI)
}

func (o *Orchestrator) processSeries(ctx context.Context, s *models.RecurringSeries, asOf time.Time) (*serviceports.RecurringResult, error) {
	contribution := &models.Contribution{
		ContactID:           s.ContactID,
		RecurSeriesID:       s.ID,
		PaymentProcessorID:  s.PaymentProcessorID,
		FinancialTypeID:     s.FinancialTypeID,
		PaymentInstrumentID: s.PaymentInstrumentID,
		CampaignID:          s.CampaignID,
		TotalAmount:         s.Amount,
		Currency:            s.Currency,
		Source:              o.cfg.Source,
		ReceiveDate:         asOf,
		IsTest:              s.IsTest,
	}

	result, err := o.ProcessContributionPayment(ctx, contribution, models.RecurOptions{}, 0)
	if err != nil {
		o.logger.Error("Recurring charge failed",
			ports.Int64("recur_id", s.ID),
			ports.Err(err))
		if !errors.Is(err, domain.ErrChargeNotRecorded) {
			return result, err
		}
	}

	next := s.NextDate(s.NextScheduledDate)
	if advErr := o.schedule.AdvanceRecurringSchedule(ctx, s.ID, next); advErr != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("advance schedule failed: %v", advErr))
		o.logger.Warn("Failed to advance recurring schedule",
			ports.Int64("recur_id", s.ID),
			ports.String("next_scheduled_date", next.Format(time.DateOnly)),
			ports.Err(advErr))
	}
	return result, err
}
