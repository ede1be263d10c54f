package civicrm

import (
	"context"
	"time"

	"github.com/kevin07696/tsys-connector/internal/domain"
	"github.com/kevin07696/tsys-connector/internal/domain/models"
	"github.com/kevin07696/tsys-connector/pkg/timeutil"
	"go.uber.org/zap"
)

// Recurring series in these states are charged.
var activeRecurStatuses = []string{"Pending", "In Progress", "Overdue"}

// ListDueRecurringSeries returns series whose next charge date is on or before asOf.
func (c *Client) ListDueRecurringSeries(ctx context.Context, asOf time.Time, limit int) ([]*models.RecurringSeries, error) {
	processorIDs, err := c.processorIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(processorIDs) == 0 {
		c.logger.Warn("No active Tsys payment processors found on the host")
		return nil, nil
	}

	if limit < 0 {
		limit = 0
	}
	options := map[string]any{"sort": "next_sched_contribution_date ASC, id ASC", "limit": limit}

	resp, err := c.read(ctx, "ContributionRecur", "get", map[string]any{
		"payment_processor_id":         map[string]any{"IN": processorIDs},
		"contribution_status_id":       map[string]any{"IN": activeRecurStatuses},
		"next_sched_contribution_date": map[string]any{"<=": timeutil.FormatHostDateTime(timeutil.EndOfDay(asOf))},
		"sequential":                   1,
		"options":                      options,
	})
	if err != nil {
		return nil, err
	}
	rows, err := resp.rows()
	if err != nil {
		return nil, err
	}

	series := make([]*models.RecurringSeries, 0, len(rows))
	for _, r := range rows {
		s, err := seriesFromRow(r)
		if err != nil {
			c.logger.Warn("Skipping unreadable recurring series",
				zap.Int64("recur_id", r.int64Val("id")),
				zap.Error(err),
			)
			continue
		}
		series = append(series, s)
	}
	return series, nil
}

// AdvanceRecurringSchedule moves the series' next charge date
func (c *Client) AdvanceRecurringSchedule(ctx context.Context, recurSeriesID int64, next time.Time) error {
	_, err := c.write(ctx, "ContributionRecur", "create", map[string]any{
		"id":                           recurSeriesID,
		"next_sched_contribution_date": timeutil.FormatHostDateTime(next),
	})
	return err
}

func (c *Client) processorIDs(ctx context.Context) ([]int64, error) {
	if len(c.config.ProcessorIDs) > 0 {
		return c.config.ProcessorIDs, nil
	}

	resp, err := c.read(ctx, "PaymentProcessor", "get", map[string]any{
		"class_name": c.config.ProcessorClassName,
		"is_active":  1,
		"return":     []string{"id"},
		"sequential": 1,
		"options":    map[string]any{"limit": 0},
	})
	if err != nil {
		return nil, err
	}
	rows, err := resp.rows()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		if id := r.int64Val("id"); id > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func seriesFromRow(r row) (*models.RecurringSeries, error) {
	next, err := timeutil.ParseHostDateTime(r.str("next_sched_contribution_date"))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeHostAPI, "parse next_sched_contribution_date", err)
	}
	id := r.int64Val("id")
	if id <= 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeHostAPI, "recurring series has no id")
	}

	return &models.RecurringSeries{
		ID:                  id,
		ContactID:           r.int64Val("contact_id"),
		PaymentProcessorID:  r.int64Val("payment_processor_id"),
		FinancialTypeID:     r.int64Val("financial_type_id"),
		PaymentInstrumentID: r.int64Val("payment_instrument_id"),
		CampaignID:          r.optInt64("campaign_id"),
		Amount:              r.decimalVal("amount"),
		Currency:            r.str("currency"),
		FrequencyUnit:       models.FrequencyUnit(r.str("frequency_unit")),
		FrequencyInterval:   r.intVal("frequency_interval"),
		NextScheduledDate:   next,
		InstallmentsLeft:    r.optInt("installments"),
		IsTest:              r.boolVal("is_test"),
	}, nil
}
