package civicrm

import (
	"context"

	"github.com/kevin07696/tsys-connector/internal/domain/models"
	"github.com/kevin07696/tsys-connector/internal/domain/ports"
	"github.com/kevin07696/tsys-connector/pkg/timeutil"
	"github.com/shopspring/decimal"
)

// RepeatTransaction copies the template contribution into a new one.
func (c *Client) RepeatTransaction(ctx context.Context, req ports.RepeatTransactionRequest) (int64, error) {
	resp, err := c.write(ctx, "Contribution", "repeattransaction", map[string]any{
		"original_contribution_id": req.OriginalContributionID,
		"contribution_recur_id":    req.RecurSeriesID,
		"contribution_status_id":   string(req.Status),
		"is_email_receipt":         boolFlag(req.IsEmailReceipt),
	})
	if err != nil {
		return 0, err
	}
	return resp.id(), nil
}

// CreateContribution creates a contribution and returns its id
func (c *Client) CreateContribution(ctx context.Context, contrib *models.Contribution) (int64, error) {
	params := map[string]any{
		"contact_id":             contrib.ContactID,
		"financial_type_id":      contrib.FinancialTypeID,
		"total_amount":           contrib.TotalAmount.StringFixed(2),
		"currency":               contrib.Currency,
		"contribution_status_id": contrib.StatusID,
		"is_test":                boolFlag(contrib.IsTest),
	}
	if contrib.RecurSeriesID > 0 {
		params["contribution_recur_id"] = contrib.RecurSeriesID
	}
	if contrib.PaymentProcessorID > 0 {
		params["payment_processor_id"] = contrib.PaymentProcessorID
	}
	if contrib.PaymentInstrumentID > 0 {
		params["payment_instrument_id"] = contrib.PaymentInstrumentID
	}
	if contrib.CampaignID != nil {
		params["campaign_id"] = *contrib.CampaignID
	}
	if contrib.InvoiceID != "" {
		params["invoice_id"] = contrib.InvoiceID
	}
	if contrib.Source != "" {
		params["source"] = contrib.Source
	}
	if !contrib.ReceiveDate.IsZero() {
		params["receive_date"] = timeutil.FormatHostDateTime(contrib.ReceiveDate)
	}
	if contrib.TrxnID != "" {
		params["trxn_id"] = contrib.TrxnID
	}

	resp, err := c.write(ctx, "Contribution", "create", params)
	if err != nil {
		return 0, err
	}
	return resp.id(), nil
}

// PatchContribution restores fields after repeattransaction
func (c *Client) PatchContribution(ctx context.Context, patch ports.ContributionPatch) error {
	params := map[string]any{
		"id": patch.ContributionID,
	}
	if patch.InvoiceID != "" {
		params["invoice_id"] = patch.InvoiceID
	}
	if patch.Source != "" {
		params["source"] = patch.Source
	}
	if !patch.ReceiveDate.IsZero() {
		params["receive_date"] = timeutil.FormatHostDateTime(patch.ReceiveDate)
	}
	if patch.PaymentInstrumentID > 0 {
		params["payment_instrument_id"] = patch.PaymentInstrumentID
	}
	if patch.StatusID != 0 {
		params["contribution_status_id"] = patch.StatusID
	}

	_, err := c.write(ctx, "Contribution", "create", params)
	return err
}

// CompleteTransaction marks a pending contribution as paid
func (c *Client) CompleteTransaction(ctx context.Context, req ports.CompleteTransactionRequest) error {
	params := map[string]any{
		"id":               req.ContributionID,
		"trxn_id":          req.TrxnID,
		"is_email_receipt": boolFlag(req.IsEmailReceipt),
	}
	if req.PaymentProcessorID > 0 {
		params["payment_processor_id"] = req.PaymentProcessorID
	}
	if !req.ReceiveDate.IsZero() {
		params["receive_date"] = timeutil.FormatHostDateTime(req.ReceiveDate)
	}

	_, err := c.write(ctx, "Contribution", "completetransaction", params)
	return err
}

// SetValue writes one contribution field
func (c *Client) SetValue(ctx context.Context, contributionID int64, field, value string) error {
	_, err := c.write(ctx, "Contribution", "setvalue", map[string]any{
		"id":    contributionID,
		"field": field,
		"value": value,
	})
	return err
}

// CreateMembershipPayment links a contribution to a membership
func (c *Client) CreateMembershipPayment(ctx context.Context, contributionID, membershipID int64) error {
	_, err := c.write(ctx, "MembershipPayment", "create", map[string]any{
		"contribution_id": contributionID,
		"membership_id":   membershipID,
	})
	return err
}

// FindTemplateContribution returns the oldest contribution of the series for amount.
func (c *Client) FindTemplateContribution(ctx context.Context, recurSeriesID int64, amount decimal.Decimal) (int64, error) {
	resp, err := c.read(ctx, "Contribution", "get", map[string]any{
		"contribution_recur_id": recurSeriesID,
		"total_amount":          amount.StringFixed(2),
		"return":                []string{"id"},
		"sequential":            1,
		"options":               map[string]any{"sort": "id ASC", "limit": 1},
	})
	if err != nil {
		return 0, err
	}
	rows, err := resp.rows()
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return rows[0].int64Val("id"), nil
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}
