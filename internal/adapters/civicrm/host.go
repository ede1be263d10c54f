package civicrm

import (
	"context"
	"fmt"
	"strings"

	"github.com/kevin07696/tsys-connector/internal/domain"
	"github.com/kevin07696/tsys-connector/internal/domain/models"
	"github.com/kevin07696/tsys-connector/internal/domain/ports"
	"github.com/kevin07696/tsys-connector/pkg/timeutil"
	"go.uber.org/zap"
)

var (
	_ ports.HostPlatform       = (*Client)(nil)
	_ ports.ContributionLedger = (*Client)(nil)
	_ ports.RecurringSchedule  = (*Client)(nil)
)

// GetProcessorSettings reads the payment processor record. Settings are read
// on every call so credential changes apply to the next attempt.
func (c *Client) GetProcessorSettings(ctx context.Context, processorID int64) (*models.ProcessorSettings, error) {
	resp, err := c.read(ctx, "PaymentProcessor", "getsingle", map[string]any{
		"id": processorID,
	})
	if err != nil {
		if isUnreachable(err) {
			return nil, err
		}
		return nil, domain.ErrProcessorNotFound.WithDetail("processor_id", processorID)
	}

	r, err := resp.single()
	if err != nil {
		return nil, err
	}
	return &models.ProcessorSettings{
		ID:        r.int64Val("id"),
		Name:      r.str("name"),
		UserName:  r.str("user_name"),
		Password:  r.str("password"),
		Signature: r.str("signature"),
		Subject:   r.str("subject"),
		IsTest:    r.boolVal("is_test"),
	}, nil
}

// DefaultCurrency returns the site's default currency code
func (c *Client) DefaultCurrency(ctx context.Context) (string, error) {
	resp, err := c.read(ctx, "Setting", "get", map[string]any{
		"return":     []string{"defaultCurrency"},
		"sequential": 1,
	})
	if err != nil {
		return "", err
	}
	rows, err := resp.rows()
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", domain.NewDomainError(domain.ErrorCodeHostAPI, "host returned no settings")
	}
	return strings.TrimSpace(rows[0].str("defaultCurrency")), nil
}

// ContributionStatusID maps a status label to the host's option value
func (c *Client) ContributionStatusID(ctx context.Context, status models.ContributionStatus) (int, error) {
	resp, err := c.read(ctx, "OptionValue", "getsingle", map[string]any{
		"option_group_id": "contribution_status",
		"name":            string(status),
		"return":          []string{"value"},
	})
	if err != nil {
		return 0, err
	}
	r, err := resp.single()
	if err != nil {
		return 0, err
	}
	id := r.intVal("value")
	if id == 0 {
		return 0, domain.NewDomainError(domain.ErrorCodeHostAPI,
			fmt.Sprintf("host has no value for contribution status %q", status))
	}
	return id, nil
}

// CardTypeOptionValue looks up the accepted credit card option for a card type name.
func (c *Client) CardTypeOptionValue(ctx context.Context, cardTypeName string) (*int, error) {
	resp, err := c.read(ctx, "OptionValue", "get", map[string]any{
		"option_group_id": "accept_creditcard",
		"name":            cardTypeName,
		"return":          []string{"value"},
		"sequential":      1,
	})
	if err != nil {
		return nil, err
	}
	rows, err := resp.rows()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].optInt("value"), nil
}

// CreatePaymentToken stores a boarded vault token on the contact
func (c *Client) CreatePaymentToken(ctx context.Context, token *models.PaymentTokenRecord) (int64, error) {
	params := map[string]any{
		"contact_id":           token.ContactID,
		"payment_processor_id": token.PaymentProcessorID,
		"token":                token.Token,
	}
	if token.MaskedAccount != "" {
		params["masked_account_number"] = token.MaskedAccount
	}
	if token.ExpiryDate != nil {
		params["expiry_date"] = timeutil.FormatHostDateTime(*token.ExpiryDate)
	}

	resp, err := c.write(ctx, "PaymentToken", "create", params)
	if err != nil {
		return 0, err
	}
	id := resp.id()
	c.logger.Debug("Created host payment token",
		zap.Int64("payment_token_id", id),
		zap.Int64("contact_id", token.ContactID),
	)
	return id, nil
}
