package payment

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kevin07696/tsys-connector/internal/domain"
	"github.com/kevin07696/tsys-connector/internal/domain/models"
	serviceports "github.com/kevin07696/tsys-connector/internal/services/ports"
	"github.com/shopspring/decimal"
)

// Host parameter keys read by DoPayment
const (
	ParamProcessorID   = "payment_processor_id"
	ParamAmount        = "amount"
	ParamCurrency      = "currency"
	ParamFormCurrency  = "currencyID"
	ParamPaymentToken  = "payment_token"
	ParamCardNumber    = "credit_card_number"
	ParamCVV           = "cvv2"
	ParamExpDate       = "credit_card_exp_date"
	ParamExpMonth      = "month"
	ParamExpYear       = "year"
	ParamFirstName     = "billing_first_name"
	ParamLastName      = "billing_last_name"
	ParamStreetAddress = "billing_street_address-5"
	ParamPostalCode    = "billing_postal_code-5"
	ParamIsRecur       = "is_recur"
	ParamRecurSeriesID = "contributionRecurID"
	ParamContactID     = "contactID"
)

// Keys written back by DoPayment
const (
	ParamPaymentStatusID = "payment_status_id"
	ParamTrxnID          = "trxn_id"
	ParamPanTruncation   = "pan_truncation"
	ParamCardTypeID      = "card_type_id"
	ParamToken           = "token"
)

// CreditCardFormFields lists the fields the host renders on the card form.
// payment_token carries the widget's one-time token.
func CreditCardFormFields() []string {
	return []string{
		"credit_card_type",
		ParamCardNumber,
		ParamCVV,
		ParamExpDate,
		ParamPaymentToken,
	}
}

// attemptFromParams maps the host parameter map onto a PaymentAttempt
func attemptFromParams(params map[string]any) (serviceports.PaymentAttempt, error) {
	var a serviceports.PaymentAttempt

	processorID, err := paramInt64(params, ParamProcessorID)
	if err != nil {
		return a, err
	}
	if processorID <= 0 {
		return a, domain.ErrValidationMissingField.WithDetail("field", ParamProcessorID)
	}
	a.ProcessorID = processorID

	if a.Amount, err = paramDecimal(params, ParamAmount); err != nil {
		return a, err
	}

	a.CurrencyOverride = paramString(params, ParamCurrency)
	a.FormCurrency = paramString(params, ParamFormCurrency)
	a.PaymentToken = paramString(params, ParamPaymentToken)

	if a.IsRecur, err = paramBool(params, ParamIsRecur); err != nil {
		return a, err
	}
	if a.RecurSeriesID, err = paramInt64(params, ParamRecurSeriesID); err != nil {
		return a, err
	}
	if a.ContactID, err = paramInt64(params, ParamContactID); err != nil {
		return a, err
	}

	if !models.UsableToken(a.PaymentToken) {
		card, err := cardFromParams(params)
		if err != nil {
			return a, err
		}
		a.Card = card
	}
	return a, nil
}

// cardFromParams returns nil when no card number was submitted
func cardFromParams(params map[string]any) (*models.RawCard, error) {
	number := strings.ReplaceAll(paramString(params, ParamCardNumber), " ", "")
	if number == "" {
		return nil, nil
	}

	card := &models.RawCard{
		Number:     number,
		CVV:        paramString(params, ParamCVV),
		HolderName: strings.TrimSpace(paramString(params, ParamFirstName) + " " + paramString(params, ParamLastName)),
		AVSStreet:  paramString(params, ParamStreetAddress),
		AVSZip:     paramString(params, ParamPostalCode),
	}

	month, year := params[ParamExpMonth], params[ParamExpYear]
	if exp, ok := params[ParamExpDate].(map[string]any); ok {
		month, year = exp["M"], exp["Y"]
	}
	m, err := toInt64(month)
	if err != nil {
		return nil, domain.ErrValidationFailed.WithDetail("field", ParamExpDate)
	}
	y, err := toInt64(year)
	if err != nil {
		return nil, domain.ErrValidationFailed.WithDetail("field", ParamExpDate)
	}
	card.ExpMonth, card.ExpYear = int(m), int(y)
	return card, nil
}

func paramString(params map[string]any, key string) string {
	switch v := params[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// paramInt64 returns 0 for a missing key
func paramInt64(params map[string]any, key string) (int64, error) {
	n, err := toInt64(params[key])
	if err != nil {
		return 0, domain.ErrValidationFailed.WithDetail("field", key)
	}
	return n, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		if strings.TrimSpace(n) == "" {
			return 0, nil
		}
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func paramBool(params map[string]any, key string) (bool, error) {
	switch v := params[key].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	default:
		n, err := toInt64(v)
		if err != nil {
			return false, domain.ErrValidationFailed.WithDetail("field", key)
		}
		return n != 0, nil
	}
}

func paramDecimal(params map[string]any, key string) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := params[key].(type) {
	case nil:
		return decimal.Zero, domain.ErrValidationAmountInvalid.WithDetail("field", key)
	case float64:
		d = decimal.NewFromFloat(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case json.Number:
		d, err = decimal.NewFromString(v.String())
	case string:
		d, err = decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(v), ",", ""))
	default:
		err = fmt.Errorf("unsupported type %T", v)
	}
	if err != nil {
		return decimal.Zero, domain.WrapError(domain.ErrorCodeValidationAmountInvalid, "parse amount", err)
	}
	return d, nil
}
