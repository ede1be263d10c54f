package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/kevin07696/tsys-connector/internal/domain"
	"github.com/kevin07696/tsys-connector/internal/domain/models"
	serviceports "github.com/kevin07696/tsys-connector/internal/services/ports"
	"github.com/kevin07696/tsys-connector/internal/testutil/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testCreds = models.MerchantCredentials{MerchantName: "Acme", MerchantSiteID: "SITE01", MerchantKey: "KEY-1"}

type processorFixture struct {
	gateway   *mocks.MockPaymentGateway
	creds     *mocks.MockCredentialsProvider
	host      *mocks.MockHostPlatform
	vault     *mocks.MockVaultManager
	logger    *mocks.MockLogger
	processor *Processor
}

func newProcessorFixture() *processorFixture {
	f := &processorFixture{
		gateway: &mocks.MockPaymentGateway{},
		creds:   &mocks.MockCredentialsProvider{},
		host:    &mocks.MockHostPlatform{},
		vault:   &mocks.MockVaultManager{},
		logger:  mocks.NewMockLogger(),
	}
	f.creds.On("Resolve", mock.Anything, int64(3)).Return(testCreds, nil).Maybe()
	f.host.On("ContributionStatusID", mock.Anything, models.ContributionCompleted).Return(1, nil).Maybe()
	f.host.On("ContributionStatusID", mock.Anything, models.ContributionFailed).Return(4, nil).Maybe()
	f.processor = NewProcessor(f.gateway, f.creds, f.host, f.vault, f.logger)
	return f
}

func tokenAttempt() serviceports.PaymentAttempt {
	return serviceports.PaymentAttempt{
		ProcessorID:  3,
		Amount:       decimal.RequireFromString("25.00"),
		FormCurrency: "USD",
		PaymentToken: "ONE-TIME-TOKEN",
	}
}

func approvedResult() *models.SaleResult {
	visa := models.CardTypeVisa
	return &models.SaleResult{
		ApprovalStatus:    models.ApprovalApproved,
		StatusText:        "APPROVED",
		VaultToken:        "TXN-TOKEN-9",
		AuthorizationCode: "OK1234",
		MaskedCardNumber:  "1111",
		CardTypeCode:      &visa,
	}
}

func TestProcess_CurrencyGate(t *testing.T) {
	tests := []struct {
		name     string
		override string
		form     string
		hostDflt string
	}{
		{name: "override EUR", override: "EUR", form: "USD"},
		{name: "form CAD", form: "CAD"},
		{name: "host default GBP", hostDflt: "GBP"},
		{name: "lowercase usd", form: "usd"},
		{name: "padded USD", override: " USD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProcessorFixture()
			if tt.hostDflt != "" {
				f.host.On("DefaultCurrency", mock.Anything).Return(tt.hostDflt, nil)
			}
			req := tokenAttempt()
			req.CurrencyOverride = tt.override
			req.FormCurrency = tt.form

			outcome, err := f.processor.Process(context.Background(), req)

			assert.ErrorIs(t, err, domain.ErrUnsupportedCurrency)
			require.NotNil(t, outcome)
			assert.Equal(t, models.StateError, outcome.State)
			assert.Equal(t, models.ContributionFailed, outcome.Status)
			assert.Equal(t, 4, outcome.StatusID)
			assert.Equal(t, "Tsys only supports USD; this transaction was not sent.", outcome.Message)
			assert.False(t, outcome.Sent)
			f.gateway.AssertNumberOfCalls(t, "Sale", 0)
		})
	}
}

func TestProcess_CurrencyPriority(t *testing.T) {
	t.Run("override wins over form", func(t *testing.T) {
		f := newProcessorFixture()
		f.gateway.On("Sale", mock.Anything, mock.Anything).Return(approvedResult(), nil)
		f.host.On("CardTypeOptionValue", mock.Anything, "Visa").Return(nil, nil)

		req := tokenAttempt()
		req.CurrencyOverride = "USD"
		req.FormCurrency = "EUR"

		outcome, err := f.processor.Process(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, models.StateApproved, outcome.State)
	})

	t.Run("host default used when nothing submitted", func(t *testing.T) {
		f := newProcessorFixture()
		f.host.On("DefaultCurrency", mock.Anything).Return("USD", nil).Once()
		f.gateway.On("Sale", mock.Anything, mock.Anything).Return(approvedResult(), nil)
		f.host.On("CardTypeOptionValue", mock.Anything, "Visa").Return(nil, nil)

		req := tokenAttempt()
		req.FormCurrency = ""

		_, err := f.processor.Process(context.Background(), req)
		require.NoError(t, err)
		f.host.AssertExpectations(t)
	})
}

func TestProcess_InstrumentSelection(t *testing.T) {
	card := &models.RawCard{Number: "4111111111111111", CVV: "123", ExpMonth: 7, ExpYear: 2028}

	t.Run("usable token charges the vault", func(t *testing.T) {
		f := newProcessorFixture()
		f.gateway.On("Sale", mock.Anything, mock.MatchedBy(func(r *models.SaleRequest) bool {
			return r.Instrument.IsVault() && r.Instrument.VaultToken == "ONE-TIME-TOKEN"
		})).Return(approvedResult(), nil)
		f.host.On("CardTypeOptionValue", mock.Anything, "Visa").Return(nil, nil)

		_, err := f.processor.Process(context.Background(), tokenAttempt())
		require.NoError(t, err)
		f.gateway.AssertExpectations(t)
	})

	t.Run("placeholder token falls back to the card", func(t *testing.T) {
		f := newProcessorFixture()
		f.gateway.On("Sale", mock.Anything, mock.MatchedBy(func(r *models.SaleRequest) bool {
			return !r.Instrument.IsVault() && r.Instrument.Card.Number == card.Number
		})).Return(approvedResult(), nil)
		f.host.On("CardTypeOptionValue", mock.Anything, "Visa").Return(nil, nil)

		req := tokenAttempt()
		req.PaymentToken = models.PlaceholderToken
		req.Card = card

		_, err := f.processor.Process(context.Background(), req)
		require.NoError(t, err)
		f.gateway.AssertExpectations(t)
	})

	t.Run("missing card fields are never sent", func(t *testing.T) {
		for _, partial := range []*models.RawCard{
			nil,
			{Number: "4111111111111111", ExpMonth: 7, ExpYear: 2028},
			{Number: "4111111111111111", CVV: "123", ExpYear: 2028},
			{CVV: "123", ExpMonth: 7, ExpYear: 2028},
		} {
			f := newProcessorFixture()
			req := tokenAttempt()
			req.PaymentToken = ""
			req.Card = partial

			outcome, err := f.processor.Process(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrMissingCardInfo)
			assert.Equal(t, "missing credit card info", outcome.Message)
			f.gateway.AssertNotCalled(t, "Sale", mock.Anything, mock.Anything)
		}
	})
}

func TestProcess_Approved(t *testing.T) {
	f := newProcessorFixture()
	visaOption := 4
	var sent *models.SaleRequest
	f.gateway.On("Sale", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*models.SaleRequest) }).
		Return(approvedResult(), nil)
	f.host.On("CardTypeOptionValue", mock.Anything, "Visa").Return(&visaOption, nil)

	outcome, err := f.processor.Process(context.Background(), tokenAttempt())
	require.NoError(t, err)

	assert.Equal(t, models.StateApproved, outcome.State)
	assert.True(t, outcome.Completed())
	assert.Equal(t, 1, outcome.StatusID)
	assert.Equal(t, "TXN-TOKEN-9", outcome.TrxnID)
	assert.Equal(t, "1111", outcome.MaskedCardNumber)
	assert.Equal(t, "OK1234", outcome.AuthorizationCode)
	require.NotNil(t, outcome.CardTypeID)
	assert.Equal(t, 4, *outcome.CardTypeID)
	assert.Nil(t, outcome.BoardedTokenID)
	assert.Empty(t, outcome.Warnings)

	require.NotNil(t, sent)
	assert.Equal(t, testCreds, sent.Credentials)
	assert.NoError(t, models.ValidateInvoiceNumber(sent.InvoiceNumber))
	assert.Equal(t, sent.InvoiceNumber, outcome.InvoiceNumber)
	f.vault.AssertNotCalled(t, "BoardCard", mock.Anything, mock.Anything)
}

func TestProcess_ApprovedUnknownCardType(t *testing.T) {
	f := newProcessorFixture()
	result := approvedResult()
	code := 9
	result.CardTypeCode = &code
	result.VaultToken = ""
	f.gateway.On("Sale", mock.Anything, mock.Anything).Return(result, nil)

	outcome, err := f.processor.Process(context.Background(), tokenAttempt())
	require.NoError(t, err)

	assert.Nil(t, outcome.CardTypeID)
	assert.Equal(t, 9, *outcome.CardTypeCode)
	assert.Equal(t, outcome.InvoiceNumber, outcome.TrxnID, "invoice number is the fallback trxn id")
	f.host.AssertNotCalled(t, "CardTypeOptionValue", mock.Anything, mock.Anything)
}

func TestProcess_RecurringBoarding(t *testing.T) {
	recurring := func() serviceports.PaymentAttempt {
		req := tokenAttempt()
		req.IsRecur = true
		req.RecurSeriesID = 55
		req.ContactID = 7
		return req
	}

	t.Run("boards the card with the token it was paid with", func(t *testing.T) {
		f := newProcessorFixture()
		f.gateway.On("Sale", mock.Anything, mock.Anything).Return(approvedResult(), nil)
		f.host.On("CardTypeOptionValue", mock.Anything, "Visa").Return(nil, nil)
		f.vault.On("BoardCard", mock.Anything, serviceports.BoardRequest{
			RecurSeriesID: 55,
			ContactID:     7,
			ProcessorID:   3,
			Credentials:   testCreds,
			PaymentToken:  "ONE-TIME-TOKEN",
			SaleToken:     "TXN-TOKEN-9",
			MaskedAccount: "1111",
		}).Return(&models.VaultTokenRecord{ID: 12, Token: "VAULT-1"}, nil)

		outcome, err := f.processor.Process(context.Background(), recurring())
		require.NoError(t, err)
		require.NotNil(t, outcome.BoardedTokenID)
		assert.Equal(t, int64(12), *outcome.BoardedTokenID)
		f.vault.AssertExpectations(t)
	})

	t.Run("boarding failure is a warning", func(t *testing.T) {
		f := newProcessorFixture()
		f.gateway.On("Sale", mock.Anything, mock.Anything).Return(approvedResult(), nil)
		f.host.On("CardTypeOptionValue", mock.Anything, "Visa").Return(nil, nil)
		f.vault.On("BoardCard", mock.Anything, mock.Anything).Return(nil, domain.ErrBoardCardFailed)

		outcome, err := f.processor.Process(context.Background(), recurring())
		require.NoError(t, err)
		assert.Equal(t, models.StateApproved, outcome.State)
		assert.True(t, outcome.Completed())
		require.Len(t, outcome.Warnings, 1)
		assert.Contains(t, outcome.Warnings[0], "card boarding failed")
		f.gateway.AssertNumberOfCalls(t, "Sale", 1)
	})

	t.Run("already boarded is silent", func(t *testing.T) {
		f := newProcessorFixture()
		f.gateway.On("Sale", mock.Anything, mock.Anything).Return(approvedResult(), nil)
		f.host.On("CardTypeOptionValue", mock.Anything, "Visa").Return(nil, nil)
		f.vault.On("BoardCard", mock.Anything, mock.Anything).Return(nil, domain.ErrVaultTokenExists.WithDetail("recur_id", int64(55)))

		outcome, err := f.processor.Process(context.Background(), recurring())
		require.NoError(t, err)
		assert.Empty(t, outcome.Warnings)
	})

	t.Run("no series id skips boarding", func(t *testing.T) {
		f := newProcessorFixture()
		f.gateway.On("Sale", mock.Anything, mock.Anything).Return(approvedResult(), nil)
		f.host.On("CardTypeOptionValue", mock.Anything, "Visa").Return(nil, nil)

		req := recurring()
		req.RecurSeriesID = 0

		_, err := f.processor.Process(context.Background(), req)
		require.NoError(t, err)
		f.vault.AssertNotCalled(t, "BoardCard", mock.Anything, mock.Anything)
	})
}

func TestProcess_Declined(t *testing.T) {
	f := newProcessorFixture()
	f.gateway.On("Sale", mock.Anything, mock.Anything).Return(&models.SaleResult{
		ApprovalStatus: models.ApprovalDeclined,
		StatusText:     "DECLINED;1024;invalid exp date",
		VaultToken:     "TXN-DECLINED",
	}, nil)

	req := tokenAttempt()
	req.IsRecur = true
	req.RecurSeriesID = 55

	outcome, err := f.processor.Process(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, models.StateDeclined, outcome.State)
	assert.Equal(t, models.ContributionFailed, outcome.Status)
	assert.Equal(t, 4, outcome.StatusID)
	assert.Equal(t, "DECLINED;1024;invalid exp date", outcome.Message)
	assert.Empty(t, outcome.TrxnID)
	f.vault.AssertNotCalled(t, "BoardCard", mock.Anything, mock.Anything)
}

func TestProcess_GatewayFailure(t *testing.T) {
	f := newProcessorFixture()
	f.gateway.On("Sale", mock.Anything, mock.Anything).Return(nil, domain.ErrGatewayUnreachable)

	outcome, err := f.processor.Process(context.Background(), tokenAttempt())

	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, models.StateError, outcome.State)
	assert.Equal(t, models.ContributionFailed, outcome.Status)
	assert.True(t, outcome.Sent)
	f.gateway.AssertNumberOfCalls(t, "Sale", 1)
}

func TestProcess_ConfigurationError(t *testing.T) {
	f := &processorFixture{
		gateway: &mocks.MockPaymentGateway{},
		creds:   &mocks.MockCredentialsProvider{},
		host:    &mocks.MockHostPlatform{},
		vault:   &mocks.MockVaultManager{},
		logger:  mocks.NewMockLogger(),
	}
	f.creds.On("Resolve", mock.Anything, int64(3)).Return(models.MerchantCredentials{}, domain.ErrCredentialsMissing)
	f.processor = NewProcessor(f.gateway, f.creds, f.host, f.vault, f.logger)

	outcome, err := f.processor.Process(context.Background(), tokenAttempt())

	assert.True(t, domain.IsConfigurationError(err))
	assert.Equal(t, models.StateError, outcome.State)
	assert.False(t, outcome.Sent)
	f.gateway.AssertNotCalled(t, "Sale", mock.Anything, mock.Anything)
	f.host.AssertNotCalled(t, "ContributionStatusID", mock.Anything, mock.Anything)
}

func TestProcess_HostOutageWhileResolvingCredentials(t *testing.T) {
	f := &processorFixture{
		gateway: &mocks.MockPaymentGateway{},
		creds:   &mocks.MockCredentialsProvider{},
		host:    &mocks.MockHostPlatform{},
		vault:   &mocks.MockVaultManager{},
		logger:  mocks.NewMockLogger(),
	}
	hostDown := domain.WrapError(domain.ErrorCodeHostAPI, "PaymentProcessor.getsingle", errors.New("connection refused"))
	f.creds.On("Resolve", mock.Anything, int64(3)).Return(models.MerchantCredentials{}, hostDown)
	f.processor = NewProcessor(f.gateway, f.creds, f.host, f.vault, f.logger)

	outcome, err := f.processor.Process(context.Background(), tokenAttempt())

	assert.ErrorIs(t, err, domain.ErrHostAPI)
	assert.False(t, domain.IsConfigurationError(err))
	assert.False(t, domain.IsRetryable(err))
	assert.Equal(t, models.StateError, outcome.State)
	assert.False(t, outcome.Sent)
	f.gateway.AssertNotCalled(t, "Sale", mock.Anything, mock.Anything)
	f.host.AssertNotCalled(t, "ContributionStatusID", mock.Anything, mock.Anything)
}

func TestProcess_NeverLogsCredentialsOrCard(t *testing.T) {
	f := newProcessorFixture()
	f.gateway.On("Sale", mock.Anything, mock.Anything).Return(approvedResult(), nil)
	f.host.On("CardTypeOptionValue", mock.Anything, "Visa").Return(nil, nil)

	req := tokenAttempt()
	req.PaymentToken = ""
	req.Card = &models.RawCard{Number: "4111111111111111", CVV: "987", ExpMonth: 1, ExpYear: 2030}

	_, err := f.processor.Process(context.Background(), req)
	require.NoError(t, err)

	for _, call := range f.logger.All() {
		for _, field := range call.Fields {
			s, ok := field.Value.(string)
			if !ok {
				continue
			}
			assert.NotContains(t, s, "4111111111111111")
			assert.NotContains(t, s, "KEY-1")
			assert.NotEqual(t, "987", s)
		}
	}
}

func TestDoPayment(t *testing.T) {
	t.Run("approved map", func(t *testing.T) {
		f := newProcessorFixture()
		visaOption := 4
		f.gateway.On("Sale", mock.Anything, mock.MatchedBy(func(r *models.SaleRequest) bool {
			return r.Amount.Equal(decimal.RequireFromString("12.5")) &&
				r.Instrument.Card != nil &&
				r.Instrument.Card.ExpMonth == 7 &&
				r.Instrument.Card.ExpYear == 2028 &&
				r.Instrument.Card.HolderName == "Ada Lovelace"
		})).Return(approvedResult(), nil)
		f.host.On("CardTypeOptionValue", mock.Anything, "Visa").Return(&visaOption, nil)

		params := map[string]any{
			ParamProcessorID:  json.Number("3"),
			ParamAmount:       "12.50",
			ParamFormCurrency: "USD",
			ParamPaymentToken: models.PlaceholderToken,
			ParamCardNumber:   "4111 1111 1111 1111",
			ParamCVV:          "123",
			ParamExpDate:      map[string]any{"M": "7", "Y": float64(2028)},
			ParamFirstName:    "Ada",
			ParamLastName:     "Lovelace",
			"contributionID":  float64(88),
		}

		out, err := f.processor.DoPayment(context.Background(), params)
		require.NoError(t, err)

		assert.Equal(t, 1, out[ParamPaymentStatusID])
		assert.Equal(t, "TXN-TOKEN-9", out[ParamTrxnID])
		assert.Equal(t, "1111", out[ParamPanTruncation])
		assert.Equal(t, 4, out[ParamCardTypeID])
		assert.Equal(t, "TXN-TOKEN-9", out[ParamToken])
		assert.Equal(t, float64(88), out["contributionID"])
		assert.NotContains(t, out, ParamCardNumber)
		assert.NotContains(t, out, ParamCVV)
		assert.Contains(t, params, ParamCardNumber, "input map is left untouched")
	})

	t.Run("declined map", func(t *testing.T) {
		f := newProcessorFixture()
		f.gateway.On("Sale", mock.Anything, mock.Anything).Return(&models.SaleResult{
			ApprovalStatus: models.ApprovalDeclined,
			StatusText:     "DECLINED",
		}, nil)

		out, err := f.processor.DoPayment(context.Background(), map[string]any{
			ParamProcessorID:  3,
			ParamAmount:       10.0,
			ParamCurrency:     "USD",
			ParamPaymentToken: "TOKEN",
		})
		require.NoError(t, err)
		assert.Equal(t, 4, out[ParamPaymentStatusID])
		assert.NotContains(t, out, ParamTrxnID)
	})

	t.Run("non-USD map", func(t *testing.T) {
		f := newProcessorFixture()
		out, err := f.processor.DoPayment(context.Background(), map[string]any{
			ParamProcessorID:  3,
			ParamAmount:       "10",
			ParamCurrency:     "EUR",
			ParamPaymentToken: "TOKEN",
		})
		assert.ErrorIs(t, err, domain.ErrUnsupportedCurrency)
		assert.Equal(t, 4, out[ParamPaymentStatusID])
		f.gateway.AssertNumberOfCalls(t, "Sale", 0)
	})

	t.Run("invalid params", func(t *testing.T) {
		f := newProcessorFixture()
		_, err := f.processor.DoPayment(context.Background(), map[string]any{ParamAmount: "10"})
		assert.True(t, domain.IsValidationError(err))

		_, err = f.processor.DoPayment(context.Background(), map[string]any{ParamProcessorID: 3, ParamAmount: "ten"})
		assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationAmountInvalid))
	})
}

func TestAttemptFromParams(t *testing.T) {
	req, err := attemptFromParams(map[string]any{
		ParamProcessorID:   "3",
		ParamAmount:        json.Number("5.25"),
		ParamCurrency:      "USD",
		ParamPaymentToken:  "",
		ParamCardNumber:    "4111111111111111",
		ParamCVV:           "321",
		ParamExpMonth:      "12",
		ParamExpYear:       2027,
		ParamIsRecur:       "1",
		ParamRecurSeriesID: float64(55),
		ParamContactID:     int64(7),
		ParamStreetAddress: "1 Main St",
		ParamPostalCode:    "10001",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), req.ProcessorID)
	assert.True(t, req.Amount.Equal(decimal.RequireFromString("5.25")))
	assert.True(t, req.IsRecur)
	assert.Equal(t, int64(55), req.RecurSeriesID)
	assert.Equal(t, int64(7), req.ContactID)
	require.NotNil(t, req.Card)
	assert.Equal(t, 12, req.Card.ExpMonth)
	assert.Equal(t, 2027, req.Card.ExpYear)
	assert.Equal(t, "1 Main St", req.Card.AVSStreet)
	assert.Equal(t, "10001", req.Card.AVSZip)

	_, err = attemptFromParams(map[string]any{ParamProcessorID: 3, ParamAmount: "1", ParamCardNumber: "4111", ParamExpMonth: "July"})
	assert.True(t, domain.IsValidationError(err))
}

func TestCreditCardFormFields(t *testing.T) {
	assert.Equal(t, []string{"credit_card_type", "credit_card_number", "cvv2", "credit_card_exp_date", "payment_token"}, CreditCardFormFields())
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "missing credit card info", userMessage(domain.ErrMissingCardInfo))
	assert.Equal(t, "boom", userMessage(errors.New("boom")))
}
