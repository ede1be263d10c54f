package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ApprovalStatus is the interpreted outcome of a gateway Sale
type ApprovalStatus string

const (
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalDeclined ApprovalStatus = "declined"
	ApprovalError    ApprovalStatus = "error"
)

// MaxInvoiceDigits is the longest invoice number the host ledger accepts.
const MaxInvoiceDigits = 8

// PlaceholderToken is the literal the payment form submits when no token was produced.
const PlaceholderToken = "Authorization token"

// RawCard holds card fields collected by the host form
type RawCard struct {
	Number     string
	CVV        string
	ExpMonth   int
	ExpYear    int
	HolderName string
	AVSStreet  string
	AVSZip     string
}

// Complete reports whether every field the gateway requires for a keyed sale is present.
func (c *RawCard) Complete() bool {
	if c == nil {
		return false
	}
	return strings.TrimSpace(c.Number) != "" &&
		strings.TrimSpace(c.CVV) != "" &&
		c.ExpMonth >= 1 && c.ExpMonth <= 12 &&
		c.ExpYear > 0
}

// ExpirationMMYY formats the expiry the way Merchantware expects it.
func (c *RawCard) ExpirationMMYY() string {
	return fmt.Sprintf("%02d%02d", c.ExpMonth, c.ExpYear%100)
}

// PaymentInstrument is either a vault token or a raw card. Exactly one is set.
type PaymentInstrument struct {
	VaultToken string
	Card       *RawCard
}

// VaultInstrument builds a token-backed instrument
func VaultInstrument(token string) PaymentInstrument {
	return PaymentInstrument{VaultToken: token}
}

// CardInstrument builds a keyed-card instrument
func CardInstrument(card RawCard) PaymentInstrument {
	return PaymentInstrument{Card: &card}
}

// IsVault reports whether the instrument charges a stored token
func (p PaymentInstrument) IsVault() bool {
	return p.VaultToken != ""
}

// Validate enforces the one-of rule
func (p PaymentInstrument) Validate() error {
	switch {
	case p.VaultToken != "" && p.Card != nil:
		return fmt.Errorf("payment instrument has both a vault token and card data")
	case p.VaultToken != "":
		return nil
	case p.Card != nil:
		if !p.Card.Complete() {
			return fmt.Errorf("card data is incomplete")
		}
		return nil
	default:
		return fmt.Errorf("payment instrument is empty")
	}
}

// UsableToken reports whether a submitted payment token can be charged.
func UsableToken(token string) bool {
	return token != "" && token != PlaceholderToken
}

// SaleRequest is a single Sale call to the gateway
type SaleRequest struct {
	Credentials   MerchantCredentials
	Instrument    PaymentInstrument
	Amount        decimal.Decimal
	InvoiceNumber string
}

// Validate checks the request before it is encoded
func (r *SaleRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", r.Amount.StringFixed(2))
	}
	if err := ValidateInvoiceNumber(r.InvoiceNumber); err != nil {
		return err
	}
	return r.Instrument.Validate()
}

// ValidateInvoiceNumber checks the host ledger constraint: 1 to 8 ASCII digits.
func ValidateInvoiceNumber(invoice string) error {
	if invoice == "" || len(invoice) > MaxInvoiceDigits {
		return fmt.Errorf("invoice number must be 1-%d digits, got %q", MaxInvoiceDigits, invoice)
	}
	for _, r := range invoice {
		if r < '0' || r > '9' {
			return fmt.Errorf("invoice number must be numeric, got %q", invoice)
		}
	}
	return nil
}

// SaleResult is the parsed Sale response
type SaleResult struct {
	ApprovalStatus    ApprovalStatus
	StatusText        string // ApprovalStatus exactly as the gateway sent it
	VaultToken        string // transaction token, usable for BoardCard
	AuthorizationCode string
	MaskedCardNumber  string // last 4 only
	CardTypeCode      *int
	ErrorMessage      string
	RawFault          string
}

// IsApproved reports an exact APPROVED response
func (r *SaleResult) IsApproved() bool {
	return r != nil && r.ApprovalStatus == ApprovalApproved
}

// BoardCardResult is the parsed BoardCard response
type BoardCardResult struct {
	VaultToken   string
	ErrorMessage string
}

// Succeeded reports whether the gateway issued a vault token
func (r *BoardCardResult) Succeeded() bool {
	return r != nil && r.VaultToken != ""
}

// Card type codes returned by Merchantware
const (
	CardTypeAmex       = 1
	CardTypeDiscover   = 2
	CardTypeMasterCard = 3
	CardTypeVisa       = 4
)

var cardTypeNames = map[int]string{
	CardTypeAmex:       "Amex",
	CardTypeDiscover:   "Discover",
	CardTypeMasterCard: "MasterCard",
	CardTypeVisa:       "Visa",
}

// CardTypeName maps a gateway card type code. Unknown codes return false.
func CardTypeName(code int) (string, bool) {
	name, ok := cardTypeNames[code]
	return name, ok
}
