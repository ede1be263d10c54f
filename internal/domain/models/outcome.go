package models

// AttemptState is a step of one payment attempt
type AttemptState string

const (
	StateInitiated           AttemptState = "initiated"
	StateCredentialsResolved AttemptState = "credentials_resolved"
	StateCurrencyValidated   AttemptState = "currency_validated"
	StateRequestComposed     AttemptState = "request_composed"
	StateSent                AttemptState = "sent"
	StateApproved            AttemptState = "approved"
	StateDeclined            AttemptState = "declined"
	StateError               AttemptState = "error"
)

// IsTerminal reports whether no further transition is allowed
func (s AttemptState) IsTerminal() bool {
	return s == StateApproved || s == StateDeclined || s == StateError
}

// PaymentOutcome is produced once per attempt and handed to the host.
type PaymentOutcome struct {
	State             AttemptState
	Sent              bool // the sale request reached the gateway client
	Status            ContributionStatus
	StatusID          int
	TrxnID            string
	InvoiceNumber     string
	AuthorizationCode string
	MaskedCardNumber  string
	CardTypeCode      *int
	CardTypeID        *int
	VaultToken        string
	BoardedTokenID    *int64
	Message           string
	Warnings          []string
}

// Completed reports whether the charge was captured
func (o *PaymentOutcome) Completed() bool {
	return o != nil && o.Status == ContributionCompleted
}
