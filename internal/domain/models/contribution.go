package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContributionStatus is a host contribution status label
type ContributionStatus string

const (
	ContributionCompleted ContributionStatus = "Completed"
	ContributionPending   ContributionStatus = "Pending"
	ContributionFailed    ContributionStatus = "Failed"
)

// Contribution is the subset of a host contribution this connector reads and writes.
type Contribution struct {
	ID                  int64
	ContactID           int64
	RecurSeriesID       int64
	PaymentProcessorID  int64
	FinancialTypeID     int64
	PaymentInstrumentID int64
	CampaignID          *int64
	TotalAmount         decimal.Decimal
	Currency            string
	InvoiceID           string
	Source              string
	ReceiveDate         time.Time
	StatusID            int
	TrxnID              string
	IsTest              bool
}

// FrequencyUnit is the host's recurring frequency unit
type FrequencyUnit string

const (
	FrequencyDay   FrequencyUnit = "day"
	FrequencyWeek  FrequencyUnit = "week"
	FrequencyMonth FrequencyUnit = "month"
	FrequencyYear  FrequencyUnit = "year"
)

// RecurringSeries is a host recurring contribution schedule
type RecurringSeries struct {
	ID                  int64
	ContactID           int64
	PaymentProcessorID  int64
	FinancialTypeID     int64
	PaymentInstrumentID int64
	CampaignID          *int64
	Amount              decimal.Decimal
	Currency            string
	FrequencyUnit       FrequencyUnit
	FrequencyInterval   int
	NextScheduledDate   time.Time
	InstallmentsLeft    *int
	IsTest              bool
}

// NextDate returns the scheduled date after from.
func (s *RecurringSeries) NextDate(from time.Time) time.Time {
	interval := s.FrequencyInterval
	if interval < 1 {
		interval = 1
	}
	switch s.FrequencyUnit {
	case FrequencyDay:
		return from.AddDate(0, 0, interval)
	case FrequencyWeek:
		return from.AddDate(0, 0, 7*interval)
	case FrequencyYear:
		return from.AddDate(interval, 0, 0)
	default:
		return from.AddDate(0, interval, 0)
	}
}

// RecurOptions carries per-run choices for a recurring charge
type RecurOptions struct {
	IsEmailReceipt bool
	MembershipID   *int64
}

// VaultTokenRecord links a boarded vault token to a recurring series.
// At most one record exists per token and per series.
type VaultTokenRecord struct {
	ID                 int64
	Token              string
	RecurSeriesID      int64
	ContactID          int64
	PaymentProcessorID int64
	CreatedAt          time.Time
}

// PaymentTokenRecord is the host-side payment token entity created after boarding.
type PaymentTokenRecord struct {
	ContactID          int64
	PaymentProcessorID int64
	Token              string
	MaskedAccount      string
	ExpiryDate         *time.Time
}
