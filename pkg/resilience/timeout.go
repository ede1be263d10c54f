package resilience

import (
	"context"
	"time"
)

// TimeoutConfig is the connector's timeout hierarchy, outermost first:
//
//	HTTP handler (60s)
//	  payment attempt (50s): credentials, host lookups, one gateway Sale
//	    gateway exchange (20s connect + 20s total, set on the Merchantware client)
//	  host API call (15s)
//
// Each layer finishes before its parent gives up.
type TimeoutConfig struct {
	HTTPHandler time.Duration
	CronJob     time.Duration // a whole ProcessDue batch
	Payment     time.Duration
	HostAPI     time.Duration
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler: 60 * time.Second,
		CronJob:     10 * time.Minute,
		Payment:     50 * time.Second,
		HostAPI:     15 * time.Second,
	}
}

// HandlerContext bounds one HTTP request
func (tc *TimeoutConfig) HandlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HTTPHandler)
}

// CronContext bounds one recurring batch
func (tc *TimeoutConfig) CronContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.CronJob)
}

// PaymentContext bounds one payment attempt
func (tc *TimeoutConfig) PaymentContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Payment)
}

// HostAPIContext bounds one host API call
func (tc *TimeoutConfig) HostAPIContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HostAPI)
}
