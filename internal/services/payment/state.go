package payment

import (
	"fmt"

	"github.com/kevin07696/tsys-connector/internal/domain/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "payment_attempts_total",
	Help: "Payment attempts by terminal state",
}, []string{"state"})

// transitions lists the legal next states. Every non-terminal state may
// also fail straight to StateError.
var transitions = map[models.AttemptState][]models.AttemptState{
	models.StateInitiated:           {models.StateCredentialsResolved},
	models.StateCredentialsResolved: {models.StateCurrencyValidated},
	models.StateCurrencyValidated:   {models.StateRequestComposed},
	models.StateRequestComposed:     {models.StateSent},
	models.StateSent:                {models.StateApproved, models.StateDeclined},
}

// canTransition reports whether from -> to is allowed
func canTransition(from, to models.AttemptState) bool {
	if from.IsTerminal() {
		return false
	}
	if to == models.StateError {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// attempt tracks the state of one payment attempt
type attempt struct {
	state   models.AttemptState
	history []models.AttemptState
}

func newAttempt() *attempt {
	return &attempt{
		state:   models.StateInitiated,
		history: []models.AttemptState{models.StateInitiated},
	}
}

func (a *attempt) advance(to models.AttemptState) error {
	if !canTransition(a.state, to) {
		return fmt.Errorf("illegal attempt transition %s -> %s", a.state, to)
	}
	a.state = to
	a.history = append(a.history, to)
	if to.IsTerminal() {
		attemptsTotal.WithLabelValues(string(to)).Inc()
	}
	return nil
}
