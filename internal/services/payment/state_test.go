package payment

import (
	"testing"

	"github.com/kevin07696/tsys-connector/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.AttemptState
		want     bool
	}{
		{models.StateInitiated, models.StateCredentialsResolved, true},
		{models.StateInitiated, models.StateSent, false},
		{models.StateCredentialsResolved, models.StateCurrencyValidated, true},
		{models.StateCurrencyValidated, models.StateError, true},
		{models.StateRequestComposed, models.StateSent, true},
		{models.StateSent, models.StateApproved, true},
		{models.StateSent, models.StateDeclined, true},
		{models.StateRequestComposed, models.StateApproved, false},
		{models.StateApproved, models.StateError, false},
		{models.StateDeclined, models.StateApproved, false},
		{models.StateError, models.StateError, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, canTransition(tt.from, tt.to))
		})
	}
}

func TestAttempt_FullPath(t *testing.T) {
	a := newAttempt()
	for _, s := range []models.AttemptState{
		models.StateCredentialsResolved,
		models.StateCurrencyValidated,
		models.StateRequestComposed,
		models.StateSent,
		models.StateApproved,
	} {
		require.NoError(t, a.advance(s))
	}

	assert.Equal(t, models.StateApproved, a.state)
	assert.Len(t, a.history, 6)
	assert.Error(t, a.advance(models.StateError), "terminal states are final")
}
