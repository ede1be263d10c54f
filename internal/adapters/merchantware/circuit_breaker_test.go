package merchantware

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransport = errors.New("dial tcp: connection refused")

func newTestBreaker(maxFailures uint32) (*CircuitBreaker, *time.Time) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures: maxFailures,
		Cooldown:    time.Second,
		MaxProbes:   1,
	})
	cb.now = func() time.Time { return now }
	cb.changedAt = now
	return cb, &now
}

func failing() error { return errTransport }
func succeeding() error { return nil }

func TestCircuitBreaker_DefaultConfig(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig()
	assert.Equal(t, uint32(5), cfg.MaxFailures)
	assert.Equal(t, 30*time.Second, cfg.Cooldown)
	assert.Equal(t, uint32(1), cfg.MaxProbes)
}

func TestCircuitBreaker_StaysClosedOnSuccess(t *testing.T) {
	cb, _ := newTestBreaker(3)

	for i := 0; i < 10; i++ {
		require.NoError(t, cb.Call(succeeding, nil))
	}

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(0), cb.Failures())
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(3)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Call(failing, nil), errTransport)
	}
	assert.Equal(t, StateOpen, cb.State())

	executed := false
	err := cb.Call(func() error {
		executed = true
		return nil
	}, nil)

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, executed)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(3)

	_ = cb.Call(failing, nil)
	_ = cb.Call(failing, nil)
	require.NoError(t, cb.Call(succeeding, nil))
	_ = cb.Call(failing, nil)

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.Failures())
}

func TestCircuitBreaker_IgnoresNonTrippingErrors(t *testing.T) {
	cb, _ := newTestBreaker(2)
	errProtocol := errors.New("unexpected status 400")
	tripped := func(err error) bool { return errors.Is(err, errTransport) }

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, cb.Call(func() error { return errProtocol }, tripped), errProtocol)
	}

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	t.Run("success closes", func(t *testing.T) {
		cb, now := newTestBreaker(1)
		_ = cb.Call(failing, nil)
		require.Equal(t, StateOpen, cb.State())

		*now = now.Add(2 * time.Second)
		require.NoError(t, cb.Call(succeeding, nil))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("failure reopens", func(t *testing.T) {
		cb, now := newTestBreaker(1)
		_ = cb.Call(failing, nil)

		*now = now.Add(2 * time.Second)
		_ = cb.Call(failing, nil)
		assert.Equal(t, StateOpen, cb.State())
		assert.ErrorIs(t, cb.Call(succeeding, nil), ErrCircuitOpen)
	})
}

func TestCircuitBreaker_HalfOpenAllowsSingleProbe(t *testing.T) {
	cb, now := newTestBreaker(1)
	_ = cb.Call(failing, nil)
	*now = now.Add(2 * time.Second)

	probeStarted := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cb.Call(func() error {
			close(probeStarted)
			<-release
			return nil
		}, nil)
	}()

	<-probeStarted
	assert.ErrorIs(t, cb.Call(succeeding, nil), ErrTooManyRequests)
	close(release)
	wg.Wait()

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_StateChangeHook(t *testing.T) {
	cb, now := newTestBreaker(1)

	var transitions []string
	cb.OnStateChange(func(from, to CircuitState) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	_ = cb.Call(failing, nil)
	*now = now.Add(2 * time.Second)
	_ = cb.Call(succeeding, nil)

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(1)
	_ = cb.Call(failing, nil)
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(0), cb.Failures())
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(42).String())
}
