package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          time.Hour,
	})

	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Allow())
		cb.Mark(fmt.Errorf("fail %d", i))
	}
	assert.Equal(t, StateClosed, cb.State(), "below threshold stays closed")

	require.NoError(t, cb.Allow())
	cb.Mark(fmt.Errorf("fail 3"))
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Allow()
	require.Error(t, err)
	assert.True(t, IsUnavailable(err), "open circuit reports unavailable")
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker("test", CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Hour})

	cb.Mark(fmt.Errorf("one"))
	cb.Mark(nil)
	cb.Mark(fmt.Errorf("two"))
	assert.Equal(t, StateClosed, cb.State(), "non-consecutive failures never open the circuit")
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Millisecond,
	})

	cb.Mark(fmt.Errorf("down"))
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, cb.Allow(), "timeout elapsed, probe allowed")
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.Mark(nil)
	assert.Equal(t, StateHalfOpen, cb.State(), "one success is not enough")
	cb.Mark(nil)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          time.Millisecond,
	})

	cb.Mark(fmt.Errorf("down"))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, cb.Allow())
	cb.Mark(fmt.Errorf("still down"))
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(99).String())
}
