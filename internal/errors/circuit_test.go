package errors

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TS07: Circuit breaker opens after max failures
func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	// Given: a circuit breaker with max 3 failures
	cb := NewCircuitBreaker("database",
		WithMaxFailures(3),
		WithResetTimeout(time.Second),
	)

	// When: recording 3 failures
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("error") })
	}

	// Then: circuit is open and calls are rejected without running
	assert.Equal(t, StateOpen, cb.State())
	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.False(t, called)
}

// TS08: Circuit breaker recovers after timeout
func TestCircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	// Given: an open circuit breaker
	cb := NewCircuitBreaker("database",
		WithMaxFailures(2),
		WithResetTimeout(50*time.Millisecond),
	)
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errors.New("error") })
	}
	require.Equal(t, StateOpen, cb.State())

	// When: waiting for reset timeout
	time.Sleep(60 * time.Millisecond)

	// Then: half-open allows a trial which closes the circuit
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReOpens(t *testing.T) {
	cb := NewCircuitBreaker("database",
		WithMaxFailures(2),
		WithResetTimeout(50*time.Millisecond),
	)
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errors.New("error") })
	}
	time.Sleep(60 * time.Millisecond)

	_ = cb.Execute(func() error { return errors.New("still failing") })

	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("database", WithMaxFailures(5))
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("error") })
	}
	require.Equal(t, 3, cb.Failures())

	err := cb.Execute(func() error { return nil })

	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_FailureFilter(t *testing.T) {
	// Given: a breaker that only counts retryable errors
	cb := NewCircuitBreaker("database",
		WithMaxFailures(1),
		WithFailureFilter(IsRetryable),
	)

	// When: a non-retryable SQL error is returned
	err := cb.Execute(func() error { return New(ErrCodeSQLFailed, "syntax error", nil) })

	// Then: error propagates but the circuit stays closed
	assert.Error(t, err)
	assert.Equal(t, StateClosed, cb.State())

	// And: a connectivity failure trips it
	_ = cb.Execute(func() error { return DatabaseError("down", nil) })
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitExecute_ReturnsResult(t *testing.T) {
	cb := NewCircuitBreaker("database")

	n, err := CircuitExecute(cb, func() (int, error) { return 42, nil })

	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestCircuitBreaker_Concurrent(t *testing.T) {
	cb := NewCircuitBreaker("database", WithMaxFailures(100))

	var wg sync.WaitGroup
	var total atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = cb.Execute(func() error {
				if i%2 == 0 {
					return nil
				}
				return errors.New("error")
			})
			total.Add(1)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(20), total.Load())
}

func TestNewCircuitBreaker_DefaultValues(t *testing.T) {
	cb := NewCircuitBreaker("postgres")

	assert.Equal(t, "postgres", cb.Name())
	assert.Equal(t, 5, cb.maxFailures)
	assert.Equal(t, 30*time.Second, cb.resetTimeout)
	assert.Equal(t, "closed", cb.State().String())
}
