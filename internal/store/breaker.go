package store

import (
	"time"

	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
)

// newBreaker trips after repeated connectivity failures only; SQL errors
// mean the server answered and never open the circuit.
func newBreaker(name string) *smerrors.CircuitBreaker {
	return smerrors.NewCircuitBreaker(name,
		smerrors.WithMaxFailures(5),
		smerrors.WithResetTimeout(30*time.Second),
		smerrors.WithFailureFilter(smerrors.IsRetryable),
	)
}
