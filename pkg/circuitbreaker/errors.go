package circuitbreaker

import "errors"

// ErrOpen is returned when a call is rejected because the breaker is open
// or a half-open probe is already in flight.
var ErrOpen = errors.New("circuit breaker is open")

// IsOpen checks if an error indicates the circuit breaker rejected the call.
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpen)
}
