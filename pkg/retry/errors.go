package retry

import (
	"errors"
	"fmt"
)

// ErrMaxRetriesExceeded matches every *MaxRetriesExceededError via errors.Is.
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// MaxRetriesExceededError reports that the retry budget is spent.
type MaxRetriesExceededError struct {
	Attempts int
	Err      error
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *MaxRetriesExceededError) Unwrap() error {
	return e.Err
}

func (e *MaxRetriesExceededError) Is(target error) bool {
	return target == ErrMaxRetriesExceeded
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as not worth retrying. The executor stops at the
// current attempt and reports the budget as exhausted.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
