// Package retry runs a fallible operation a bounded number of times with
// exponential backoff between attempts.
//
// The delay before retry n (n starting at 1) is factor * base^n seconds, so
// with the defaults (base 2, factor 1) an operation failing twice sleeps 2s and
// then 4s before its third and final attempt. When the last attempt fails, the
// executor returns a *MaxRetriesExceededError that carries the final cause.
//
// Backoff sleeps block the calling goroutine; nothing else runs on it while
// waiting. The sleep honours context cancellation.
//
//	exec := retry.New(retry.WithMaxAttempts(3), retry.WithBackoff(2, 1))
//	err := exec.Do(ctx, func(ctx context.Context) error {
//	    return provider.Send(ctx, msg)
//	})
//	var maxErr *retry.MaxRetriesExceededError
//	if errors.As(err, &maxErr) {
//	    // dead-letter
//	}
//
// Wrap returns the retrying operation as a plain function so it can be handed
// to a circuit breaker as one unit.
package retry
