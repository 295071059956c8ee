// Package circuitbreaker isolates failing dependencies.
//
// A Breaker guards one named dependency. It starts closed and counts
// consecutive failures; once the count reaches the failure threshold it opens
// and rejects calls with ErrOpen without invoking the guarded operation. After
// the recovery timeout has elapsed since the last recorded failure, exactly one
// probe call is let through (half-open). A successful probe closes the breaker
// and resets the failure count; a failed probe reopens it and restarts the
// timer from that failure.
//
// The breaker treats whatever it guards as a single unit. When the guarded
// function is itself a retrying operation, the whole retry sequence counts as
// one success or one failure:
//
//	exec := retry.New(retry.WithMaxAttempts(3))
//	err := breaker.Guard(ctx, exec.Wrap(sendEmail))
//
// Breakers are held per process and never share counters. Use a Registry to
// look breakers up by dependency name.
package circuitbreaker
