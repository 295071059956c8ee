// Package deadletter deposits terminally failed notifications into the
// durable dead-letter queue. Deposits are never retried automatically.
package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/courier/pkg/broker"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/notification"
)

// Failure reasons recorded on dead letters.
const (
	ReasonMaxRetries      = "Max retries exceeded"
	ReasonMaxRedeliveries = "Max redeliveries exceeded"
	ReasonRenderFailed    = "Template render failed"
	ReasonRejected        = "Rejected by provider"
)

// HeaderFailureReason carries the failure reason on the broker message.
const HeaderFailureReason = "x-failure-reason"

// Sink publishes dead-letter records.
type Sink struct {
	pub    broker.Publisher
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Sink publishing through pub.
func New(pub broker.Publisher, opts ...Option) *Sink {
	s := &Sink{pub: pub, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deposit appends the original payload with reason to the dead-letter queue.
// rec.FailedAt is filled in when zero.
func (s *Sink) Deposit(ctx context.Context, rec notification.DeadLetterRecord) error {
	if rec.FailedAt.IsZero() {
		rec.FailedAt = s.now().UTC()
	}
	if !json.Valid(rec.Payload) {
		quoted, err := json.Marshal(string(rec.Payload))
		if err != nil {
			return fmt.Errorf("failed to encode dead letter payload: %w", err)
		}
		rec.Payload = quoted
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode dead letter: %w", err)
	}

	headers := map[string]any{HeaderFailureReason: rec.FailureReason}
	if rec.CorrelationID != "" {
		headers[broker.HeaderCorrelationID] = rec.CorrelationID
	}

	if err := s.pub.Publish(ctx, broker.Message{
		ID:         rec.MessageID,
		RoutingKey: broker.QueueDeadLetter,
		Body:       body,
		Headers:    headers,
	}); err != nil {
		return fmt.Errorf("failed to deposit dead letter %s: %w", rec.MessageID, err)
	}

	s.logger.WarnContext(ctx, "notification dead-lettered",
		logger.NotificationID(rec.MessageID),
		logger.Channel(rec.Channel.String()),
		slog.String("failure_reason", rec.FailureReason),
		slog.String("last_error", rec.LastError))
	return nil
}
