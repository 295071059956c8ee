// Package admission accepts notification requests into the pipeline.
//
// Controller.Admit runs, in order: idempotency check, per-user rate limit,
// request validation, status record creation, broker publish, idempotency
// marker. Idempotency and status store outages are logged and admission goes
// on to publish. The sequence runs inside the "admission" circuit breaker;
// only publish failures count against it, so rejected requests never trip
// it. The marker is written after the publish succeeds, which means a crash
// between the two lets a client retry publish the same request twice.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/courier/pkg/broker"
	"github.com/dmitrymomot/courier/pkg/circuitbreaker"
	"github.com/dmitrymomot/courier/pkg/correlation"
	"github.com/dmitrymomot/courier/pkg/idempotency"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/ratelimiter"
	"github.com/dmitrymomot/courier/pkg/status"
)

// BreakerName names the circuit breaker around the admission path.
const BreakerName = "admission"

var (
	ErrRateLimitExceeded  = errors.New("rate_limit_exceeded")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrPublishFailed      = errors.New("admission: publish failed")
)

// Outcome is the result of an admission attempt.
type Outcome string

const (
	OutcomeQueued           Outcome = "queued"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeRejected         Outcome = "rejected"
)

// Rejection reasons reported to callers.
const (
	ReasonRateLimitExceeded  = "rate_limit_exceeded"
	ReasonInvalidChannel     = "invalid_channel"
	ReasonInvalidRequest     = "invalid_request"
	ReasonServiceUnavailable = "service_unavailable"
)

// Result describes what Admit did with a request.
type Result struct {
	Outcome   Outcome             `json:"status"`
	RequestID string              `json:"notification_id"`
	Reason    string              `json:"reason,omitempty"`
	RateLimit *ratelimiter.Result `json:"-"`
}

// Controller admits requests. Safe for concurrent use.
type Controller struct {
	idempotency idempotency.Store
	limiter     *ratelimiter.Limiter
	statuses    status.Store
	publisher   broker.Publisher
	breaker     *circuitbreaker.Breaker
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithBreaker replaces the default admission breaker.
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(c *Controller) {
		if b != nil {
			c.breaker = b
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source for status timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a controller. All dependencies are required.
func New(idem idempotency.Store, limiter *ratelimiter.Limiter, statuses status.Store, pub broker.Publisher, opts ...Option) (*Controller, error) {
	if idem == nil || limiter == nil || statuses == nil || pub == nil {
		return nil, errors.New("admission: idempotency store, limiter, status store and publisher are required")
	}

	c := &Controller{
		idempotency: idem,
		limiter:     limiter,
		statuses:    statuses,
		publisher:   pub,
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = circuitbreaker.New(BreakerName, circuitbreaker.WithLogger(c.logger))
	}
	return c, nil
}

// Admit runs the admission sequence for req. Rejections return a Result with
// OutcomeRejected together with ErrRateLimitExceeded,
// notification.ErrInvalidChannel or notification.ErrInvalidRequest. An open
// breaker returns ErrServiceUnavailable without touching any store.
func (c *Controller) Admit(ctx context.Context, req notification.Request) (Result, error) {
	if req.CorrelationID == "" {
		req.CorrelationID = correlation.FromContext(ctx)
	}

	var (
		res       Result
		rejection error
	)
	err := c.breaker.Guard(ctx, func(ctx context.Context) error {
		var err error
		res, rejection, err = c.admit(ctx, req)
		return err
	})

	switch {
	case circuitbreaker.IsOpen(err):
		c.logger.WarnContext(ctx, "admission circuit open, rejecting request",
			logger.NotificationID(req.RequestID),
			logger.Error(err))
		return Result{Outcome: OutcomeRejected, RequestID: req.RequestID, Reason: ReasonServiceUnavailable},
			errors.Join(ErrServiceUnavailable, err)
	case err != nil:
		c.logger.ErrorContext(ctx, "admission failed",
			logger.NotificationID(req.RequestID),
			logger.Error(err))
		return Result{RequestID: req.RequestID, RateLimit: res.RateLimit}, err
	case rejection != nil:
		c.logger.InfoContext(ctx, "request rejected",
			logger.NotificationID(req.RequestID),
			logger.UserID(req.UserID),
			slog.String("reason", res.Reason))
		return res, rejection
	}
	return res, nil
}

func (c *Controller) admit(ctx context.Context, req notification.Request) (Result, error, error) {
	res := Result{RequestID: req.RequestID}
	reject := func(reason string, err error) (Result, error, error) {
		res.Outcome = OutcomeRejected
		res.Reason = reason
		return res, err, nil
	}

	if req.RequestID == "" {
		return reject(ReasonInvalidRequest, fmt.Errorf("%w: request_id is required", notification.ErrInvalidRequest))
	}

	processed, err := c.idempotency.IsProcessed(ctx, req.RequestID)
	if err != nil {
		// Store outages must not block delivery; at worst this admits a duplicate.
		c.logger.WarnContext(ctx, "idempotency check failed, treating request as new",
			logger.NotificationID(req.RequestID),
			logger.Error(err))
		processed = false
	}
	if processed {
		res.Outcome = OutcomeAlreadyProcessed
		return res, nil, nil
	}

	limit, err := c.limiter.Allow(ctx, req.UserID)
	if err != nil {
		return res, nil, fmt.Errorf("admission: rate limit: %w", err)
	}
	res.RateLimit = limit
	if !limit.Allowed() {
		return reject(ReasonRateLimitExceeded, ErrRateLimitExceeded)
	}

	if !req.Channel.Valid() {
		return reject(ReasonInvalidChannel, fmt.Errorf("%w: %q", notification.ErrInvalidChannel, req.Channel))
	}
	if err := req.Validate(); err != nil {
		return reject(ReasonInvalidRequest, err)
	}

	now := c.now()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	if req.Priority == 0 {
		req.Priority = notification.PriorityDefault
	}

	if err := c.statuses.Create(ctx, notification.NewStatusRecord(req, now)); err != nil {
		// The worker recreates a missing record when it settles the message.
		c.logger.WarnContext(ctx, "failed to create status record, publishing anyway",
			logger.NotificationID(req.RequestID),
			logger.Error(err))
	}

	body, err := req.Marshal()
	if err != nil {
		return res, nil, fmt.Errorf("admission: encode request: %w", err)
	}
	msg := broker.Message{
		ID:         req.RequestID,
		RoutingKey: req.Channel.String(),
		Body:       body,
	}
	if req.CorrelationID != "" {
		msg.Headers = map[string]any{broker.HeaderCorrelationID: req.CorrelationID}
	}
	if err := c.publisher.Publish(ctx, msg); err != nil {
		return res, nil, errors.Join(ErrPublishFailed, err)
	}

	if err := c.idempotency.MarkProcessed(ctx, req.RequestID); err != nil {
		// Already published; a retry with this id will publish again.
		c.logger.WarnContext(ctx, "failed to set idempotency marker",
			logger.NotificationID(req.RequestID),
			logger.Error(err))
	}

	c.logger.InfoContext(ctx, "notification queued",
		logger.NotificationID(req.RequestID),
		logger.UserID(req.UserID),
		logger.Channel(req.Channel.String()))

	res.Outcome = OutcomeQueued
	return res, nil, nil
}

// Status returns the status record for id or notification.ErrStatusNotFound.
func (c *Controller) Status(ctx context.Context, id string) (notification.StatusRecord, error) {
	return c.statuses.Get(ctx, id)
}

// BreakerState reports the admission breaker state.
func (c *Controller) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}
