package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/courier/pkg/broker"
	"github.com/dmitrymomot/courier/pkg/circuitbreaker"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/retry"
	"github.com/dmitrymomot/courier/pkg/status"
	"github.com/dmitrymomot/courier/svc/deadletter"
	"github.com/dmitrymomot/courier/svc/templates"
	"github.com/dmitrymomot/courier/svc/users"
)

// Config holds worker settings loadable from the environment.
type Config struct {
	MaxRedeliveries int `env:"WORKER_MAX_REDELIVERIES" envDefault:"0"`
	Retry           retry.Config
	Breaker         circuitbreaker.Config
}

// Options converts the config into worker options.
func (c Config) Options() []Option {
	return []Option{
		WithMaxRedeliveries(c.MaxRedeliveries),
		WithRetry(retry.New(c.Retry.Options()...)),
		WithBreakerOptions(c.Breaker.Options()...),
	}
}

// Deps are the collaborators every worker needs.
type Deps struct {
	Broker    broker.Broker
	Users     users.Directory
	Templates templates.Renderer
	Sender    Sender
	Statuses  status.Store
	Sink      *deadletter.Sink
}

func (d Deps) validate() error {
	var errs []error
	if d.Broker == nil {
		errs = append(errs, errors.New("broker is required"))
	}
	if d.Users == nil {
		errs = append(errs, errors.New("user directory is required"))
	}
	if d.Templates == nil {
		errs = append(errs, errors.New("template renderer is required"))
	}
	if d.Sender == nil {
		errs = append(errs, errors.New("sender is required"))
	}
	if d.Statuses == nil {
		errs = append(errs, errors.New("status store is required"))
	}
	if d.Sink == nil {
		errs = append(errs, errors.New("dead letter sink is required"))
	}
	return errors.Join(errs...)
}

// BreakerName returns the provider breaker name for a channel.
func BreakerName(ch notification.Channel) string {
	switch ch {
	case notification.ChannelEmail:
		return "send_email"
	case notification.ChannelPush:
		return "send_push_notification"
	default:
		return "send_" + ch.String()
	}
}

// Worker consumes a single channel queue.
type Worker struct {
	channel notification.Channel
	queue   string
	deps    Deps

	breaker         *circuitbreaker.Breaker
	breakerOpts     []circuitbreaker.Option
	retry           *retry.Executor
	maxRedeliveries int
	logger          *slog.Logger
	now             func() time.Time

	mu       sync.Mutex
	stopping atomic.Bool
	cancel   context.CancelFunc
}

// Option configures a Worker.
type Option func(*Worker)

// WithBreaker replaces the provider breaker.
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(w *Worker) {
		if b != nil {
			w.breaker = b
		}
	}
}

// WithBreakerOptions configures the default provider breaker.
func WithBreakerOptions(opts ...circuitbreaker.Option) Option {
	return func(w *Worker) {
		w.breakerOpts = append(w.breakerOpts, opts...)
	}
}

// WithRetry replaces the retry executor wrapped around each provider call.
func WithRetry(e *retry.Executor) Option {
	return func(w *Worker) {
		if e != nil {
			w.retry = e
		}
	}
}

// WithMaxRedeliveries bounds how many times a message is republished after
// an open circuit or unexpected error. Zero means unbounded.
func WithMaxRedeliveries(n int) Option {
	return func(w *Worker) {
		if n >= 0 {
			w.maxRedeliveries = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// New creates a worker for ch consuming the queue of the same name.
func New(ch notification.Channel, deps Deps, opts ...Option) (*Worker, error) {
	if !ch.Valid() {
		return nil, fmt.Errorf("dispatch: %w: %q", notification.ErrInvalidChannel, ch)
	}
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}

	w := &Worker{
		channel: ch,
		queue:   ch.String(),
		deps:    deps,
		logger:  slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logger.Component("worker"), logger.Channel(ch.String()))
	if w.retry == nil {
		w.retry = retry.New(retry.WithLogger(w.logger))
	}
	if w.breaker == nil {
		bopts := append([]circuitbreaker.Option{circuitbreaker.WithLogger(w.logger)}, w.breakerOpts...)
		w.breaker = circuitbreaker.New(BreakerName(ch), bopts...)
	}
	return w, nil
}

// Run consumes until ctx is cancelled or Stop is called, and returns a
// function suitable for errgroup. A closed consumer stream is an error.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		w.mu.Lock()
		w.cancel = cancel
		w.mu.Unlock()

		consumer, err := w.deps.Broker.Consume(ctx, w.queue)
		if err != nil {
			return fmt.Errorf("dispatch: consume %s: %w", w.queue, err)
		}
		defer consumer.Close()

		w.logger.InfoContext(ctx, "worker started", logger.Queue(w.queue))
		defer w.logger.Info("worker stopped", logger.Queue(w.queue))

		for !w.stopping.Load() {
			d, err := consumer.Receive(ctx)
			if err != nil {
				if ctx.Err() != nil || w.stopping.Load() {
					return nil
				}
				return fmt.Errorf("dispatch: receive %s: %w", w.queue, err)
			}

			// The in-flight delivery settles even if shutdown starts meanwhile.
			if _, err := w.Process(context.WithoutCancel(ctx), d); err != nil {
				w.logger.ErrorContext(ctx, "failed to settle delivery",
					logger.NotificationID(d.MessageID()),
					logger.Error(err))
			}
		}
		return nil
	}
}

// Stop asks Run to return after the in-flight delivery.
func (w *Worker) Stop() {
	w.stopping.Store(true)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
}

// Process drives one delivery to a terminal state and settles it. The
// returned error reports a settlement or bookkeeping failure; the state is
// still the one reached.
func (w *Worker) Process(ctx context.Context, d broker.Delivery) (State, error) {
	start := time.Now()
	m := newLifecycle(w.logger, d.MessageID())

	req, err := notification.Unmarshal(d.Body())
	if err != nil {
		w.logger.WarnContext(ctx, "rejecting malformed message",
			logger.NotificationID(d.MessageID()),
			logger.Error(err))
		return w.settle(ctx, m, EventMalformed, d.Reject)
	}
	if err := m.Fire(ctx, EventDecoded); err != nil {
		return m.Current(), err
	}

	log := w.logger.With(
		logger.NotificationID(req.RequestID),
		logger.UserID(req.UserID),
		logger.CorrelationID(req.CorrelationID))
	log.InfoContext(ctx, "processing notification",
		logger.Attempt(broker.RedeliveryCount(d.Headers())+1))

	state, err := w.process(ctx, m, d, req, log)
	log.InfoContext(ctx, "delivery settled",
		logger.Outcome(string(state)),
		logger.Duration(time.Since(start)))
	return state, err
}

func (w *Worker) process(ctx context.Context, m *lifecycle, d broker.Delivery, req notification.Request, log *slog.Logger) (State, error) {
	profile, err := w.lookup(ctx, req, log)
	if err != nil {
		log.WarnContext(ctx, "user lookup failed, requeueing", logger.Error(err))
		return w.requeue(ctx, m, d, req, err)
	}

	if !profile.Enabled(w.channel) {
		log.InfoContext(ctx, "channel disabled by user preferences, skipping")
		return w.settle(ctx, m, EventSkip, d.Ack)
	}

	content, err := w.deps.Templates.Render(ctx, w.channel, req.TemplateCode, req.Variables)
	if errors.Is(err, templates.ErrRenderFailed) {
		return w.deadLetter(ctx, m, d, req, deadletter.ReasonRenderFailed, err)
	}
	if err != nil {
		log.WarnContext(ctx, "template service unavailable, requeueing", logger.Error(err))
		return w.requeue(ctx, m, d, req, err)
	}

	err = w.send(ctx, Envelope{Request: req, Profile: profile, Content: content})
	switch {
	case err == nil:
		return w.delivered(ctx, m, d, req, log)
	case circuitbreaker.IsOpen(err):
		log.WarnContext(ctx, "provider circuit open, requeueing", logger.Error(err))
		return w.requeue(ctx, m, d, req, err)
	case retry.IsPermanent(err):
		return w.deadLetter(ctx, m, d, req, deadletter.ReasonRejected, err)
	case errors.Is(err, retry.ErrMaxRetriesExceeded):
		return w.deadLetter(ctx, m, d, req, deadletter.ReasonMaxRetries, err)
	default:
		log.WarnContext(ctx, "unexpected delivery error, requeueing", logger.Error(err))
		return w.requeue(ctx, m, d, req, err)
	}
}

// send runs breaker.Guard(retry.Wrap(sender)). A permanent provider answer
// proves the provider reachable, so it is recorded as a breaker success.
func (w *Worker) send(ctx context.Context, env Envelope) error {
	var permanent error
	err := w.breaker.Guard(ctx, func(ctx context.Context) error {
		err := w.retry.Wrap(func(ctx context.Context) error {
			return w.deps.Sender.Send(ctx, env)
		})(ctx)
		if retry.IsPermanent(err) {
			permanent = err
			return nil
		}
		return err
	})
	if permanent != nil {
		return permanent
	}
	return err
}

func (w *Worker) lookup(ctx context.Context, req notification.Request, log *slog.Logger) (users.Profile, error) {
	profile, err := w.deps.Users.Lookup(ctx, req.UserID)
	if errors.Is(err, users.ErrUserNotFound) {
		log.WarnContext(ctx, "user not found, using request variables for contact details")
		return users.Profile{ID: req.UserID}, nil
	}
	return profile, err
}

func (w *Worker) delivered(ctx context.Context, m *lifecycle, d broker.Delivery, req notification.Request, log *slog.Logger) (State, error) {
	rec := w.statusRecord(ctx, req)
	rec.MarkSent(w.now())
	rec.RetryCount = broker.RedeliveryCount(d.Headers())

	var errs []error
	if err := w.deps.Statuses.Update(ctx, rec); err != nil {
		errs = append(errs, fmt.Errorf("update status: %w", err))
	}
	state, err := w.settle(ctx, m, EventDelivered, d.Ack)
	errs = append(errs, err)

	log.InfoContext(ctx, "notification delivered")
	return state, errors.Join(errs...)
}

func (w *Worker) deadLetter(ctx context.Context, m *lifecycle, d broker.Delivery, req notification.Request, reason string, cause error) (State, error) {
	var errs []error
	err := w.deps.Sink.Deposit(ctx, notification.DeadLetterRecord{
		MessageID:     req.RequestID,
		Channel:       req.Channel,
		Payload:       d.Body(),
		FailureReason: reason,
		LastError:     cause.Error(),
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		// Without a deposit the message must stay in the broker.
		w.logger.ErrorContext(ctx, "dead letter deposit failed, returning message to queue",
			logger.NotificationID(req.RequestID),
			logger.Error(err))
		if rerr := d.Requeue(); rerr != nil {
			return m.Current(), errors.Join(err, rerr)
		}
		return m.Current(), err
	}

	rec := w.statusRecord(ctx, req)
	rec.MarkFailed(w.now(), attempts(cause), cause.Error())
	if err := w.deps.Statuses.Update(ctx, rec); err != nil {
		errs = append(errs, fmt.Errorf("update status: %w", err))
	}

	state, err := w.settle(ctx, m, EventExhausted, d.Ack)
	errs = append(errs, err)
	return state, errors.Join(errs...)
}

func (w *Worker) requeue(ctx context.Context, m *lifecycle, d broker.Delivery, req notification.Request, cause error) (State, error) {
	count := broker.RedeliveryCount(d.Headers())
	if w.maxRedeliveries > 0 && count >= w.maxRedeliveries {
		return w.deadLetter(ctx, m, d, req, deadletter.ReasonMaxRedeliveries, cause)
	}

	err := w.deps.Broker.Publish(ctx, broker.Message{
		ID:         d.MessageID(),
		RoutingKey: w.queue,
		Body:       d.Body(),
		Headers:    broker.WithRedelivery(d.Headers()),
	})
	if err != nil {
		// Fall back to the broker's own redelivery.
		if rerr := d.Requeue(); rerr != nil {
			return m.Current(), errors.Join(err, rerr)
		}
		if ferr := m.Fire(ctx, EventRequeue); ferr != nil {
			return m.Current(), errors.Join(err, ferr)
		}
		return m.Current(), fmt.Errorf("republish: %w", err)
	}
	return w.settle(ctx, m, EventRequeue, d.Ack)
}

// statusRecord loads the current record, or starts one when it has expired.
func (w *Worker) statusRecord(ctx context.Context, req notification.Request) notification.StatusRecord {
	rec, err := w.deps.Statuses.Get(ctx, req.RequestID)
	if err != nil {
		if !errors.Is(err, notification.ErrStatusNotFound) {
			w.logger.WarnContext(ctx, "failed to load status record",
				logger.NotificationID(req.RequestID),
				logger.Error(err))
		}
		created := req.CreatedAt
		if created.IsZero() {
			created = w.now()
		}
		rec = notification.NewStatusRecord(req, created)
	}
	return rec
}

func (w *Worker) settle(ctx context.Context, m *lifecycle, event Event, settle func() error) (State, error) {
	if err := settle(); err != nil {
		return m.Current(), fmt.Errorf("settle %s: %w", event, err)
	}
	if err := m.Fire(ctx, event); err != nil {
		return m.Current(), err
	}
	return m.Current(), nil
}

func attempts(err error) int {
	var exhausted *retry.MaxRetriesExceededError
	if errors.As(err, &exhausted) {
		return exhausted.Attempts
	}
	return 0
}
