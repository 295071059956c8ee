package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/broker"
	"github.com/dmitrymomot/courier/pkg/circuitbreaker"
	"github.com/dmitrymomot/courier/pkg/email"
	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/retry"
	"github.com/dmitrymomot/courier/pkg/status"
	"github.com/dmitrymomot/courier/svc/deadletter"
	"github.com/dmitrymomot/courier/svc/dispatch"
	"github.com/dmitrymomot/courier/svc/templates"
	"github.com/dmitrymomot/courier/svc/users"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeSender struct {
	mu    sync.Mutex
	calls []dispatch.Envelope
	fail  func(call int) error
}

func (s *fakeSender) Send(_ context.Context, env dispatch.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, env)
	if s.fail != nil {
		return s.fail(len(s.calls))
	}
	return nil
}

func (s *fakeSender) Calls() []dispatch.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dispatch.Envelope(nil), s.calls...)
}

type sleeps struct {
	mu  sync.Mutex
	got []time.Duration
}

func (s *sleeps) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, d)
	return nil
}

type fixture struct {
	broker   *broker.MemoryBroker
	users    *users.StaticDirectory
	sender   *fakeSender
	statuses *status.MemoryStore
	breaker  *circuitbreaker.Breaker
	sleeps   *sleeps
	worker   *dispatch.Worker
}

func newFixture(t *testing.T, renderer templates.Renderer, opts ...dispatch.Option) *fixture {
	t.Helper()

	if renderer == nil {
		var err error
		renderer, err = templates.DefaultCatalog()
		require.NoError(t, err)
	}

	f := &fixture{
		broker: broker.NewMemoryBroker("email", "push"),
		users: users.NewStaticDirectory(users.Profile{
			ID:    "42",
			Email: "ann@example.com",
			Name:  "Ann",
		}),
		sender:   &fakeSender{},
		statuses: status.NewMemoryStore(notification.DefaultStatusTTL),
		breaker: circuitbreaker.New("send_email",
			circuitbreaker.WithFailureThreshold(5),
			circuitbreaker.WithClock(func() time.Time { return now })),
		sleeps: &sleeps{},
	}
	f.statuses.SetClock(func() time.Time { return now })

	executor := retry.New(retry.WithMaxAttempts(3), retry.WithBackoff(2, 1), retry.WithSleeper(f.sleeps.sleep))
	all := append([]dispatch.Option{
		dispatch.WithRetry(executor),
		dispatch.WithBreaker(f.breaker),
		dispatch.WithClock(func() time.Time { return now }),
	}, opts...)

	var err error
	f.worker, err = dispatch.New(notification.ChannelEmail, dispatch.Deps{
		Broker:    f.broker,
		Users:     f.users,
		Templates: renderer,
		Sender:    f.sender,
		Statuses:  f.statuses,
		Sink:      deadletter.New(f.broker, deadletter.WithClock(func() time.Time { return now })),
	}, all...)
	require.NoError(t, err)
	return f
}

func emailRequest(id string) notification.Request {
	return notification.Request{
		RequestID:     id,
		UserID:        "42",
		Channel:       notification.ChannelEmail,
		TemplateCode:  "welcome",
		Variables:     map[string]any{"name": "Ann", "link": "https://example.com"},
		Priority:      notification.PriorityDefault,
		CorrelationID: "corr-" + id,
		CreatedAt:     now,
	}
}

// enqueue admits req the way the gateway does and returns the delivery.
func (f *fixture) enqueue(t *testing.T, req notification.Request, headers map[string]any) broker.Delivery {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.statuses.Create(ctx, notification.NewStatusRecord(req, now)))
	body, err := req.Marshal()
	require.NoError(t, err)
	return f.publishRaw(t, req.RequestID, body, headers)
}

func (f *fixture) publishRaw(t *testing.T, id string, body []byte, headers map[string]any) broker.Delivery {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.broker.Publish(ctx, broker.Message{ID: id, RoutingKey: "email", Body: body, Headers: headers}))
	c, err := f.broker.Consume(ctx, "email")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	rctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	d, err := c.Receive(rctx)
	require.NoError(t, err)
	return d
}

func deadLetters(t *testing.T, b *broker.MemoryBroker) []notification.DeadLetterRecord {
	t.Helper()
	var out []notification.DeadLetterRecord
	for _, msg := range b.Pending(broker.QueueDeadLetter) {
		var rec notification.DeadLetterRecord
		require.NoError(t, json.Unmarshal(msg.Body, &rec))
		out = append(out, rec)
	}
	return out
}

func TestProcess_Sent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	d := f.enqueue(t, emailRequest("n1"), nil)

	state, err := f.worker.Process(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StateSent, state)

	calls := f.sender.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ann@example.com", calls[0].Profile.Email)
	assert.Equal(t, "Welcome to Our Service!", calls[0].Content.Subject)

	rec, err := f.statuses.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, notification.StatusSent, rec.Status)
	require.NotNil(t, rec.DeliveredAt)
	assert.Equal(t, now, *rec.DeliveredAt)

	assert.Len(t, f.broker.Acked(), 1)
	assert.Empty(t, f.broker.Pending("email"))
	assert.Empty(t, f.broker.Pending(broker.QueueDeadLetter))
}

func TestProcess_DeadLettersAfterMaxRetries(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.sender.fail = func(int) error { return errors.New("smtp: connection refused") }
	ctx := context.Background()
	d := f.enqueue(t, emailRequest("n1"), nil)

	state, err := f.worker.Process(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StateDeadLettered, state)

	assert.Len(t, f.sender.Calls(), 3)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, f.sleeps.got)

	dead := deadLetters(t, f.broker)
	require.Len(t, dead, 1)
	assert.Equal(t, "n1", dead[0].MessageID)
	assert.Equal(t, deadletter.ReasonMaxRetries, dead[0].FailureReason)
	assert.Contains(t, dead[0].LastError, "connection refused")
	assert.Equal(t, "corr-n1", dead[0].CorrelationID)

	rec, err := f.statuses.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, notification.StatusFailed, rec.Status)
	assert.Equal(t, 3, rec.RetryCount)
	assert.Contains(t, rec.ErrorMessage, "connection refused")

	assert.Len(t, f.broker.Acked(), 1)
	assert.Empty(t, f.broker.Pending("email"))
	assert.Equal(t, circuitbreaker.StateClosed, f.breaker.State())
}

func TestProcess_RecoversWithinRetryBudget(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.sender.fail = func(call int) error {
		if call < 3 {
			return errors.New("timeout")
		}
		return nil
	}
	d := f.enqueue(t, emailRequest("n1"), nil)

	state, err := f.worker.Process(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StateSent, state)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, f.sleeps.got)
}

func TestProcess_SkipsDisabledChannel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.users.Put(users.Profile{
		ID:          "42",
		Email:       "ann@example.com",
		Preferences: map[notification.Channel]bool{notification.ChannelEmail: false},
	})
	ctx := context.Background()
	d := f.enqueue(t, emailRequest("n1"), nil)

	state, err := f.worker.Process(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StateSkipped, state)
	assert.Empty(t, f.sender.Calls())

	rec, err := f.statuses.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, notification.StatusQueued, rec.Status)
	assert.Len(t, f.broker.Acked(), 1)
	assert.Empty(t, f.broker.Pending(broker.QueueDeadLetter))
}

func TestProcess_RejectsMalformed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	d := f.publishRaw(t, "bad", []byte("not json"), nil)

	state, err := f.worker.Process(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StateRejected, state)
	assert.Empty(t, f.sender.Calls())
	assert.Empty(t, f.broker.Acked())
	assert.Len(t, f.broker.Pending(broker.QueueDeadLetter), 1)
	assert.Empty(t, f.broker.Pending("email"))
}

func TestProcess_RequeuesWhenCircuitOpen(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	for range 5 {
		_ = f.breaker.Guard(ctx, func(context.Context) error { return errors.New("down") })
	}
	require.Equal(t, circuitbreaker.StateOpen, f.breaker.State())

	d := f.enqueue(t, emailRequest("n1"), nil)
	state, err := f.worker.Process(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StateRequeued, state)
	assert.Empty(t, f.sender.Calls())

	pending := f.broker.Pending("email")
	require.Len(t, pending, 1)
	assert.Equal(t, "n1", pending[0].ID)
	assert.Equal(t, d.Body(), pending[0].Body)
	assert.Equal(t, 1, broker.RedeliveryCount(pending[0].Headers))

	rec, err := f.statuses.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, notification.StatusQueued, rec.Status)
	assert.Empty(t, f.broker.Pending(broker.QueueDeadLetter))
}

func TestProcess_MaxRedeliveries(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, dispatch.WithMaxRedeliveries(2))
	ctx := context.Background()
	for range 5 {
		_ = f.breaker.Guard(ctx, func(context.Context) error { return errors.New("down") })
	}

	d := f.enqueue(t, emailRequest("n1"), map[string]any{broker.HeaderRedeliveryCount: int64(2)})
	state, err := f.worker.Process(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StateDeadLettered, state)

	dead := deadLetters(t, f.broker)
	require.Len(t, dead, 1)
	assert.Equal(t, deadletter.ReasonMaxRedeliveries, dead[0].FailureReason)
	assert.Empty(t, f.broker.Pending("email"))

	rec, err := f.statuses.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, notification.StatusFailed, rec.Status)
}

func TestProcess_RenderFailure(t *testing.T) {
	t.Parallel()

	catalog, err := templates.ParseCatalog([]byte(`
fallback: none
email:
  welcome:
    subject: Hi
    body_text: "{{ .name }}"
    variables: [coupon]
`))
	require.NoError(t, err)

	f := newFixture(t, catalog)
	ctx := context.Background()
	d := f.enqueue(t, emailRequest("n1"), nil)

	state, err := f.worker.Process(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StateDeadLettered, state)
	assert.Empty(t, f.sender.Calls())

	dead := deadLetters(t, f.broker)
	require.Len(t, dead, 1)
	assert.Equal(t, deadletter.ReasonRenderFailed, dead[0].FailureReason)

	rec, err := f.statuses.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, notification.StatusFailed, rec.Status)
	assert.Equal(t, 0, rec.RetryCount)
}

type unavailableRenderer struct{}

func (unavailableRenderer) Render(context.Context, notification.Channel, string, map[string]any) (templates.Content, error) {
	return templates.Content{}, templates.ErrUnavailable
}

func TestProcess_TemplateServiceUnavailableRequeues(t *testing.T) {
	t.Parallel()

	f := newFixture(t, unavailableRenderer{})
	d := f.enqueue(t, emailRequest("n1"), nil)

	state, err := f.worker.Process(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StateRequeued, state)
	assert.Len(t, f.broker.Pending("email"), 1)
}

func TestProcess_PermanentProviderRejection(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.sender.fail = func(int) error { return retry.Permanent(email.ErrRecipientRejected) }
	ctx := context.Background()
	d := f.enqueue(t, emailRequest("n1"), nil)

	state, err := f.worker.Process(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StateDeadLettered, state)
	assert.Len(t, f.sender.Calls(), 1)
	assert.Empty(t, f.sleeps.got)

	dead := deadLetters(t, f.broker)
	require.Len(t, dead, 1)
	assert.Equal(t, deadletter.ReasonRejected, dead[0].FailureReason)
	assert.Equal(t, circuitbreaker.StateClosed, f.breaker.State())
	assert.Equal(t, 0, f.breaker.Stats().FailureCount)
}

func TestProcess_UnknownUserUsesVariables(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	req := emailRequest("n1")
	req.UserID = "404"
	req.Variables["email"] = "fallback@example.com"
	d := f.enqueue(t, req, nil)

	state, err := f.worker.Process(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StateSent, state)
	calls := f.sender.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "404", calls[0].Profile.ID)
	assert.Equal(t, "fallback@example.com", calls[0].Request.Variables["email"])
}

func TestWorker_Run(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, id := range []string{"n1", "n2"} {
		req := emailRequest(id)
		require.NoError(t, f.statuses.Create(ctx, notification.NewStatusRecord(req, now)))
		body, err := req.Marshal()
		require.NoError(t, err)
		require.NoError(t, f.broker.Publish(ctx, broker.Message{ID: id, RoutingKey: "email", Body: body}))
	}

	done := make(chan error, 1)
	go func() { done <- f.worker.Run(ctx)() }()

	require.Eventually(t, func() bool { return len(f.broker.Acked()) == 2 }, 2*time.Second, 10*time.Millisecond)

	f.worker.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	for _, id := range []string{"n1", "n2"} {
		rec, err := f.statuses.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, notification.StatusSent, rec.Status)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := dispatch.New("sms", dispatch.Deps{})
	assert.ErrorIs(t, err, notification.ErrInvalidChannel)

	_, err = dispatch.New(notification.ChannelPush, dispatch.Deps{})
	assert.Error(t, err)
}
