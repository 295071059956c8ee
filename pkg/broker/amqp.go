package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Client is an AMQP broker connection with a confirm-mode publishing channel.
type Client struct {
	conn     *amqp.Connection
	pubMu    sync.Mutex
	pubCh    *amqp.Channel
	exchange string
	prefetch int
	timeout  time.Duration
	queues   []string
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithQueues sets the channel queues declared by DeclareTopology.
func WithQueues(queues ...string) Option {
	return func(c *Client) {
		c.queues = queues
	}
}

// Dial connects to the broker, retrying per cfg, and opens a confirm-mode
// publishing channel.
func Dial(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrEmptyURL
	}

	c := &Client{
		exchange: cfg.Exchange,
		prefetch: cfg.Prefetch,
		timeout:  cfg.PublishTimeout,
		logger:   slog.Default(),
	}
	if c.exchange == "" {
		c.exchange = DefaultExchange
	}
	if c.prefetch <= 0 {
		c.prefetch = DefaultPrefetch
	}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}

	var (
		conn    *amqp.Connection
		lastErr error
	)
	attempts := max(cfg.RetryAttempts, 1)
	for attempt := range attempts {
		conn, lastErr = amqp.Dial(cfg.URL)
		if lastErr == nil {
			break
		}
		c.logger.WarnContext(ctx, "amqp connection attempt failed",
			slog.Int("attempt", attempt+1),
			slog.String("error", lastErr.Error()))

		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	if lastErr != nil {
		return nil, errors.Join(ErrNotReady, lastErr)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open publishing channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	c.conn = conn
	c.pubCh = ch
	return c, nil
}

// DeclareTopology declares the exchange, the dead-letter queue and every
// configured channel queue. It is idempotent.
func (c *Client) DeclareTopology() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open topology channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(c.exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", c.exchange, err)
	}

	if err := c.declareQueue(ch, QueueDeadLetter, nil); err != nil {
		return err
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    c.exchange,
		"x-dead-letter-routing-key": QueueDeadLetter,
	}
	for _, q := range c.queues {
		if err := c.declareQueue(ch, q, args); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) declareQueue(ch *amqp.Channel, name string, args amqp.Table) error {
	if _, err := ch.QueueDeclare(name, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	if err := ch.QueueBind(name, name, c.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", name, err)
	}
	return nil
}

// Publish sends a persistent JSON message and waits for the broker confirm.
func (c *Client) Publish(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	confirm, err := c.pubCh.PublishWithDeferredConfirmWithContext(ctx,
		c.exchange,
		msg.RoutingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  contentTypeJSON,
			MessageId:    msg.ID,
			Timestamp:    time.Now().UTC(),
			Headers:      amqp.Table(msg.Headers),
			Body:         msg.Body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message %s: %w", msg.ID, err)
	}

	ok, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to confirm message %s: %w", msg.ID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrPublishNacked, msg.ID)
	}
	return nil
}

// Consume opens a dedicated channel with the configured prefetch and starts
// a manual-ack consumer on queue.
func (c *Client) Consume(ctx context.Context, queue string) (Consumer, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to consume queue %s: %w", queue, err)
	}

	c.logger.InfoContext(ctx, "amqp consumer started",
		slog.String("queue", queue),
		slog.Int("prefetch", c.prefetch))

	return &amqpConsumer{ch: ch, deliveries: deliveries}, nil
}

// Healthcheck reports whether the connection is open.
func (c *Client) Healthcheck(ctx context.Context) error {
	if c.conn == nil || c.conn.IsClosed() {
		return ErrNotReady
	}
	return nil
}

// Close closes the publishing channel and the connection.
func (c *Client) Close() error {
	var errs []error
	if c.pubCh != nil {
		errs = append(errs, c.pubCh.Close())
	}
	if c.conn != nil && !c.conn.IsClosed() {
		errs = append(errs, c.conn.Close())
	}
	return errors.Join(errs...)
}

type amqpConsumer struct {
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
}

func (c *amqpConsumer) Receive(ctx context.Context) (Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case d, ok := <-c.deliveries:
		if !ok {
			return nil, ErrConsumerClosed
		}
		return &amqpDelivery{d: d}, nil
	}
}

func (c *amqpConsumer) Close() error {
	return c.ch.Close()
}

type amqpDelivery struct {
	d amqp.Delivery
}

func (d *amqpDelivery) Body() []byte            { return d.d.Body }
func (d *amqpDelivery) MessageID() string       { return d.d.MessageId }
func (d *amqpDelivery) Headers() map[string]any { return d.d.Headers }
func (d *amqpDelivery) Ack() error              { return d.d.Ack(false) }
func (d *amqpDelivery) Requeue() error          { return d.d.Nack(false, true) }
func (d *amqpDelivery) Reject() error           { return d.d.Reject(false) }
