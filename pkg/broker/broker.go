package broker

import (
	"context"
	"maps"
)

// Message is an outgoing broker message.
type Message struct {
	// ID becomes the AMQP message-id. Admission uses the request id.
	ID         string
	RoutingKey string
	Body       []byte
	Headers    map[string]any
}

// Delivery is a consumed message awaiting exactly one settlement.
type Delivery interface {
	Body() []byte
	MessageID() string
	Headers() map[string]any

	// Ack removes the message from the queue.
	Ack() error
	// Requeue returns the message to its queue for another delivery.
	Requeue() error
	// Reject discards the message; channel queues route it to dead-letter.
	Reject() error
}

// Publisher publishes messages to the exchange.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Consumer yields deliveries from a single queue.
type Consumer interface {
	// Receive blocks until a delivery arrives, ctx is done or the stream closes.
	Receive(ctx context.Context) (Delivery, error)
	Close() error
}

// Broker publishes and consumes messages.
type Broker interface {
	Publisher
	Consume(ctx context.Context, queue string) (Consumer, error)
}

// RedeliveryCount reads HeaderRedeliveryCount, tolerating the integer widths
// AMQP tables decode into.
func RedeliveryCount(headers map[string]any) int {
	switch v := headers[HeaderRedeliveryCount].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	default:
		return 0
	}
}

// WithRedelivery returns a copy of headers with the redelivery counter incremented.
func WithRedelivery(headers map[string]any) map[string]any {
	out := make(map[string]any, len(headers)+1)
	maps.Copy(out, headers)
	out[HeaderRedeliveryCount] = int64(RedeliveryCount(headers) + 1)
	return out
}
