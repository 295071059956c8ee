package broker

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
)

// MemoryBroker implements Broker in process memory. Queues are bound by
// name, a rejected delivery from a channel queue moves to QueueDeadLetter.
type MemoryBroker struct {
	mu         sync.Mutex
	queues     map[string]*memQueue
	publishErr error
	acked      []Message
}

// NewMemoryBroker creates a broker with the dead-letter queue and the given
// channel queues declared.
func NewMemoryBroker(queues ...string) *MemoryBroker {
	b := &MemoryBroker{queues: make(map[string]*memQueue)}
	b.queues[QueueDeadLetter] = newMemQueue()
	for _, q := range queues {
		b.queues[q] = newMemQueue()
	}
	return b
}

// SetPublishError makes every subsequent Publish fail with err. A nil err
// restores normal publishing.
func (b *MemoryBroker) SetPublishError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishErr = err
}

func (b *MemoryBroker) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	err := b.publishErr
	q, ok := b.queues[msg.RoutingKey]
	b.mu.Unlock()

	if err != nil {
		return err
	}
	if !ok {
		return ErrUnroutable
	}

	msg.Headers = maps.Clone(msg.Headers)
	msg.Body = append([]byte(nil), msg.Body...)
	q.push(msg)
	return nil
}

func (b *MemoryBroker) Consume(ctx context.Context, queue string) (Consumer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[queue]
	if !ok {
		return nil, ErrUnroutable
	}
	return &memConsumer{broker: b, name: queue, queue: q, done: make(chan struct{})}, nil
}

// Pending returns a snapshot of the messages waiting in queue.
func (b *MemoryBroker) Pending(queue string) []Message {
	b.mu.Lock()
	q, ok := b.queues[queue]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	return q.snapshot()
}

// Acked returns the messages acknowledged so far.
func (b *MemoryBroker) Acked() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.acked...)
}

func (b *MemoryBroker) ack(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acked = append(b.acked, msg)
}

func (b *MemoryBroker) deadLetter(msg Message) {
	b.mu.Lock()
	q := b.queues[QueueDeadLetter]
	b.mu.Unlock()
	msg.RoutingKey = QueueDeadLetter
	q.push(msg)
}

type memQueue struct {
	mu     sync.Mutex
	items  []Message
	notify chan struct{}
}

func newMemQueue() *memQueue {
	return &memQueue{notify: make(chan struct{}, 1)}
}

func (q *memQueue) push(msg Message) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *memQueue) pop(ctx context.Context, done <-chan struct{}) (Message, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				select {
				case q.notify <- struct{}{}:
				default:
				}
			}
			return msg, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-done:
			return Message{}, ErrConsumerClosed
		case <-q.notify:
		}
	}
}

func (q *memQueue) snapshot() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Message(nil), q.items...)
}

type memConsumer struct {
	broker *MemoryBroker
	name   string
	queue  *memQueue
	once   sync.Once
	done   chan struct{}
}

func (c *memConsumer) Receive(ctx context.Context) (Delivery, error) {
	msg, err := c.queue.pop(ctx, c.done)
	if err != nil {
		return nil, err
	}
	return &memDelivery{consumer: c, msg: msg}, nil
}

func (c *memConsumer) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

type memDelivery struct {
	consumer *memConsumer
	msg      Message
	settled  atomic.Bool
}

func (d *memDelivery) Body() []byte            { return d.msg.Body }
func (d *memDelivery) MessageID() string       { return d.msg.ID }
func (d *memDelivery) Headers() map[string]any { return d.msg.Headers }

func (d *memDelivery) Ack() error {
	if !d.settled.CompareAndSwap(false, true) {
		return ErrAlreadySettled
	}
	d.consumer.broker.ack(d.msg)
	return nil
}

func (d *memDelivery) Requeue() error {
	if !d.settled.CompareAndSwap(false, true) {
		return ErrAlreadySettled
	}
	d.consumer.queue.push(d.msg)
	return nil
}

func (d *memDelivery) Reject() error {
	if !d.settled.CompareAndSwap(false, true) {
		return ErrAlreadySettled
	}
	if d.consumer.name != QueueDeadLetter {
		d.consumer.broker.deadLetter(d.msg)
	}
	return nil
}
