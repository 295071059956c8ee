// Package broker is the durable message transport between the admission
// gateway and channel workers.
//
// Client speaks AMQP 0-9-1 through github.com/rabbitmq/amqp091-go. It declares
// one durable direct exchange with a durable queue per channel plus a
// dead-letter queue. Channel queues carry x-dead-letter-exchange arguments,
// so a rejected delivery lands in the dead-letter queue without an explicit
// publish. Messages are published persistent with publisher confirms.
//
// MemoryBroker implements the same Broker interface in process memory and is
// used by tests and local runs.
//
// Every consumer runs with prefetch 1 by default: a worker holds at most one
// unacknowledged delivery and settles it exactly once with Ack, Requeue or
// Reject.
package broker
