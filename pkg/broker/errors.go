package broker

import "errors"

var (
	// ErrConsumerClosed is returned by Receive once the delivery stream ends.
	ErrConsumerClosed = errors.New("broker: consumer closed")

	// ErrPublishNacked is returned when the broker refuses a published message.
	ErrPublishNacked = errors.New("broker: publish not confirmed")

	// ErrUnroutable is returned when no queue is bound to the routing key.
	ErrUnroutable = errors.New("broker: no queue bound to routing key")

	// ErrAlreadySettled is returned when a delivery is settled twice.
	ErrAlreadySettled = errors.New("broker: delivery already settled")

	// ErrEmptyURL is returned when the AMQP URL is not configured.
	ErrEmptyURL = errors.New("broker: empty connection url")

	// ErrNotReady is returned when the broker connection cannot be established.
	ErrNotReady = errors.New("broker: connection not ready")
)
