package broker

import "time"

const (
	DefaultExchange = "notifications.direct"
	DefaultPrefetch = 1

	// QueueDeadLetter is both the dead-letter queue name and its routing key.
	QueueDeadLetter = "dead-letter"

	// HeaderRedeliveryCount counts how many times a worker republished a
	// message after a transient failure.
	HeaderRedeliveryCount = "x-redelivery-count"

	// HeaderCorrelationID carries the request correlation id.
	HeaderCorrelationID = "x-correlation-id"

	contentTypeJSON = "application/json"
)

// Config holds the AMQP connection settings.
type Config struct {
	URL            string        `env:"AMQP_URL,required"`
	Exchange       string        `env:"AMQP_EXCHANGE" envDefault:"notifications.direct"`
	Prefetch       int           `env:"AMQP_PREFETCH" envDefault:"1"`
	PublishTimeout time.Duration `env:"AMQP_PUBLISH_TIMEOUT" envDefault:"5s"`
	RetryAttempts  int           `env:"AMQP_CONNECT_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"AMQP_CONNECT_RETRY_INTERVAL" envDefault:"5s"`
}
