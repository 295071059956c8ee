package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Channel is the delivery channel and doubles as the broker routing key.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// Channels lists every routable channel in declaration order.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelPush}
}

// Valid reports whether the channel is one of the supported values.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelPush:
		return true
	default:
		return false
	}
}

func (c Channel) String() string {
	return string(c)
}

// ParseChannel normalizes and validates a channel name.
func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidChannel, s)
	}
	return c, nil
}

// Priority orders requests for providers that support it. 1 is lowest, 10 highest.
type Priority int

const (
	PriorityLow     Priority = 1
	PriorityNormal  Priority = 5
	PriorityHigh    Priority = 10
	PriorityDefault Priority = PriorityNormal
)

// Valid checks if the priority is within range.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityHigh
}

// Request is the immutable admission input. RequestID is the idempotency key.
type Request struct {
	RequestID     string         `json:"request_id"`
	UserID        string         `json:"user_id"`
	Channel       Channel        `json:"channel"`
	TemplateCode  string         `json:"template_code"`
	Variables     map[string]any `json:"variables,omitempty"`
	Priority      Priority       `json:"priority,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Validate checks required fields. Channel validity is checked separately by
// the admission controller so that it can be reported as invalid_channel.
func (r Request) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RequestID) == "" {
		errs = append(errs, errors.New("request_id is required"))
	}
	if strings.TrimSpace(r.UserID) == "" {
		errs = append(errs, errors.New("user_id is required"))
	}
	if strings.TrimSpace(r.TemplateCode) == "" {
		errs = append(errs, errors.New("template_code is required"))
	}
	if r.Priority != 0 && !r.Priority.Valid() {
		errs = append(errs, fmt.Errorf("priority must be between %d and %d", PriorityLow, PriorityHigh))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidRequest}, errs...)...)
	}
	return nil
}

// Marshal encodes the request as a queue payload.
func (r Request) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal decodes a queue payload. Any decoding problem, including a
// payload without an identifier or with an unknown channel, is reported as
// ErrMalformedPayload so the worker never retries it.
func Unmarshal(data []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return Request{}, errors.Join(ErrMalformedPayload, err)
	}
	if r.RequestID == "" {
		return Request{}, fmt.Errorf("%w: missing request_id", ErrMalformedPayload)
	}
	if !r.Channel.Valid() {
		return Request{}, fmt.Errorf("%w: unknown channel %q", ErrMalformedPayload, r.Channel)
	}
	return r, nil
}

// Status is the delivery status of a notification.
type Status string

const (
	StatusPending    Status = "pending"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	StatusRetry      Status = "retry"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// StatusRecord is the mutable per-notification status, keyed by request id.
type StatusRecord struct {
	ID           string     `json:"notification_id"`
	Channel      Channel    `json:"channel,omitempty"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	RetryCount   int        `json:"retry_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
}

// NewStatusRecord returns a queued record for a freshly admitted request.
func NewStatusRecord(req Request, now time.Time) StatusRecord {
	return StatusRecord{
		ID:        req.RequestID,
		Channel:   req.Channel,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkSent transitions the record to sent.
func (r *StatusRecord) MarkSent(now time.Time) {
	r.Status = StatusSent
	r.UpdatedAt = now
	r.ErrorMessage = ""
	delivered := now
	r.DeliveredAt = &delivered
}

// MarkFailed transitions the record to failed with the error text.
func (r *StatusRecord) MarkFailed(now time.Time, retries int, reason string) {
	r.Status = StatusFailed
	r.UpdatedAt = now
	r.RetryCount = retries
	r.ErrorMessage = reason
}

// DeadLetterRecord is the terminal, write-once payload deposited in the dead-letter queue.
type DeadLetterRecord struct {
	MessageID     string          `json:"message_id"`
	Channel       Channel         `json:"channel,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	FailureReason string          `json:"failure_reason"`
	LastError     string          `json:"last_error,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	FailedAt      time.Time       `json:"failed_at"`
}
