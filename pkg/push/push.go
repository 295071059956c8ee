package push

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Config holds the OneSignal settings.
type Config struct {
	AppID      string        `env:"ONESIGNAL_APP_ID"`
	RESTAPIKey string        `env:"ONESIGNAL_REST_API_KEY"`
	APIURL     string        `env:"ONESIGNAL_API_URL" envDefault:"https://onesignal.com/api/v1"`
	Timeout    time.Duration `env:"ONESIGNAL_TIMEOUT" envDefault:"30s"`
}

// Configured reports whether OneSignal credentials are present.
func (c Config) Configured() bool {
	return c.AppID != "" && c.RESTAPIKey != ""
}

// Message is a rendered push notification.
type Message struct {
	PlayerIDs []string
	Title     string
	Body      string
	Data      map[string]any
	URL       string
	// Priority is OneSignal's 1..10 scale; zero leaves the provider default.
	Priority int
}

// Validate checks that the message can be delivered.
func (m Message) Validate() error {
	var errs []error
	if len(m.PlayerIDs) == 0 {
		errs = append(errs, errors.New("at least one player id is required"))
	}
	if m.Body == "" {
		errs = append(errs, errors.New("message body is required"))
	}
	if m.Priority < 0 || m.Priority > 10 {
		errs = append(errs, errors.New("priority must be between 1 and 10"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidMessage}, errs...)...)
	}
	return nil
}

// Result is the provider acknowledgement.
type Result struct {
	ID         string `json:"id"`
	Recipients int    `json:"recipients"`
}

// Sender sends a push notification.
type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
}

// LogSender logs messages instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) (Result, error) {
	if err := msg.Validate(); err != nil {
		return Result{}, err
	}
	s.logger.InfoContext(ctx, "push notification (not delivered)",
		slog.Int("devices", len(msg.PlayerIDs)),
		slog.String("title", msg.Title),
		slog.String("body", msg.Body))
	return Result{Recipients: len(msg.PlayerIDs)}, nil
}
