package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// Errors groups multiple non-nil errors under the key "errors".
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.String(strconv.Itoa(i), err.Error()))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

func NotificationID(id string) slog.Attr {
	return slog.String("notification_id", id)
}

func CorrelationID(id string) slog.Attr {
	return slog.String("correlation_id", id)
}

func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

func Channel(ch string) slog.Attr {
	return slog.String("channel", ch)
}

func Queue(name string) slog.Attr {
	return slog.String("queue", name)
}

// Attempt records a 1-based attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

func Outcome(name string) slog.Attr {
	return slog.String("outcome", name)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
