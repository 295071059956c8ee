package handler

import (
	"log/slog"
	"net/http"
)

// HandlerFunc handles a request and returns the response to render.
type HandlerFunc func(r *http.Request) Response

// Response renders itself to an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// ErrorHandler handles errors raised while rendering a response.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// WrapOption configures Wrap.
type WrapOption func(*wrapConfig)

type wrapConfig struct {
	errorHandler ErrorHandler
	logger       *slog.Logger
}

// WithErrorHandler sets a custom error handler.
func WithErrorHandler(h ErrorHandler) WrapOption {
	return func(c *wrapConfig) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

// WithLogger sets the logger used by the default error handler.
func WithLogger(l *slog.Logger) WrapOption {
	return func(c *wrapConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Wrap converts a HandlerFunc to http.HandlerFunc.
func Wrap(h HandlerFunc, opts ...WrapOption) http.HandlerFunc {
	cfg := &wrapConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.errorHandler == nil {
		cfg.errorHandler = defaultErrorHandler(cfg.logger)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		response := h(r)
		if response == nil {
			cfg.errorHandler(w, r, ErrNilResponse)
			return
		}
		if err := response.Render(w, r); err != nil {
			cfg.errorHandler(w, r, err)
		}
	}
}

// defaultErrorHandler logs the failure and, when nothing has been written
// yet, answers with a JSON error envelope.
func defaultErrorHandler(log *slog.Logger) ErrorHandler {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		log.ErrorContext(r.Context(), "failed to render response",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		_ = JSONError(err).Render(w, r)
	}
}
