package admission

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/handler"
	"github.com/dmitrymomot/courier/pkg/notification"
)

const maxBodyBytes = 64 << 10

var (
	errRateLimited    = handler.NewHTTPError(http.StatusTooManyRequests, ReasonRateLimitExceeded)
	errInvalidChannel = handler.NewHTTPError(http.StatusBadRequest, ReasonInvalidChannel)
	errInvalidRequest = handler.NewHTTPError(http.StatusBadRequest, ReasonInvalidRequest)
	errUnavailable    = handler.NewHTTPError(http.StatusServiceUnavailable, ReasonServiceUnavailable)
	errStatusNotFound = handler.NewHTTPError(http.StatusNotFound, "not_found")
)

// Handler exposes the controller over HTTP.
type Handler struct {
	ctrl   *Controller
	logger *slog.Logger
}

// NewHandler creates the HTTP surface for ctrl.
func NewHandler(ctrl *Controller, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{ctrl: ctrl, logger: log}
}

// Routes mounts the notification endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/v1/notifications", func(r chi.Router) {
		r.Post("/", handler.Wrap(h.create, handler.WithLogger(h.logger)))
		r.Get("/{id}/status", handler.Wrap(h.status, handler.WithLogger(h.logger)))
	})
}

// flexibleID accepts both string and numeric identifiers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

type createRequest struct {
	RequestID    string         `json:"request_id"`
	UserID       flexibleID     `json:"user_id"`
	Channel      string         `json:"channel"`
	TemplateCode string         `json:"template_code"`
	TemplateID   string         `json:"template_id"`
	Variables    map[string]any `json:"variables"`
	Priority     int            `json:"priority"`
}

func (c createRequest) toRequest() notification.Request {
	code := c.TemplateCode
	if code == "" {
		code = c.TemplateID
	}
	id := strings.TrimSpace(c.RequestID)
	if id == "" {
		id = uuid.NewString()
	}
	return notification.Request{
		RequestID:    id,
		UserID:       strings.TrimSpace(string(c.UserID)),
		Channel:      notification.Channel(strings.ToLower(strings.TrimSpace(c.Channel))),
		TemplateCode: code,
		Variables:    c.Variables,
		Priority:     notification.Priority(c.Priority),
	}
}

func (h *Handler) create(r *http.Request) handler.Response {
	var body createRequest
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		return handler.JSONError(errInvalidRequest, handler.WithMessage("Invalid JSON body"))
	}

	res, err := h.ctrl.Admit(r.Context(), body.toRequest())
	opts := rateLimitHeaders(res)

	switch {
	case err == nil && res.Outcome == OutcomeAlreadyProcessed:
		return handler.JSON(res, append(opts, handler.WithMessage("Notification already processed"))...)
	case err == nil:
		return handler.JSON(res, append(opts,
			handler.WithStatus(http.StatusAccepted),
			handler.WithMessage("Notification queued"))...)
	case errors.Is(err, ErrRateLimitExceeded):
		if res.RateLimit != nil {
			secs := int(time.Until(res.RateLimit.ResetAt).Round(time.Second).Seconds())
			opts = append(opts, handler.WithHeader("Retry-After", strconv.Itoa(max(secs, 1))))
		}
		return handler.JSONError(errRateLimited, append(opts, handler.WithMessage("Rate limit exceeded"))...)
	case errors.Is(err, notification.ErrInvalidChannel):
		return handler.JSONError(errInvalidChannel, handler.WithMessage("Channel must be one of: email, push"))
	case errors.Is(err, notification.ErrInvalidRequest):
		return handler.JSONError(errInvalidRequest, handler.WithMessage(err.Error()))
	case errors.Is(err, ErrServiceUnavailable), errors.Is(err, ErrPublishFailed):
		return handler.JSONError(errUnavailable, handler.WithMessage("Service temporarily unavailable"))
	default:
		return handler.JSONError(err)
	}
}

func (h *Handler) status(r *http.Request) handler.Response {
	rec, err := h.ctrl.Status(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, notification.ErrStatusNotFound) {
		return handler.JSONError(errStatusNotFound, handler.WithMessage("Notification not found"))
	}
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(rec)
}

func rateLimitHeaders(res Result) []handler.JSONOption {
	if res.RateLimit == nil {
		return nil
	}
	return []handler.JSONOption{
		handler.WithHeader("X-RateLimit-Limit", strconv.Itoa(res.RateLimit.Limit)),
		handler.WithHeader("X-RateLimit-Remaining", strconv.Itoa(res.RateLimit.Remaining)),
		handler.WithHeader("X-RateLimit-Reset", strconv.FormatInt(res.RateLimit.ResetAt.Unix(), 10)),
	}
}
