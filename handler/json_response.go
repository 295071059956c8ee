package handler

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Envelope is the standard JSON response body.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
}

type jsonResponse struct {
	status  int
	headers http.Header
	body    Envelope
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	for k, vv := range j.headers {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures a JSON response.
type JSONOption func(*jsonResponse)

// WithStatus sets the HTTP status code.
func WithStatus(status int) JSONOption {
	return func(r *jsonResponse) {
		r.status = status
	}
}

// WithMessage sets the envelope message.
func WithMessage(msg string) JSONOption {
	return func(r *jsonResponse) {
		r.body.Message = msg
	}
}

// WithHeader adds a response header.
func WithHeader(key, value string) JSONOption {
	return func(r *jsonResponse) {
		if r.headers == nil {
			r.headers = make(http.Header)
		}
		r.headers.Add(key, value)
	}
}

// JSON creates a successful envelope around v. The default status is 200
// and the default message "Success".
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{
		status: http.StatusOK,
		body:   Envelope{Success: true, Data: v, Message: "Success"},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError creates an error envelope. HTTPError values (anywhere in the
// chain) set the status and error key; other errors produce 500.
func JSONError(err error, opts ...JSONOption) Response {
	r := &jsonResponse{
		status: http.StatusInternalServerError,
		body: Envelope{
			Error:   ErrInternalServerError.Key,
			Message: http.StatusText(http.StatusInternalServerError),
		},
	}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		r.status = httpErr.Code
		r.body.Error = httpErr.Key
		r.body.Message = http.StatusText(httpErr.Code)
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}
