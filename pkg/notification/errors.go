package notification

import "errors"

var (
	// ErrInvalidChannel is returned when a request names a channel the pipeline does not route.
	ErrInvalidChannel = errors.New("invalid_channel")

	// ErrInvalidRequest is returned when required request fields are missing or malformed.
	ErrInvalidRequest = errors.New("invalid_request")

	// ErrMalformedPayload is returned when a queue payload cannot be decoded into a Request.
	ErrMalformedPayload = errors.New("malformed notification payload")

	// ErrStatusNotFound is returned when no status record exists for an identifier.
	ErrStatusNotFound = errors.New("notification status not found")
)
