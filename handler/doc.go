// Package handler adapts response-returning functions to net/http.
//
// A HandlerFunc receives the request and returns a Response; Wrap renders
// the response and routes render failures to an error handler. JSON and
// JSONError write the envelope used by every endpoint:
//
//	{"success": true, "data": {...}, "error": null, "message": "..."}
//
// Errors that carry an HTTP status implement HTTPError; JSONError maps them
// to their status and error key, and anything else to 500.
//
//	r.Post("/api/v1/notifications", handler.Wrap(func(r *http.Request) handler.Response {
//		return handler.JSON(result, handler.WithStatus(http.StatusAccepted))
//	}))
package handler
