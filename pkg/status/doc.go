// Package status stores per-notification status records.
//
// Records are created by the admission controller with a TTL (24h by default)
// and later overwritten by channel workers. Updates keep the TTL that was set
// at creation, so a record expires 24 hours after admission whatever its
// outcome. Records are stored as JSON under notification.StatusKey(id).
package status
