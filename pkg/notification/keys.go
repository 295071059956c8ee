package notification

import "time"

const (
	DefaultStatusTTL      = 24 * time.Hour
	DefaultIdempotencyTTL = time.Hour
)

// StatusKey is the storage key of a status record.
func StatusKey(id string) string {
	return "notification:status:" + id
}

// ProcessedKey is the storage key of an idempotency marker.
func ProcessedKey(requestID string) string {
	return "notification:processed:" + requestID
}

// RateLimitKey is the storage key of a per-user rate-limit counter.
func RateLimitKey(userID string) string {
	return "rate_limit:user:" + userID
}
