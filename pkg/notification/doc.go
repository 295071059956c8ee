// Package notification defines the data model shared by every stage of the
// delivery pipeline: the immutable admission request, the mutable status
// record, the dead-letter record and the storage keys they live under.
//
// The package has no dependencies on storage or transport. Stores, the broker
// and the workers all exchange these types, so a request serialized by the
// admission controller is decoded by a channel worker without any mapping.
//
// # Request lifecycle
//
//	admission  -> StatusQueued
//	worker     -> StatusSent | StatusFailed
//
// Status records expire 24 hours after creation regardless of outcome; see
// DefaultStatusTTL. Idempotency markers expire after DefaultIdempotencyTTL.
package notification
