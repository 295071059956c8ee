package status

import (
	"context"

	"github.com/dmitrymomot/courier/pkg/notification"
)

// Store persists status records.
type Store interface {
	// Create writes a new record with the full TTL, replacing any previous one.
	Create(ctx context.Context, rec notification.StatusRecord) error

	// Get returns the record or notification.ErrStatusNotFound.
	Get(ctx context.Context, id string) (notification.StatusRecord, error)

	// Update overwrites an existing record keeping its remaining TTL. A
	// missing record is recreated with the full TTL.
	Update(ctx context.Context, rec notification.StatusRecord) error
}
