// Package repository persists character sheet fields.
package repository

import "context"

// Store provides read/write access to persisted sheet fields, addressed by
// resource (player) ID and field key (see model.FieldKey).
type Store interface {
	// Write normalizes and stores value, returning the stored value.
	// Invalid keys return ErrInvalidField; unconvertible values ErrInvalidValue.
	Write(ctx context.Context, resourceID, fieldKey string, value any) (any, error)

	// Read returns the stored value or ErrNotFound.
	Read(ctx context.Context, resourceID, fieldKey string) (any, error)

	// Snapshot returns every stored field of a resource keyed by field key.
	Snapshot(ctx context.Context, resourceID string) (map[string]any, error)

	// Count returns the number of stored field values.
	Count(ctx context.Context) (int, error)

	Close() error
}
