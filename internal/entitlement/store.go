// Package entitlement implements the usage-entitlement state machine:
// loading and normalizing the per-profile record, the free-tier quota
// policy, and the mutators that grant, revoke and consume entitlement.
package entitlement

import (
	"context"
	"errors"

	"github.com/summari/backend/internal/models"
)

var (
	// ErrNotFound is returned when no record exists for a profile
	ErrNotFound = errors.New("entitlement record not found")
	// ErrCorrupt is returned when a stored record fails to deserialize
	ErrCorrupt = errors.New("entitlement record is corrupt")
)

// Store is the persistence boundary for entitlement records. Implementations
// live in internal/repository; tests inject an in-memory fake.
type Store interface {
	// Get returns the record for a profile, ErrNotFound if absent, or
	// ErrCorrupt if the stored data cannot be deserialized.
	Get(ctx context.Context, profileID string) (*models.EntitlementRecord, error)

	// Save persists the whole record, creating it if absent.
	Save(ctx context.Context, rec *models.EntitlementRecord) error

	// Delete removes the record entirely. Deleting a missing record is not
	// an error.
	Delete(ctx context.Context, profileID string) error

	// IncrementUsage adds one to the usage counter and returns the updated
	// record. Backends that can do this atomically should; the Redis
	// document backend falls back to read-modify-write.
	IncrementUsage(ctx context.Context, profileID string) (*models.EntitlementRecord, error)

	// FindByCustomerID returns the record linked to a payment-provider
	// customer, or ErrNotFound. Used by webhook reconciliation.
	FindByCustomerID(ctx context.Context, customerID string) (*models.EntitlementRecord, error)
}
