package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/summari/backend/internal/models"
)

// Tracker owns the entitlement lifecycle for profiles: normalized loads,
// quota checks and state transitions. All storage goes through the injected
// Store.
type Tracker struct {
	store          Store
	freeDailyLimit int
	loc            *time.Location

	// now is swappable in tests to cross day boundaries and expiries.
	now func() time.Time
}

// NewTracker creates a new tracker. The location defines which timezone's
// calendar date delimits the daily free quota.
func NewTracker(store Store, freeDailyLimit int, loc *time.Location) *Tracker {
	if freeDailyLimit <= 0 {
		freeDailyLimit = DefaultFreeDailyLimit
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{
		store:          store,
		freeDailyLimit: freeDailyLimit,
		loc:            loc,
		now:            time.Now,
	}
}

// Load returns the profile's record, creating defaults when absent and
// normalizing stale state. The expiry check runs before the daily-reset
// check: an expired premium must be cleared even when the day has not
// changed.
func (t *Tracker) Load(ctx context.Context, profileID string) (*models.EntitlementRecord, error) {
	now := t.now()

	rec, err := t.store.Get(ctx, profileID)
	switch {
	case errors.Is(err, ErrNotFound):
		rec = models.NewEntitlementRecord(profileID, now, t.loc)
		if err := t.store.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to create entitlement record: %w", err)
		}
		return rec, nil
	case errors.Is(err, ErrCorrupt):
		// Recoverable: discard and start over on the free tier.
		log.Printf("[entitlement] Corrupt record for profile %s, recreating defaults", profileID)
		rec = models.NewEntitlementRecord(profileID, now, t.loc)
		if err := t.store.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to recreate entitlement record: %w", err)
		}
		return rec, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load entitlement record: %w", err)
	}

	dirty := false

	if rec.Expired(now) {
		log.Printf("[entitlement] Premium expired for profile %s (state=%s)", profileID, rec.State())
		rec.ClearPremium()
		rec.UpdatedAt = now
		dirty = true
	}

	if today := models.DayOf(now, t.loc); rec.LastReset != today {
		rec.UsageCount = 0
		rec.LastReset = today
		rec.UpdatedAt = now
		dirty = true
	}

	if dirty {
		if err := t.store.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to persist normalized record: %w", err)
		}
	}

	return rec, nil
}

// CanConsume loads the record and applies the quota policy.
func (t *Tracker) CanConsume(ctx context.Context, profileID string) (Decision, *models.EntitlementRecord, error) {
	rec, err := t.Load(ctx, profileID)
	if err != nil {
		return Decision{}, nil, err
	}
	return Decide(rec, t.freeDailyLimit), rec, nil
}

// Consume records one successful use. Callers must have confirmed
// CanConsume first; the increment itself is unconditional.
func (t *Tracker) Consume(ctx context.Context, profileID string) (*models.EntitlementRecord, error) {
	// Normalize first so the increment lands on today's counter.
	if _, err := t.Load(ctx, profileID); err != nil {
		return nil, err
	}

	rec, err := t.store.IncrementUsage(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to increment usage: %w", err)
	}
	return rec, nil
}

// GrantPremium activates premium for the given number of days. A customer
// id marks the grant as payment-backed; an empty customer id is the
// code-granted path.
func (t *Tracker) GrantPremium(ctx context.Context, profileID string, days int, customerID, subscriptionID string) (*models.EntitlementRecord, error) {
	rec, err := t.Load(ctx, profileID)
	if err != nil {
		return nil, err
	}

	now := t.now()
	expiresAt := now.AddDate(0, 0, days)

	rec.IsPremium = true
	rec.ActivatedAt = &now
	rec.ExpiresAt = &expiresAt
	if customerID != "" {
		rec.CustomerID = customerID
	}
	if subscriptionID != "" {
		rec.SubscriptionID = subscriptionID
	}
	rec.UpdatedAt = now

	if err := t.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist premium grant: %w", err)
	}

	log.Printf("[entitlement] Premium granted for profile %s (days=%d, state=%s)", profileID, days, rec.State())
	return rec, nil
}

// RevokePremium returns the record to the free state. The usage counter and
// reset day are untouched.
func (t *Tracker) RevokePremium(ctx context.Context, profileID string) (*models.EntitlementRecord, error) {
	rec, err := t.Load(ctx, profileID)
	if err != nil {
		return nil, err
	}

	rec.ClearPremium()
	rec.UpdatedAt = t.now()

	if err := t.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist premium revocation: %w", err)
	}

	log.Printf("[entitlement] Premium revoked for profile %s", profileID)
	return rec, nil
}

// ResetForTesting deletes the record entirely; the next Load recreates
// free-tier defaults.
func (t *Tracker) ResetForTesting(ctx context.Context, profileID string) error {
	if err := t.store.Delete(ctx, profileID); err != nil {
		return fmt.Errorf("failed to delete entitlement record: %w", err)
	}
	return nil
}

// PremiumStatus describes the current premium state for display.
type PremiumStatus struct {
	IsPremium bool       `json:"is_premium"`
	State     string     `json:"state"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	DaysLeft  int        `json:"days_left,omitempty"`
}

// Status returns the premium status for a profile.
func (t *Tracker) Status(ctx context.Context, profileID string) (*PremiumStatus, error) {
	rec, err := t.Load(ctx, profileID)
	if err != nil {
		return nil, err
	}

	return &PremiumStatus{
		IsPremium: rec.IsPremium,
		State:     rec.State(),
		ExpiresAt: rec.ExpiresAt,
		DaysLeft:  rec.DaysLeft(t.now()),
	}, nil
}

// FreeDailyLimit returns the configured free-tier daily limit.
func (t *Tracker) FreeDailyLimit() int {
	return t.freeDailyLimit
}

// FindByCustomerID resolves the record linked to a payment-provider
// customer. Used by webhook reconciliation.
func (t *Tracker) FindByCustomerID(ctx context.Context, customerID string) (*models.EntitlementRecord, error) {
	return t.store.FindByCustomerID(ctx, customerID)
}
