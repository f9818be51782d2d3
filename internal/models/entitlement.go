package models

import (
	"time"
)

// Day is a calendar-date identity ("2006-01-02") in the application
// timezone. The free-tier quota resets when the Day changes, so two
// timestamps on the same local date always map to the same Day regardless
// of clock time.
type Day string

// DayOf returns the Day for a timestamp in the given location.
func DayOf(t time.Time, loc *time.Location) Day {
	return Day(t.In(loc).Format("2006-01-02"))
}

// EntitlementRecord is the persisted usage and premium state for one
// profile. It is a singleton per profile and is read-modify-written as a
// whole document by the Redis backend.
type EntitlementRecord struct {
	ProfileID      string     `json:"profile_id" db:"profile_id"`
	UsageCount     int        `json:"usage_count" db:"usage_count"`
	LastReset      Day        `json:"last_reset" db:"last_reset"`
	IsPremium      bool       `json:"is_premium" db:"is_premium"`
	CustomerID     string     `json:"customer_id,omitempty" db:"customer_id"`
	SubscriptionID string     `json:"subscription_id,omitempty" db:"subscription_id"`
	ActivatedAt    *time.Time `json:"activated_at,omitempty" db:"activated_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// NewEntitlementRecord returns the default free-tier record for a profile.
func NewEntitlementRecord(profileID string, now time.Time, loc *time.Location) *EntitlementRecord {
	return &EntitlementRecord{
		ProfileID:  profileID,
		UsageCount: 0,
		LastReset:  DayOf(now, loc),
		IsPremium:  false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Premium states. A premium record with a customer id was granted through
// payment; one without was granted through a redemption code.
const (
	StateFree        = "free"
	StatePremiumCode = "premium_code"
	StatePremiumPaid = "premium_paid"
)

// State returns the entitlement state of the record.
func (r *EntitlementRecord) State() string {
	switch {
	case !r.IsPremium:
		return StateFree
	case r.CustomerID != "":
		return StatePremiumPaid
	default:
		return StatePremiumCode
	}
}

// Expired reports whether the record carries a lapsed premium grant.
// Records without an expiry are never considered expired here; the
// subscription liveness check handles those.
func (r *EntitlementRecord) Expired(now time.Time) bool {
	return r.IsPremium && r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// ClearPremium drops every premium-related field, returning the record to
// the free state. Usage count and reset day are untouched.
func (r *EntitlementRecord) ClearPremium() {
	r.IsPremium = false
	r.CustomerID = ""
	r.SubscriptionID = ""
	r.ActivatedAt = nil
	r.ExpiresAt = nil
}

// DaysLeft returns the whole days of premium remaining, rounded up.
// Returns -1 when premium has no tracked expiry.
func (r *EntitlementRecord) DaysLeft(now time.Time) int {
	if !r.IsPremium {
		return 0
	}
	if r.ExpiresAt == nil {
		return -1
	}
	left := r.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	days := int(left / (24 * time.Hour))
	if left%(24*time.Hour) > 0 {
		days++
	}
	return days
}
