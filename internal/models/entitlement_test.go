package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func helsinki(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Helsinki")
	require.NoError(t, err)
	return loc
}

func TestDayOfUsesLocation(t *testing.T) {
	loc := helsinki(t)

	// 22:30 UTC in summer is 01:30 the next day in Helsinki (UTC+3).
	ts := time.Date(2026, 6, 15, 22, 30, 0, 0, time.UTC)

	assert.Equal(t, Day("2026-06-15"), DayOf(ts, time.UTC))
	assert.Equal(t, Day("2026-06-16"), DayOf(ts, loc))
}

func TestDayOfSameLocalDate(t *testing.T) {
	loc := helsinki(t)

	morning := time.Date(2026, 6, 15, 0, 1, 0, 0, loc)
	night := time.Date(2026, 6, 15, 23, 59, 0, 0, loc)

	assert.Equal(t, DayOf(morning, loc), DayOf(night, loc))
}

func TestState(t *testing.T) {
	rec := &EntitlementRecord{ProfileID: "p1"}
	assert.Equal(t, StateFree, rec.State())

	rec.IsPremium = true
	assert.Equal(t, StatePremiumCode, rec.State())

	rec.CustomerID = "cus_123"
	assert.Equal(t, StatePremiumPaid, rec.State())
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	free := &EntitlementRecord{ProfileID: "p1", ExpiresAt: &past}
	assert.False(t, free.Expired(now), "free records never expire")

	active := &EntitlementRecord{ProfileID: "p1", IsPremium: true, ExpiresAt: &future}
	assert.False(t, active.Expired(now))

	lapsed := &EntitlementRecord{ProfileID: "p1", IsPremium: true, ExpiresAt: &past}
	assert.True(t, lapsed.Expired(now))

	open := &EntitlementRecord{ProfileID: "p1", IsPremium: true}
	assert.False(t, open.Expired(now), "no tracked expiry means never expired here")
}

func TestClearPremiumKeepsUsage(t *testing.T) {
	now := time.Now()
	rec := &EntitlementRecord{
		ProfileID:      "p1",
		UsageCount:     2,
		LastReset:      Day("2026-03-10"),
		IsPremium:      true,
		CustomerID:     "cus_123",
		SubscriptionID: "sub_456",
		ActivatedAt:    &now,
		ExpiresAt:      &now,
	}

	rec.ClearPremium()

	assert.False(t, rec.IsPremium)
	assert.Empty(t, rec.CustomerID)
	assert.Empty(t, rec.SubscriptionID)
	assert.Nil(t, rec.ActivatedAt)
	assert.Nil(t, rec.ExpiresAt)
	assert.Equal(t, 2, rec.UsageCount)
	assert.Equal(t, Day("2026-03-10"), rec.LastReset)
}

func TestDaysLeft(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	free := &EntitlementRecord{ProfileID: "p1"}
	assert.Equal(t, 0, free.DaysLeft(now))

	open := &EntitlementRecord{ProfileID: "p1", IsPremium: true}
	assert.Equal(t, -1, open.DaysLeft(now))

	// Partial days round up.
	in36h := now.Add(36 * time.Hour)
	rec := &EntitlementRecord{ProfileID: "p1", IsPremium: true, ExpiresAt: &in36h}
	assert.Equal(t, 2, rec.DaysLeft(now))

	exact := now.Add(48 * time.Hour)
	rec.ExpiresAt = &exact
	assert.Equal(t, 2, rec.DaysLeft(now))

	past := now.Add(-time.Hour)
	rec.ExpiresAt = &past
	assert.Equal(t, 0, rec.DaysLeft(now))
}
