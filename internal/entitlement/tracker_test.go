package entitlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/summari/backend/internal/models"
)

// memStore is an in-memory Store for tracker tests.
type memStore struct {
	records map[string]*models.EntitlementRecord
	getErr  error
	saves   int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*models.EntitlementRecord)}
}

func (s *memStore) Get(_ context.Context, profileID string) (*models.EntitlementRecord, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.records[profileID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (s *memStore) Save(_ context.Context, rec *models.EntitlementRecord) error {
	clone := *rec
	s.records[rec.ProfileID] = &clone
	s.saves++
	return nil
}

func (s *memStore) Delete(_ context.Context, profileID string) error {
	delete(s.records, profileID)
	return nil
}

func (s *memStore) IncrementUsage(_ context.Context, profileID string) (*models.EntitlementRecord, error) {
	rec, ok := s.records[profileID]
	if !ok {
		return nil, ErrNotFound
	}
	rec.UsageCount++
	clone := *rec
	return &clone, nil
}

func (s *memStore) FindByCustomerID(_ context.Context, customerID string) (*models.EntitlementRecord, error) {
	for _, rec := range s.records {
		if rec.CustomerID == customerID {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

var helsinki = mustLocation("Europe/Helsinki")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func newTestTracker(store Store, at time.Time) *Tracker {
	tr := NewTracker(store, 3, helsinki)
	tr.now = func() time.Time { return at }
	return tr
}

func TestLoadCreatesDefaults(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, helsinki)
	tr := newTestTracker(store, now)

	rec, err := tr.Load(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "p1", rec.ProfileID)
	assert.Equal(t, 0, rec.UsageCount)
	assert.Equal(t, models.Day("2026-03-10"), rec.LastReset)
	assert.False(t, rec.IsPremium)
	assert.Equal(t, models.StateFree, rec.State())

	// Defaults must be persisted, not just returned.
	_, ok := store.records["p1"]
	assert.True(t, ok)
}

func TestLoadSameDayIsStable(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, helsinki)
	tr := newTestTracker(store, now)

	_, err := tr.Consume(context.Background(), "p1")
	require.NoError(t, err)
	_, err = tr.Consume(context.Background(), "p1")
	require.NoError(t, err)

	// A later load on the same day must not touch the counter.
	tr.now = func() time.Time { return time.Date(2026, 3, 10, 23, 59, 0, 0, helsinki) }
	rec, err := tr.Load(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.UsageCount)
	assert.Equal(t, models.Day("2026-03-10"), rec.LastReset)
}

func TestLoadDayRolloverResetsUsage(t *testing.T) {
	store := newMemStore()
	tr := newTestTracker(store, time.Date(2026, 3, 10, 23, 50, 0, 0, helsinki))

	for i := 0; i < 3; i++ {
		_, err := tr.Consume(context.Background(), "p1")
		require.NoError(t, err)
	}
	d, _, err := tr.CanConsume(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	// Ten minutes later it is a new local day.
	tr.now = func() time.Time { return time.Date(2026, 3, 11, 0, 1, 0, 0, helsinki) }
	d, rec, err := tr.CanConsume(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 3, d.Remaining)
	assert.Equal(t, 0, rec.UsageCount)
	assert.Equal(t, models.Day("2026-03-11"), rec.LastReset)
}

func TestDayRolloverPreservesPremium(t *testing.T) {
	store := newMemStore()
	tr := newTestTracker(store, time.Date(2026, 3, 10, 12, 0, 0, 0, helsinki))

	_, err := tr.GrantPremium(context.Background(), "p1", 30, "cus_123", "sub_456")
	require.NoError(t, err)

	tr.now = func() time.Time { return time.Date(2026, 3, 11, 12, 0, 0, 0, helsinki) }
	rec, err := tr.Load(context.Background(), "p1")
	require.NoError(t, err)

	assert.True(t, rec.IsPremium)
	assert.Equal(t, "cus_123", rec.CustomerID)
	assert.Equal(t, "sub_456", rec.SubscriptionID)
	assert.Equal(t, models.StatePremiumPaid, rec.State())
}

func TestExpiredPremiumClearedOnLoad(t *testing.T) {
	store := newMemStore()
	granted := time.Date(2026, 3, 1, 12, 0, 0, 0, helsinki)
	tr := newTestTracker(store, granted)

	_, err := tr.GrantPremium(context.Background(), "p1", 30, "cus_123", "sub_456")
	require.NoError(t, err)

	tr.now = func() time.Time { return granted.AddDate(0, 0, 31) }
	rec, err := tr.Load(context.Background(), "p1")
	require.NoError(t, err)

	assert.False(t, rec.IsPremium)
	assert.Empty(t, rec.CustomerID)
	assert.Empty(t, rec.SubscriptionID)
	assert.Nil(t, rec.ActivatedAt)
	assert.Nil(t, rec.ExpiresAt)
	assert.Equal(t, models.StateFree, rec.State())
}

func TestExpiryCheckedBeforeDailyReset(t *testing.T) {
	// Premium that expires mid-day must fall back to the free tier
	// immediately, with today's usage counter still standing. Waiting for
	// the next day rollover would hand out an extra unlimited day.
	store := newMemStore()
	morning := time.Date(2026, 3, 10, 8, 0, 0, 0, helsinki)
	tr := newTestTracker(store, morning)

	_, err := tr.Consume(context.Background(), "p1")
	require.NoError(t, err)
	_, err = tr.Consume(context.Background(), "p1")
	require.NoError(t, err)

	// Grant lapses at 10:00 the same day.
	rec, err := tr.Load(context.Background(), "p1")
	require.NoError(t, err)
	expiry := time.Date(2026, 3, 10, 10, 0, 0, 0, helsinki)
	rec.IsPremium = true
	rec.CustomerID = "cus_123"
	rec.ExpiresAt = &expiry
	require.NoError(t, store.Save(context.Background(), rec))

	tr.now = func() time.Time { return time.Date(2026, 3, 10, 11, 0, 0, 0, helsinki) }
	d, rec, err := tr.CanConsume(context.Background(), "p1")
	require.NoError(t, err)

	assert.False(t, rec.IsPremium)
	assert.False(t, d.Unlimited)
	assert.Equal(t, 2, rec.UsageCount, "same-day expiry must not reset today's usage")
	assert.Equal(t, 1, d.Remaining)
}

func TestCorruptRecordRecreated(t *testing.T) {
	store := newMemStore()
	store.getErr = ErrCorrupt
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, helsinki)
	tr := newTestTracker(store, now)

	rec, err := tr.Load(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.UsageCount)
	assert.False(t, rec.IsPremium)
}

func TestConsumeUntilBlockedThenGrant(t *testing.T) {
	store := newMemStore()
	tr := newTestTracker(store, time.Date(2026, 3, 10, 9, 0, 0, 0, helsinki))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, _, err := tr.CanConsume(ctx, "p1")
		require.NoError(t, err)
		require.True(t, d.Allowed, "use %d should be allowed", i)

		rec, err := tr.Consume(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, i, rec.UsageCount)
	}

	d, _, err := tr.CanConsume(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	_, err = tr.GrantPremium(ctx, "p1", 30, "", "")
	require.NoError(t, err)

	d, rec, err := tr.CanConsume(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.True(t, d.Unlimited)
	assert.Equal(t, -1, d.WireRemaining())
	assert.Equal(t, models.StatePremiumCode, rec.State())
}

func TestRevokePreservesUsageCount(t *testing.T) {
	store := newMemStore()
	tr := newTestTracker(store, time.Date(2026, 3, 10, 9, 0, 0, 0, helsinki))
	ctx := context.Background()

	_, err := tr.Consume(ctx, "p1")
	require.NoError(t, err)
	_, err = tr.GrantPremium(ctx, "p1", 30, "cus_123", "sub_456")
	require.NoError(t, err)

	rec, err := tr.RevokePremium(ctx, "p1")
	require.NoError(t, err)

	assert.False(t, rec.IsPremium)
	assert.Empty(t, rec.CustomerID)
	assert.Equal(t, 1, rec.UsageCount)
	assert.Equal(t, models.Day("2026-03-10"), rec.LastReset)
}

func TestGrantPremiumExpiry(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, helsinki)
	tr := newTestTracker(store, now)

	rec, err := tr.GrantPremium(context.Background(), "p1", 35, "cus_123", "sub_456")
	require.NoError(t, err)

	require.NotNil(t, rec.ExpiresAt)
	assert.Equal(t, now.AddDate(0, 0, 35), *rec.ExpiresAt)
	require.NotNil(t, rec.ActivatedAt)
	assert.Equal(t, now, *rec.ActivatedAt)
}

func TestResetForTesting(t *testing.T) {
	store := newMemStore()
	tr := newTestTracker(store, time.Date(2026, 3, 10, 9, 0, 0, 0, helsinki))
	ctx := context.Background()

	_, err := tr.Consume(ctx, "p1")
	require.NoError(t, err)
	_, err = tr.GrantPremium(ctx, "p1", 30, "", "")
	require.NoError(t, err)

	require.NoError(t, tr.ResetForTesting(ctx, "p1"))

	rec, err := tr.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.UsageCount)
	assert.False(t, rec.IsPremium)
}

func TestStatusDaysLeft(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, helsinki)
	tr := newTestTracker(store, now)
	ctx := context.Background()

	status, err := tr.Status(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, status.IsPremium)
	assert.Equal(t, 0, status.DaysLeft)

	_, err = tr.GrantPremium(ctx, "p1", 30, "", "")
	require.NoError(t, err)

	status, err = tr.Status(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, status.IsPremium)
	assert.Equal(t, models.StatePremiumCode, status.State)
	assert.Equal(t, 30, status.DaysLeft)
}
