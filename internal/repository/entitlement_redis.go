// Package repository contains the entitlement store backends: a Redis
// whole-document store and a Postgres row store.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/summari/backend/internal/cache"
	"github.com/summari/backend/internal/entitlement"
	"github.com/summari/backend/internal/models"
)

const (
	// recordKeyPrefix is the well-known key prefix for entitlement documents
	recordKeyPrefix = "entitlement:profile:"
	// customerKeyPrefix indexes payment-provider customers to profiles
	customerKeyPrefix = "entitlement:customer:"
)

// RedisEntitlementStore persists each record as a single JSON document under
// one well-known key, read-modify-written as a whole. This mirrors the
// original client-local document model; it carries the same lost-update
// window between concurrent writers. Deployments that need an atomic
// counter should use the Postgres backend instead.
type RedisEntitlementStore struct {
	redis *cache.Redis
}

// NewRedisEntitlementStore creates a new Redis-backed store.
func NewRedisEntitlementStore(redis *cache.Redis) *RedisEntitlementStore {
	return &RedisEntitlementStore{redis: redis}
}

func recordKey(profileID string) string {
	return recordKeyPrefix + profileID
}

func customerKey(customerID string) string {
	return customerKeyPrefix + customerID
}

// Get returns the record for a profile.
func (s *RedisEntitlementStore) Get(ctx context.Context, profileID string) (*models.EntitlementRecord, error) {
	data, err := s.redis.Get(ctx, recordKey(profileID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, entitlement.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read entitlement document: %w", err)
	}

	var rec models.EntitlementRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, entitlement.ErrCorrupt
	}
	if rec.ProfileID == "" {
		rec.ProfileID = profileID
	}

	return &rec, nil
}

// Save persists the whole document and maintains the customer index.
func (s *RedisEntitlementStore) Save(ctx context.Context, rec *models.EntitlementRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal entitlement record: %w", err)
	}

	if err := s.redis.Set(ctx, recordKey(rec.ProfileID), string(data), 0); err != nil {
		return fmt.Errorf("failed to write entitlement document: %w", err)
	}

	if rec.CustomerID != "" {
		if err := s.redis.Set(ctx, customerKey(rec.CustomerID), rec.ProfileID, 0); err != nil {
			return fmt.Errorf("failed to write customer index: %w", err)
		}
	}

	return nil
}

// Delete removes the record and its customer index entry.
func (s *RedisEntitlementStore) Delete(ctx context.Context, profileID string) error {
	rec, err := s.Get(ctx, profileID)
	if err == nil && rec.CustomerID != "" {
		if err := s.redis.Delete(ctx, customerKey(rec.CustomerID)); err != nil {
			return fmt.Errorf("failed to delete customer index: %w", err)
		}
	}

	if err := s.redis.Delete(ctx, recordKey(profileID)); err != nil {
		return fmt.Errorf("failed to delete entitlement document: %w", err)
	}
	return nil
}

// IncrementUsage increments via read-modify-write of the whole document.
func (s *RedisEntitlementStore) IncrementUsage(ctx context.Context, profileID string) (*models.EntitlementRecord, error) {
	rec, err := s.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}

	rec.UsageCount++
	rec.UpdatedAt = time.Now()

	if err := s.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// FindByCustomerID resolves a record through the customer index.
func (s *RedisEntitlementStore) FindByCustomerID(ctx context.Context, customerID string) (*models.EntitlementRecord, error) {
	profileID, err := s.redis.Get(ctx, customerKey(customerID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, entitlement.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read customer index: %w", err)
	}

	rec, err := s.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}

	// The index can go stale after a revoke; don't resolve to a record that
	// no longer belongs to this customer.
	if rec.CustomerID != customerID {
		return nil, entitlement.ErrNotFound
	}

	return rec, nil
}

// ListPremium returns every premium record. Maintenance sweeps only; this
// scans the keyspace.
func (s *RedisEntitlementStore) ListPremium(ctx context.Context) ([]*models.EntitlementRecord, error) {
	keys, err := s.redis.Keys(ctx, recordKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to list entitlement documents: %w", err)
	}

	records := make([]*models.EntitlementRecord, 0)
	for _, key := range keys {
		profileID := strings.TrimPrefix(key, recordKeyPrefix)
		rec, err := s.Get(ctx, profileID)
		if err != nil {
			// Skip corrupt or vanished documents; the next Load recreates them.
			continue
		}
		if rec.IsPremium {
			records = append(records, rec)
		}
	}

	return records, nil
}
