package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/summari/backend/internal/database"
	"github.com/summari/backend/internal/entitlement"
	"github.com/summari/backend/internal/models"
)

// PostgresEntitlementStore persists records as rows. Unlike the Redis
// document backend, the usage increment is a single atomic UPDATE, so
// concurrent consumers cannot lose updates.
type PostgresEntitlementStore struct {
	db *database.DB
}

// NewPostgresEntitlementStore creates a new Postgres-backed store.
func NewPostgresEntitlementStore(db *database.DB) *PostgresEntitlementStore {
	return &PostgresEntitlementStore{db: db}
}

// EnsureSchema creates the entitlements table if it does not exist.
func (s *PostgresEntitlementStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS entitlements (
			profile_id      TEXT PRIMARY KEY,
			usage_count     INTEGER NOT NULL DEFAULT 0,
			last_reset      TEXT NOT NULL,
			is_premium      BOOLEAN NOT NULL DEFAULT FALSE,
			customer_id     TEXT,
			subscription_id TEXT,
			activated_at    TIMESTAMPTZ,
			expires_at      TIMESTAMPTZ,
			created_at      TIMESTAMPTZ NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_entitlements_customer ON entitlements (customer_id) WHERE customer_id IS NOT NULL;
	`
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure entitlements schema: %w", err)
	}
	return nil
}

const entitlementColumns = `profile_id, usage_count, last_reset, is_premium, customer_id, subscription_id, activated_at, expires_at, created_at, updated_at`

func scanEntitlement(row pgx.Row) (*models.EntitlementRecord, error) {
	var (
		rec            models.EntitlementRecord
		lastReset      string
		customerID     sql.NullString
		subscriptionID sql.NullString
		activatedAt    sql.NullTime
		expiresAt      sql.NullTime
	)

	err := row.Scan(&rec.ProfileID, &rec.UsageCount, &lastReset, &rec.IsPremium,
		&customerID, &subscriptionID, &activatedAt, &expiresAt,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.LastReset = models.Day(lastReset)
	if customerID.Valid {
		rec.CustomerID = customerID.String
	}
	if subscriptionID.Valid {
		rec.SubscriptionID = subscriptionID.String
	}
	if activatedAt.Valid {
		t := activatedAt.Time
		rec.ActivatedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		rec.ExpiresAt = &t
	}

	return &rec, nil
}

// Get retrieves a record by profile ID.
func (s *PostgresEntitlementStore) Get(ctx context.Context, profileID string) (*models.EntitlementRecord, error) {
	query := `SELECT ` + entitlementColumns + ` FROM entitlements WHERE profile_id = $1`
	rec, err := scanEntitlement(s.db.QueryRow(ctx, query, profileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entitlement.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entitlement record: %w", err)
	}
	return rec, nil
}

// Save upserts the whole record.
func (s *PostgresEntitlementStore) Save(ctx context.Context, rec *models.EntitlementRecord) error {
	query := `
		INSERT INTO entitlements (` + entitlementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (profile_id) DO UPDATE SET
			usage_count = EXCLUDED.usage_count,
			last_reset = EXCLUDED.last_reset,
			is_premium = EXCLUDED.is_premium,
			customer_id = EXCLUDED.customer_id,
			subscription_id = EXCLUDED.subscription_id,
			activated_at = EXCLUDED.activated_at,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.Exec(ctx, query,
		rec.ProfileID, rec.UsageCount, string(rec.LastReset), rec.IsPremium,
		nullString(rec.CustomerID), nullString(rec.SubscriptionID),
		rec.ActivatedAt, rec.ExpiresAt, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save entitlement record: %w", err)
	}
	return nil
}

// Delete removes the record.
func (s *PostgresEntitlementStore) Delete(ctx context.Context, profileID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM entitlements WHERE profile_id = $1`, profileID); err != nil {
		return fmt.Errorf("failed to delete entitlement record: %w", err)
	}
	return nil
}

// IncrementUsage atomically increments the usage counter.
func (s *PostgresEntitlementStore) IncrementUsage(ctx context.Context, profileID string) (*models.EntitlementRecord, error) {
	query := `
		UPDATE entitlements
		SET usage_count = usage_count + 1, updated_at = $2
		WHERE profile_id = $1
		RETURNING ` + entitlementColumns
	rec, err := scanEntitlement(s.db.QueryRow(ctx, query, profileID, time.Now()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entitlement.ErrNotFound
		}
		return nil, fmt.Errorf("failed to increment usage: %w", err)
	}
	return rec, nil
}

// FindByCustomerID retrieves the record linked to a payment-provider customer.
func (s *PostgresEntitlementStore) FindByCustomerID(ctx context.Context, customerID string) (*models.EntitlementRecord, error) {
	query := `SELECT ` + entitlementColumns + ` FROM entitlements WHERE customer_id = $1`
	rec, err := scanEntitlement(s.db.QueryRow(ctx, query, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entitlement.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find record by customer: %w", err)
	}
	return rec, nil
}

// ResetAllDaily zeroes usage counters for every record whose reset day is
// not today. Run by the reconciler at the day boundary; lazy normalization
// on load covers profiles the sweep misses.
func (s *PostgresEntitlementStore) ResetAllDaily(ctx context.Context, today models.Day) (int64, error) {
	query := `
		UPDATE entitlements
		SET usage_count = 0, last_reset = $1, updated_at = $2
		WHERE last_reset <> $1
	`
	affected, err := s.db.Exec(ctx, query, string(today), time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to reset daily usage: %w", err)
	}
	return affected, nil
}

// ListPremium returns every premium record, for maintenance sweeps.
func (s *PostgresEntitlementStore) ListPremium(ctx context.Context) ([]*models.EntitlementRecord, error) {
	query := `SELECT ` + entitlementColumns + ` FROM entitlements WHERE is_premium = TRUE`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list premium records: %w", err)
	}
	defer rows.Close()

	records := make([]*models.EntitlementRecord, 0)
	for rows.Next() {
		rec, err := scanEntitlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan premium record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate premium records: %w", err)
	}

	return records, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
