// Package billing reconciles the locally persisted premium claim against
// the payment provider's authoritative subscription state.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/summari/backend/internal/entitlement"
	"github.com/summari/backend/internal/models"
	"github.com/summari/backend/internal/payments"
)

// DefaultPaidGrantDays pads the 30-day billing cycle with a 5-day buffer so
// provider-side renewal latency does not lapse an active subscriber.
const DefaultPaidGrantDays = 35

// Provider is the payment-provider contract billing depends on.
// *payments.StripeClient satisfies it; tests use a fake.
type Provider interface {
	CreateCheckout(ctx context.Context, profileID string) (string, error)
	VerifyPayment(ctx context.Context, sessionID string) (*payments.Verification, error)
	HasActiveSubscription(ctx context.Context, customerID string) (bool, error)
}

// Reconciler drives premium grants and revocations from payment events.
type Reconciler struct {
	tracker       *entitlement.Tracker
	provider      Provider
	paidGrantDays int
}

// NewReconciler creates a new reconciler.
func NewReconciler(tracker *entitlement.Tracker, provider Provider, paidGrantDays int) *Reconciler {
	if paidGrantDays <= 0 {
		paidGrantDays = DefaultPaidGrantDays
	}
	return &Reconciler{
		tracker:       tracker,
		provider:      provider,
		paidGrantDays: paidGrantDays,
	}
}

// CreateCheckout starts a checkout session for a profile.
func (r *Reconciler) CreateCheckout(ctx context.Context, profileID string) (string, error) {
	url, err := r.provider.CreateCheckout(ctx, profileID)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout: %w", err)
	}
	return url, nil
}

// VerifyCheckout handles the return from checkout. Premium is granted only
// on an explicit paid answer; verification failures grant nothing.
func (r *Reconciler) VerifyCheckout(ctx context.Context, profileID, sessionID string) (*models.EntitlementRecord, error) {
	verification, err := r.provider.VerifyPayment(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("payment verification failed: %w", err)
	}
	if !verification.Paid {
		return nil, ErrNotPaid
	}

	rec, err := r.tracker.GrantPremium(ctx, profileID, r.paidGrantDays, verification.CustomerID, verification.SubscriptionID)
	if err != nil {
		return nil, err
	}

	log.Printf("[billing] Checkout verified for profile %s (customer=%s)", profileID, verification.CustomerID)
	return rec, nil
}

// ErrNotPaid is returned when a checkout session was not completed.
var ErrNotPaid = errors.New("checkout session is not paid")

// LivenessResult is the outcome of a subscription liveness re-check.
type LivenessResult struct {
	Checked bool `json:"checked"`
	Revoked bool `json:"revoked"`
}

// CheckLiveness cross-checks a premium record against the provider. Only an
// explicit "no active subscription" answer revokes; a provider failure
// leaves the record untouched, since absence of proof is not proof of
// absence. Non-premium and code-granted records are not checked.
func (r *Reconciler) CheckLiveness(ctx context.Context, profileID string) (*LivenessResult, error) {
	rec, err := r.tracker.Load(ctx, profileID)
	if err != nil {
		return nil, err
	}

	if !rec.IsPremium || rec.CustomerID == "" {
		return &LivenessResult{}, nil
	}

	active, err := r.provider.HasActiveSubscription(ctx, rec.CustomerID)
	if err != nil {
		log.Printf("[billing] Liveness check failed for profile %s, keeping premium: %v", profileID, err)
		return &LivenessResult{}, nil
	}

	if active {
		return &LivenessResult{Checked: true}, nil
	}

	if _, err := r.tracker.RevokePremium(ctx, profileID); err != nil {
		return nil, err
	}

	log.Printf("[billing] Subscription inactive, premium revoked for profile %s", profileID)
	return &LivenessResult{Checked: true, Revoked: true}, nil
}

// HandleWebhookEvent applies a normalized provider event to the record
// linked to the event's customer. Events for unknown customers are ignored;
// the periodic sweep and lazy normalization converge the state later.
func (r *Reconciler) HandleWebhookEvent(ctx context.Context, event *payments.WebhookEvent) error {
	switch event.Kind {
	case payments.EventSubscriptionActive:
		rec, err := r.tracker.FindByCustomerID(ctx, event.CustomerID)
		if err != nil {
			if errors.Is(err, entitlement.ErrNotFound) {
				log.Printf("[billing] Webhook for unknown customer %s, ignoring", event.CustomerID)
				return nil
			}
			return err
		}
		_, err = r.tracker.GrantPremium(ctx, rec.ProfileID, r.paidGrantDays, event.CustomerID, event.SubscriptionID)
		return err

	case payments.EventSubscriptionEnded:
		rec, err := r.tracker.FindByCustomerID(ctx, event.CustomerID)
		if err != nil {
			if errors.Is(err, entitlement.ErrNotFound) {
				return nil
			}
			return err
		}
		_, err = r.tracker.RevokePremium(ctx, rec.ProfileID)
		return err

	default:
		return nil
	}
}

// SweepPremium re-checks every payment-granted premium record against the
// provider and normalizes expiries. Run periodically by cmd/reconciler.
func (r *Reconciler) SweepPremium(ctx context.Context, records []*models.EntitlementRecord) (revoked int) {
	for _, rec := range records {
		result, err := r.CheckLiveness(ctx, rec.ProfileID)
		if err != nil {
			log.Printf("[billing] Sweep failed for profile %s: %v", rec.ProfileID, err)
			continue
		}
		if result.Revoked {
			revoked++
		}
	}
	return revoked
}
