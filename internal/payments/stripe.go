// Package payments is the payment-provider boundary. The rest of the
// application only sees checkout URLs, payment verifications, liveness
// answers and normalized webhook events; Stripe types stay in here.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Verification is the outcome of checking a checkout session.
type Verification struct {
	Paid           bool
	CustomerID     string
	SubscriptionID string
}

// Config holds Stripe settings.
type Config struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
	BaseURL       string
}

// StripeClient talks to the Stripe API.
type StripeClient struct {
	api           *client.API
	webhookSecret string
	priceID       string
	baseURL       string
}

// NewStripeClient creates a new Stripe client. Returns an error when no
// secret key is configured so callers can degrade to a free-only mode.
func NewStripeClient(cfg Config) (*StripeClient, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is not configured")
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	return &StripeClient{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		priceID:       cfg.PriceID,
		baseURL:       cfg.BaseURL,
	}, nil
}

// CreateCheckout creates a subscription checkout session and returns its
// URL. The profile id rides along as the client reference so the session
// can be tied back to a profile.
func (c *StripeClient) CreateCheckout(ctx context.Context, profileID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Params:              stripe.Params{Context: ctx},
		Mode:                stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:          stripe.String(c.baseURL + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:           stripe.String(c.baseURL + "/"),
		ClientReferenceID:   stripe.String(profileID),
		AllowPromotionCodes: stripe.Bool(true),
	}

	if c.priceID != "" {
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(c.priceID), Quantity: stripe.Int64(1)},
		}
	} else {
		// Inline price for zero-config deployments: 19 EUR / month.
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyEUR)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String("Summari Unlimited"),
						Description: stripe.String("Rajaton käyttö + kaikki premium-ominaisuudet"),
					},
					UnitAmount: stripe.Int64(1900),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		}
	}

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	return session.URL, nil
}

// VerifyPayment retrieves a checkout session and reports whether it was
// paid, along with the customer and subscription identities.
func (c *StripeClient) VerifyPayment(ctx context.Context, sessionID string) (*Verification, error) {
	session, err := c.api.CheckoutSessions.Get(sessionID, &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve checkout session: %w", err)
	}

	v := &Verification{
		Paid: session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	if session.Customer != nil {
		v.CustomerID = session.Customer.ID
	}
	if session.Subscription != nil {
		v.SubscriptionID = session.Subscription.ID
	}

	return v, nil
}

// HasActiveSubscription reports whether the customer has at least one
// active subscription.
func (c *StripeClient) HasActiveSubscription(ctx context.Context, customerID string) (bool, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := c.api.Subscriptions.List(params)
	for iter.Next() {
		return true, nil
	}
	if err := iter.Err(); err != nil {
		return false, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	return false, nil
}

// WebhookEvent is a payment-provider event reduced to what reconciliation
// needs.
type WebhookEvent struct {
	Kind           EventKind
	CustomerID     string
	SubscriptionID string
}

// EventKind classifies webhook events.
type EventKind int

const (
	// EventIgnored is anything reconciliation does not act on
	EventIgnored EventKind = iota
	// EventSubscriptionActive means premium should be (re)granted
	EventSubscriptionActive
	// EventSubscriptionEnded means premium should be revoked
	EventSubscriptionEnded
)

// ParseWebhook verifies the event signature and normalizes the event.
func (c *StripeClient) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, c.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		sub, err := parseSubscription(event)
		if err != nil {
			return nil, err
		}
		if sub.Status != stripe.SubscriptionStatusActive {
			return &WebhookEvent{Kind: EventIgnored}, nil
		}
		return &WebhookEvent{
			Kind:           EventSubscriptionActive,
			CustomerID:     customerID(sub.Customer),
			SubscriptionID: sub.ID,
		}, nil

	case "customer.subscription.deleted":
		sub, err := parseSubscription(event)
		if err != nil {
			return nil, err
		}
		return &WebhookEvent{
			Kind:           EventSubscriptionEnded,
			CustomerID:     customerID(sub.Customer),
			SubscriptionID: sub.ID,
		}, nil

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("failed to parse invoice event: %w", err)
		}
		return &WebhookEvent{
			Kind:       EventSubscriptionEnded,
			CustomerID: customerID(invoice.Customer),
		}, nil

	default:
		log.Printf("[payments] Ignoring webhook event type %s", event.Type)
		return &WebhookEvent{Kind: EventIgnored}, nil
	}
}

func parseSubscription(event stripe.Event) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse subscription event: %w", err)
	}
	return &sub, nil
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
