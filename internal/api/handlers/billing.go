package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/summari/backend/internal/api/request"
	"github.com/summari/backend/internal/api/response"
	"github.com/summari/backend/internal/billing"
	"github.com/summari/backend/internal/payments"
	"github.com/summari/backend/internal/profile"
)

// maxWebhookBody bounds webhook payloads read into memory.
const maxWebhookBody = 64 << 10

// BillingHandler handles checkout and reconciliation endpoints. The
// reconciler and stripe client are nil when Stripe is not configured; the
// service then runs free-tier and code-redemption only.
type BillingHandler struct {
	reconciler *billing.Reconciler
	stripe     *payments.StripeClient
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(reconciler *billing.Reconciler, stripe *payments.StripeClient) *BillingHandler {
	return &BillingHandler{reconciler: reconciler, stripe: stripe}
}

// CheckoutResponse carries the provider-hosted checkout URL
type CheckoutResponse struct {
	URL string `json:"url"`
}

// CreateCheckout starts a checkout session for the current profile.
// POST /api/v1/billing/checkout
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil {
		response.ServiceUnavailable(w, "Maksujärjestelmä ei ole käytettävissä")
		return
	}

	profileID := profile.FromContext(r.Context())

	url, err := h.reconciler.CreateCheckout(r.Context(), profileID)
	if err != nil {
		log.Printf("[billing] Checkout creation failed for profile %s: %v", profileID, err)
		response.BadGateway(w, "Maksujärjestelmässä tapahtui virhe")
		return
	}

	response.Success(w, CheckoutResponse{URL: url})
}

// VerifyResponse is the outcome of checkout-return verification
type VerifyResponse struct {
	Success    bool   `json:"success"`
	CustomerID string `json:"customer_id,omitempty"`
	ExpiresAt  string `json:"expires_at,omitempty"`
}

// VerifyCheckout handles the return from checkout. Premium is granted only
// when the provider confirms payment; failures leave the record untouched.
// GET /api/v1/billing/verify?session_id=...
func (h *BillingHandler) VerifyCheckout(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil {
		response.ServiceUnavailable(w, "Maksujärjestelmä ei ole käytettävissä")
		return
	}

	sessionID := request.GetQueryString(r, "session_id", "")
	if sessionID == "" {
		response.BadRequest(w, "session_id is required")
		return
	}

	profileID := profile.FromContext(r.Context())

	rec, err := h.reconciler.VerifyCheckout(r.Context(), profileID, sessionID)
	if err != nil {
		if errors.Is(err, billing.ErrNotPaid) {
			response.Success(w, VerifyResponse{Success: false})
			return
		}
		log.Printf("[billing] Verification failed for profile %s: %v", profileID, err)
		response.BadGateway(w, "Maksun varmistus epäonnistui")
		return
	}

	resp := VerifyResponse{Success: true, CustomerID: rec.CustomerID}
	if rec.ExpiresAt != nil {
		resp.ExpiresAt = rec.ExpiresAt.Format("2006-01-02")
	}
	response.Success(w, resp)
}

// LivenessResponse is the outcome of a subscription re-check
type LivenessResponse struct {
	Checked bool   `json:"checked"`
	Revoked bool   `json:"revoked"`
	Message string `json:"message,omitempty"`
}

// CheckLiveness cross-checks the premium claim against the provider.
// POST /api/v1/billing/liveness
func (h *BillingHandler) CheckLiveness(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil {
		response.Success(w, LivenessResponse{})
		return
	}

	profileID := profile.FromContext(r.Context())

	result, err := h.reconciler.CheckLiveness(r.Context(), profileID)
	if err != nil {
		response.InternalError(w, "Failed to check subscription")
		return
	}

	resp := LivenessResponse{Checked: result.Checked, Revoked: result.Revoked}
	if result.Revoked {
		resp.Message = "Premium-tilauksesi on päättynyt"
	}
	response.Success(w, resp)
}

// Webhook receives payment-provider events. The signature is verified
// against the raw body before anything is acted on.
// POST /api/v1/billing/webhook
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.stripe == nil || h.reconciler == nil {
		response.ServiceUnavailable(w, "")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "Failed to read payload")
		return
	}

	event, err := h.stripe.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Printf("[billing] Webhook rejected: %v", err)
		response.BadRequest(w, "Invalid signature")
		return
	}

	if err := h.reconciler.HandleWebhookEvent(r.Context(), event); err != nil {
		log.Printf("[billing] Webhook handling failed: %v", err)
		response.InternalError(w, "Failed to process event")
		return
	}

	response.JSON(w, http.StatusOK, map[string]bool{"received": true})
}
