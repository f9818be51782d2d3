package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/summari/backend/internal/api/request"
	"github.com/summari/backend/internal/api/response"
	"github.com/summari/backend/internal/entitlement"
	"github.com/summari/backend/internal/middleware"
	"github.com/summari/backend/internal/profile"
	"github.com/summari/backend/internal/summarizer"
)

// SummarizeHandler handles the entitlement-gated summarization endpoint
type SummarizeHandler struct {
	tracker   *entitlement.Tracker
	summaries *summarizer.Service
}

// NewSummarizeHandler creates a new summarize handler
func NewSummarizeHandler(tracker *entitlement.Tracker, summaries *summarizer.Service) *SummarizeHandler {
	return &SummarizeHandler{tracker: tracker, summaries: summaries}
}

// SummarizeRequest represents a summarization submission
type SummarizeRequest struct {
	Content  string `json:"content"`
	Template string `json:"template"`
}

// SummarizeResponse bundles the summary with the updated usage state
type SummarizeResponse struct {
	Summary   *summarizer.StructuredSummary `json:"summary"`
	UsedToday int                           `json:"used_today"`
	Remaining int                           `json:"remaining"` // -1 means unlimited
}

// QuotaExceededResponse is the 402 body shown when the free quota is spent
type QuotaExceededResponse struct {
	Error     string `json:"error"`
	Remaining int    `json:"remaining"`
	Upgrade   bool   `json:"upgrade"`
}

// Summarize runs the gated submission path: quota pre-check, LLM call,
// usage increment on success.
// POST /api/v1/summarize
func (h *SummarizeHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	profileID := profile.FromContext(r.Context())

	var req SummarizeRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	decision, _, err := h.tracker.CanConsume(r.Context(), profileID)
	if err != nil {
		response.InternalError(w, "Failed to check usage quota")
		return
	}
	if !decision.Allowed {
		response.PaymentRequired(w, QuotaExceededResponse{
			Error:     "Päivittäinen ilmaisraja on täynnä",
			Remaining: 0,
			Upgrade:   true,
		})
		return
	}

	summary, err := h.summaries.Summarize(r.Context(), req.Content, summarizer.Template(req.Template))
	if err != nil {
		if errors.Is(err, summarizer.ErrContentTooShort) {
			response.BadRequest(w, "Syötä vähintään 10 merkkiä tekstiä")
			return
		}
		requestID := middleware.GetRequestID(r.Context())
		log.Printf("[%s] Summarization failed: %v", requestID, err)
		response.BadGateway(w, "AI-palvelussa tapahtui virhe. Yritä hetken kuluttua uudelleen.")
		return
	}

	// Usage is consumed only after a successful summary; a failed LLM call
	// must not cost a free use.
	rec, err := h.tracker.Consume(r.Context(), profileID)
	if err != nil {
		response.InternalError(w, "Failed to record usage")
		return
	}

	updated := entitlement.Decide(rec, h.tracker.FreeDailyLimit())
	response.Success(w, SummarizeResponse{
		Summary:   summary,
		UsedToday: rec.UsageCount,
		Remaining: updated.WireRemaining(),
	})
}
