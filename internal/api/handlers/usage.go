package handlers

import (
	"net/http"
	"time"

	"github.com/summari/backend/internal/api/response"
	"github.com/summari/backend/internal/entitlement"
	"github.com/summari/backend/internal/profile"
)

// UsageHandler handles usage and entitlement endpoints
type UsageHandler struct {
	tracker    *entitlement.Tracker
	allowReset bool
}

// NewUsageHandler creates a new usage handler. allowReset enables the
// dev-only DELETE endpoint.
func NewUsageHandler(tracker *entitlement.Tracker, allowReset bool) *UsageHandler {
	return &UsageHandler{tracker: tracker, allowReset: allowReset}
}

// UsageStats represents the usage and entitlement state for a profile
type UsageStats struct {
	ProfileID  string     `json:"profile_id"`
	State      string     `json:"state"`
	UsedToday  int        `json:"used_today"`
	DailyLimit int        `json:"daily_limit"`
	Remaining  int        `json:"remaining"` // -1 means unlimited
	Allowed    bool       `json:"allowed"`
	IsPremium  bool       `json:"is_premium"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	DaysLeft   int        `json:"days_left,omitempty"`
}

// GetUsage returns the usage statistics for the current profile
// GET /api/v1/usage
func (h *UsageHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	profileID := profile.FromContext(r.Context())

	decision, rec, err := h.tracker.CanConsume(r.Context(), profileID)
	if err != nil {
		response.InternalError(w, "Failed to load usage data")
		return
	}

	status, err := h.tracker.Status(r.Context(), profileID)
	if err != nil {
		response.InternalError(w, "Failed to load premium status")
		return
	}

	response.Success(w, UsageStats{
		ProfileID:  profileID,
		State:      rec.State(),
		UsedToday:  rec.UsageCount,
		DailyLimit: h.tracker.FreeDailyLimit(),
		Remaining:  decision.WireRemaining(),
		Allowed:    decision.Allowed,
		IsPremium:  rec.IsPremium,
		ExpiresAt:  rec.ExpiresAt,
		DaysLeft:   status.DaysLeft,
	})
}

// ResetUsage deletes the entitlement record entirely; the next request
// recreates free-tier defaults. Development only.
// DELETE /api/v1/usage
func (h *UsageHandler) ResetUsage(w http.ResponseWriter, r *http.Request) {
	if !h.allowReset {
		response.NotFound(w, "")
		return
	}

	profileID := profile.FromContext(r.Context())
	if err := h.tracker.ResetForTesting(r.Context(), profileID); err != nil {
		response.InternalError(w, "Failed to reset usage data")
		return
	}

	response.Success(w, map[string]bool{"reset": true})
}
