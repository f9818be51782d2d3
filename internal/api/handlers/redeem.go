package handlers

import (
	"net/http"

	"github.com/summari/backend/internal/api/request"
	"github.com/summari/backend/internal/api/response"
	"github.com/summari/backend/internal/entitlement"
	"github.com/summari/backend/internal/profile"
	"github.com/summari/backend/internal/redemption"
)

// RedeemHandler handles redemption-code endpoints
type RedeemHandler struct {
	verifier *redemption.Verifier
	tracker  *entitlement.Tracker
}

// NewRedeemHandler creates a new redeem handler
func NewRedeemHandler(verifier *redemption.Verifier, tracker *entitlement.Tracker) *RedeemHandler {
	return &RedeemHandler{verifier: verifier, tracker: tracker}
}

// RedeemRequest represents a code redemption attempt
type RedeemRequest struct {
	Code string `json:"code"`
}

// Redeem validates a code and grants code-path premium on success.
// POST /api/v1/redeem
func (h *RedeemHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	profileID := profile.FromContext(r.Context())

	var req RedeemRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.JSON(w, http.StatusBadRequest, redemption.Result{
			Success: false,
			Message: "Koodi puuttuu",
		})
		return
	}

	result, err := h.verifier.Redeem(r.Context(), req.Code)
	if err != nil {
		response.JSON(w, http.StatusInternalServerError, redemption.Result{
			Success: false,
			Message: "Koodin lunastuksessa tapahtui virhe",
		})
		return
	}

	if !result.Success {
		response.JSON(w, http.StatusBadRequest, result)
		return
	}

	// Code-granted path: no customer id, the grant stands on its own expiry.
	if _, err := h.tracker.GrantPremium(r.Context(), profileID, result.ExpiryDays, "", ""); err != nil {
		response.JSON(w, http.StatusInternalServerError, redemption.Result{
			Success: false,
			Message: "Koodin lunastuksessa tapahtui virhe",
		})
		return
	}

	response.JSON(w, http.StatusOK, result)
}
