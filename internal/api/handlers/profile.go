package handlers

import (
	"net/http"

	"github.com/summari/backend/internal/api/response"
	"github.com/summari/backend/internal/profile"
)

// ProfileHandler issues anonymous profile tokens
type ProfileHandler struct {
	tokens *profile.TokenService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(tokens *profile.TokenService) *ProfileHandler {
	return &ProfileHandler{tokens: tokens}
}

// ProfileResponse carries a freshly issued anonymous profile
type ProfileResponse struct {
	ProfileID string `json:"profile_id"`
	Token     string `json:"token"`
}

// Create issues a new anonymous profile and its bearer token. The client
// stores the token and presents it on every subsequent request; usage and
// entitlement state is keyed by the profile id inside it.
// POST /api/v1/profile
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	profileID, token, err := h.tokens.Issue()
	if err != nil {
		response.InternalError(w, "Failed to create profile")
		return
	}

	response.JSON(w, http.StatusCreated, ProfileResponse{
		ProfileID: profileID,
		Token:     token,
	})
}
