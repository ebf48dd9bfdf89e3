package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/orchidcart/api/internal/platform/auth"
	"github.com/orchidcart/api/internal/services"
)

const maxProfileBodySize = 8 * 1024

type syncProfileRequest struct {
	DisplayName string `json:"displayName"`
	PhoneNumber string `json:"phoneNumber"`
}

type profilePayload struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName,omitempty"`
	Email       string   `json:"email,omitempty"`
	PhoneNumber string   `json:"phoneNumber,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	IsActive    bool     `json:"isActive"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`
}

// ProfileHandlers exposes the slim user profile projection consumed by the
// storefront after sign-in.
type ProfileHandlers struct {
	authn *auth.Authenticator
	users services.UserService
}

// NewProfileHandlers constructs a new ProfileHandlers instance.
func NewProfileHandlers(authn *auth.Authenticator, users services.UserService) *ProfileHandlers {
	return &ProfileHandlers{
		authn: authn,
		users: users,
	}
}

// Routes registers the /me endpoints.
func (h *ProfileHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getProfile)
	r.Post("/sync", h.syncProfile)
}

func (h *ProfileHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	profile, err := h.users.GetProfile(ctx, identity.UID)
	if err != nil {
		writeProfileError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, "profile fetched", buildProfilePayload(profile))
}

func (h *ProfileHandlers) syncProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req syncProfileRequest
	body, err := readLimitedBody(r, maxProfileBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(w, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	profile, err := h.users.SyncProfile(ctx, services.SyncProfileCommand{
		UserID:      identity.UID,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Email:       identity.Email,
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Roles:       identity.Roles,
	})
	if err != nil {
		writeProfileError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, "profile synced", buildProfilePayload(profile))
}

func buildProfilePayload(profile services.UserProfile) profilePayload {
	return profilePayload{
		ID:          profile.ID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		PhoneNumber: profile.PhoneNumber,
		Roles:       profile.Roles,
		IsActive:    profile.IsActive,
		CreatedAt:   formatTime(profile.CreatedAt),
		UpdatedAt:   formatTime(profile.UpdatedAt),
	}
}

func writeProfileError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		writeFailure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		writeFailure(w, http.StatusNotFound, "profile not found")
	default:
		writeFailure(w, http.StatusInternalServerError, "failed to process profile request")
	}
}
