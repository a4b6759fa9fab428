package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"formpilot/internal/models"
	"formpilot/internal/store"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ProfilesHandler struct {
	store *store.Store
}

func NewProfilesHandler(s *store.Store) *ProfilesHandler {
	return &ProfilesHandler{store: s}
}

func (h *ProfilesHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.ListProfiles(r.Context())
	if err != nil {
		log.Printf("Failed to list profiles: %v", err)
		http.Error(w, "Failed to list profiles", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

type createProfileRequest struct {
	Name    string         `json:"name"`
	Payload models.Payload `json:"payload"`
}

func (h *ProfilesHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Profile name is required", http.StatusBadRequest)
		return
	}

	profile, err := h.store.CreateProfile(r.Context(), req.Name, req.Payload)
	if err != nil {
		log.Printf("Failed to create profile: %v", err)
		http.Error(w, "Failed to create profile", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

// UpdateProfile replaces a profile's payload (explicit user edit; the
// engine only ever merges single learned answers).
func (h *ProfilesHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid profile ID", http.StatusBadRequest)
		return
	}

	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.UpdateProfilePayload(r.Context(), id, req.Payload); err != nil {
		log.Printf("Failed to update profile %s: %v", id, err)
		http.Error(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}

	profile, err := h.store.GetProfile(r.Context(), id)
	if err != nil {
		http.Error(w, "Profile not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
