package handlers

import (
	"context"
	"net/http"

	"github.com/benvon/smart-coach/internal/contextstore"
	"github.com/benvon/smart-coach/internal/logger"
	"github.com/benvon/smart-coach/internal/models"
	"github.com/gorilla/mux"
)

// UserInitializer prepares a user's context from their stored profile
type UserInitializer interface {
	InitializeUser(ctx context.Context, userID string) (*models.UserContext, error)
}

// ContextHandler exposes the context store per user
type ContextHandler struct {
	store *contextstore.Store
	users UserInitializer
}

// NewContextHandler creates a new context handler
func NewContextHandler(store *contextstore.Store, users UserInitializer) *ContextHandler {
	return &ContextHandler{store: store, users: users}
}

// RegisterRoutes registers per-user routes. The router should already carry
// the /users prefix.
func (h *ContextHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{userID}/initialize", h.Initialize).Methods("POST")
	r.HandleFunc("/{userID}/context", h.GetContext).Methods("GET")
	r.HandleFunc("/{userID}/context", h.SetContext).Methods("PUT")
	r.HandleFunc("/{userID}/context", h.UpdateContext).Methods("PATCH")
	r.HandleFunc("/{userID}/context", h.DeleteContext).Methods("DELETE")
	r.HandleFunc("/{userID}/context/history", h.GetHistory).Methods("GET")
	r.HandleFunc("/{userID}/analysis", h.Analyze).Methods("GET")
	r.HandleFunc("/{userID}/predictions", h.Predict).Methods("GET")
}

// PredictionResponse is the needs prediction together with the readiness score
type PredictionResponse struct {
	Readiness  float64                `json:"readiness"`
	Prediction models.NeedsPrediction `json:"prediction"`
}

// userIDFromPath reads and bounds the {userID} path variable
func userIDFromPath(r *http.Request) (string, error) {
	id := mux.Vars(r)["userID"]
	if id == "" {
		return "", models.NewValidationError("userID", "is required")
	}
	if len(id) > logger.MaxUserIDLength {
		return "", models.NewValidationError("userID", "is too long")
	}
	return id, nil
}

// Initialize creates or refreshes the user's context from their profile
func (h *ContextHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromPath(r)
	if err != nil {
		respondModelError(w, err)
		return
	}
	uc, err := h.users.InitializeUser(r.Context(), userID)
	if err != nil {
		respondModelError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, uc)
}

// GetContext returns the user's current context
func (h *ContextHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromPath(r)
	if err != nil {
		respondModelError(w, err)
		return
	}
	uc, ok := h.store.GetContext(userID)
	if !ok {
		respondModelError(w, models.NewNotFoundError("context", userID))
		return
	}
	respondJSON(w, http.StatusOK, uc)
}

// SetContext replaces the user's context
func (h *ContextHandler) SetContext(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromPath(r)
	if err != nil {
		respondModelError(w, err)
		return
	}
	var uc models.UserContext
	if err := decodeJSON(r, &uc); err != nil {
		respondModelError(w, err)
		return
	}
	if err := h.store.SetContext(userID, &uc); err != nil {
		respondModelError(w, err)
		return
	}
	stored, _ := h.store.GetContext(userID)
	respondJSON(w, http.StatusOK, stored)
}

// UpdateContext merges a partial update into the user's context
func (h *ContextHandler) UpdateContext(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromPath(r)
	if err != nil {
		respondModelError(w, err)
		return
	}
	var update models.ContextUpdate
	if err := decodeJSON(r, &update); err != nil {
		respondModelError(w, err)
		return
	}
	if err := h.store.UpdateContext(userID, update); err != nil {
		respondModelError(w, err)
		return
	}
	stored, _ := h.store.GetContext(userID)
	respondJSON(w, http.StatusOK, stored)
}

// DeleteContext drops the user's context, history and subscriptions
func (h *ContextHandler) DeleteContext(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromPath(r)
	if err != nil {
		respondModelError(w, err)
		return
	}
	h.store.DeleteContext(userID)
	w.WriteHeader(http.StatusNoContent)
}

// GetHistory returns the archived contexts, oldest first
func (h *ContextHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromPath(r)
	if err != nil {
		respondModelError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.store.GetHistory(userID))
}

// Analyze runs pattern analysis over the user's history, optionally limited
// by start and end query parameters
func (h *ContextHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromPath(r)
	if err != nil {
		respondModelError(w, err)
		return
	}
	tr, err := parseTimeRange(r)
	if err != nil {
		respondModelError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.store.AnalyzePatterns(userID, tr))
}

// Predict returns rule-based needs for the user's current context
func (h *ContextHandler) Predict(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromPath(r)
	if err != nil {
		respondModelError(w, err)
		return
	}
	uc, ok := h.store.GetContext(userID)
	if !ok {
		respondModelError(w, models.NewNotFoundError("context", userID))
		return
	}
	respondJSON(w, http.StatusOK, PredictionResponse{
		Readiness:  contextstore.ReadinessScore(uc),
		Prediction: contextstore.PredictNeeds(uc),
	})
}
