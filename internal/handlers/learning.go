package handlers

import (
	"net/http"
	"strconv"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/gorilla/mux"
)

const (
	defaultInsightLimit = 20
	maxInsightLimit     = 100
)

// LearningReporter reports the optimizer's view of the system
type LearningReporter interface {
	GetSystemHealth() models.SystemHealth
	Insights(limit int) []models.LearningInsight
	ImprovementPlans() []models.ContinuousImprovementPlan
}

// LearningHandler exposes learning health, insights and improvement plans
type LearningHandler struct {
	reporter LearningReporter
}

// NewLearningHandler creates a new learning handler
func NewLearningHandler(reporter LearningReporter) *LearningHandler {
	return &LearningHandler{reporter: reporter}
}

// RegisterRoutes registers learning routes under the /learning prefix
func (h *LearningHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/insights", h.Insights).Methods("GET")
	r.HandleFunc("/plans", h.Plans).Methods("GET")
}

// Health returns the per-component and overall learning health
func (h *LearningHandler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.reporter.GetSystemHealth())
}

// Insights returns the newest insights. ?limit is clamped to [1, 100].
func (h *LearningHandler) Insights(w http.ResponseWriter, r *http.Request) {
	limit := defaultInsightLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxInsightLimit)
	}
	respondJSON(w, http.StatusOK, h.reporter.Insights(limit))
}

// Plans returns the spawned improvement plans
func (h *LearningHandler) Plans(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.reporter.ImprovementPlans())
}
