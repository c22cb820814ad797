package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/benvon/smart-coach/internal/request"
	"github.com/gorilla/mux"
)

// MaxBatchSize caps the number of requests in one batch call
const MaxBatchSize = 50

// Coach runs coaching requests through the orchestrator
type Coach interface {
	ProcessRequest(ctx context.Context, req *models.CoachingRequest) *models.OrchestrationResponse
	ProcessBatch(ctx context.Context, reqs []*models.CoachingRequest) []*models.OrchestrationResponse
}

// CoachHandler handles coaching requests
type CoachHandler struct {
	coach Coach
}

// NewCoachHandler creates a new coach handler
func NewCoachHandler(coach Coach) *CoachHandler {
	return &CoachHandler{coach: coach}
}

// RegisterRoutes registers coaching routes. The router should already carry
// the /coach prefix.
func (h *CoachHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.Coach).Methods("POST")
	r.HandleFunc("/batch", h.Batch).Methods("POST")
}

// BatchRequest is the body of a batch call
type BatchRequest struct {
	Requests []*models.CoachingRequest `json:"requests"`
}

// BatchResponse pairs every request with its response, in input order
type BatchResponse struct {
	Responses []*models.OrchestrationResponse `json:"responses"`
	Succeeded int                             `json:"succeeded"`
	Failed    int                             `json:"failed"`
}

// Coach processes a single request. The response body always carries the
// orchestration response so clients can show its fallback content.
func (h *CoachHandler) Coach(w http.ResponseWriter, r *http.Request) {
	var req models.CoachingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondModelError(w, err)
		return
	}

	if req.ID == "" {
		req.ID = request.IDFromContext(r.Context())
	}
	resp := h.coach.ProcessRequest(r.Context(), &req)
	respondJSON(w, coachStatus(resp), resp)
}

// Batch processes up to MaxBatchSize requests concurrently
func (h *CoachHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var body BatchRequest
	if err := decodeJSON(r, &body); err != nil {
		respondModelError(w, err)
		return
	}
	if len(body.Requests) == 0 {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "requests must not be empty")
		return
	}
	if len(body.Requests) > MaxBatchSize {
		respondJSONError(w, http.StatusBadRequest, "Bad Request",
			fmt.Sprintf("batch holds %d requests, maximum is %d", len(body.Requests), MaxBatchSize))
		return
	}

	out := BatchResponse{Responses: h.coach.ProcessBatch(r.Context(), body.Requests)}
	for _, resp := range out.Responses {
		if resp != nil && resp.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	respondJSON(w, http.StatusOK, out)
}

// coachStatus is 200 on success, 400 for invalid requests and 503 when the
// request failed downstream but fallback content is available
func coachStatus(resp *models.OrchestrationResponse) int {
	switch {
	case resp.Success:
		return http.StatusOK
	case resp.Recoverable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// parseTimeRange reads optional RFC3339 start/end query parameters
func parseTimeRange(r *http.Request) (*models.TimeRange, error) {
	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")
	if start == "" && end == "" {
		return nil, nil
	}
	tr := &models.TimeRange{}
	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return nil, models.NewValidationError("start", "must be RFC3339")
		}
		tr.Start = t
	}
	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return nil, models.NewValidationError("end", "must be RFC3339")
		}
		tr.End = t
	}
	if !tr.Start.IsZero() && !tr.End.IsZero() && tr.End.Before(tr.Start) {
		return nil, models.NewValidationError("end", "must not be before start")
	}
	return tr, nil
}
