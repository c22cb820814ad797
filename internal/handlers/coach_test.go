package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/benvon/smart-coach/internal/request"
	"github.com/gorilla/mux"
)

type mockCoach struct {
	processFunc func(ctx context.Context, req *models.CoachingRequest) *models.OrchestrationResponse
	batchCalls  int
}

var _ Coach = (*mockCoach)(nil)

func (m *mockCoach) ProcessRequest(ctx context.Context, req *models.CoachingRequest) *models.OrchestrationResponse {
	if m.processFunc != nil {
		return m.processFunc(ctx, req)
	}
	return &models.OrchestrationResponse{RequestID: req.ID, Success: true, Content: "Do 3 sets of squats"}
}

func (m *mockCoach) ProcessBatch(ctx context.Context, reqs []*models.CoachingRequest) []*models.OrchestrationResponse {
	m.batchCalls++
	out := make([]*models.OrchestrationResponse, len(reqs))
	for i, req := range reqs {
		out[i] = m.ProcessRequest(ctx, req)
	}
	return out
}

func newCoachRouter(c Coach) *mux.Router {
	r := mux.NewRouter()
	NewCoachHandler(c).RegisterRoutes(r.PathPrefix("/api/v1/coach").Subrouter())
	return r
}

func TestCoachHandler_Coach(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       any
		resp       *models.OrchestrationResponse
		wantStatus int
		wantCalled bool
	}{
		{
			name:       "success",
			body:       models.CoachingRequest{UserID: "u1", Type: models.RequestTrainingGuidance, Input: models.RequestInput{Text: "leg day"}},
			resp:       &models.OrchestrationResponse{Success: true, Content: "Squat"},
			wantStatus: http.StatusOK,
			wantCalled: true,
		},
		{
			name:       "recoverable failure",
			body:       models.CoachingRequest{UserID: "u1", Type: models.RequestTrainingGuidance},
			resp:       &models.OrchestrationResponse{Recoverable: true, Content: "fallback"},
			wantStatus: http.StatusServiceUnavailable,
			wantCalled: true,
		},
		{
			name:       "invalid request",
			body:       models.CoachingRequest{Type: models.RequestTrainingGuidance},
			resp:       &models.OrchestrationResponse{Error: "validation error: UserID: is required"},
			wantStatus: http.StatusBadRequest,
			wantCalled: true,
		},
		{
			name:       "malformed JSON",
			body:       `{"user_id":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			called := false
			c := &mockCoach{processFunc: func(_ context.Context, req *models.CoachingRequest) *models.OrchestrationResponse {
				called = true
				return tt.resp
			}}
			w := httptest.NewRecorder()
			newCoachRouter(c).ServeHTTP(w, newTestRequest(http.MethodPost, "/api/v1/coach", tt.body))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if called != tt.wantCalled {
				t.Errorf("orchestrator called = %v, want %v", called, tt.wantCalled)
			}
			if tt.resp != nil {
				var env struct {
					Data models.OrchestrationResponse `json:"data"`
				}
				if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
					t.Fatal(err)
				}
				if env.Data.Content != tt.resp.Content {
					t.Errorf("content = %q, want %q", env.Data.Content, tt.resp.Content)
				}
			}
		})
	}
}

func TestCoachHandler_Batch(t *testing.T) {
	t.Parallel()

	makeBatch := func(n int) BatchRequest {
		b := BatchRequest{}
		for i := 0; i < n; i++ {
			b.Requests = append(b.Requests, &models.CoachingRequest{ID: fmt.Sprintf("r%d", i), UserID: "u1", Type: models.RequestMotivation})
		}
		return b
	}

	tests := []struct {
		name          string
		body          BatchRequest
		wantStatus    int
		wantSucceeded int
		wantFailed    int
	}{
		{name: "mixed results", body: makeBatch(4), wantStatus: http.StatusOK, wantSucceeded: 2, wantFailed: 2},
		{name: "empty", body: BatchRequest{}, wantStatus: http.StatusBadRequest},
		{name: "too large", body: makeBatch(MaxBatchSize + 1), wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := &mockCoach{processFunc: func(_ context.Context, req *models.CoachingRequest) *models.OrchestrationResponse {
				ok := req.ID == "r0" || req.ID == "r2"
				return &models.OrchestrationResponse{RequestID: req.ID, Success: ok}
			}}
			w := httptest.NewRecorder()
			newCoachRouter(c).ServeHTTP(w, newTestRequest(http.MethodPost, "/api/v1/coach/batch", tt.body))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				if c.batchCalls != 0 {
					t.Error("rejected batch must not reach the orchestrator")
				}
				return
			}
			var env struct {
				Data BatchResponse `json:"data"`
			}
			if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
				t.Fatal(err)
			}
			if env.Data.Succeeded != tt.wantSucceeded || env.Data.Failed != tt.wantFailed {
				t.Errorf("succeeded=%d failed=%d", env.Data.Succeeded, env.Data.Failed)
			}
			for i, resp := range env.Data.Responses {
				if resp.RequestID != fmt.Sprintf("r%d", i) {
					t.Errorf("responses[%d].RequestID = %s, order not kept", i, resp.RequestID)
				}
			}
		})
	}
}

func TestCoachHandler_CoachUsesRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		bodyID string
		want   string
	}{
		{name: "assigned from context", want: "req-123"},
		{name: "client id kept", bodyID: "client-1", want: "client-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got string
			c := &mockCoach{processFunc: func(_ context.Context, req *models.CoachingRequest) *models.OrchestrationResponse {
				got = req.ID
				return &models.OrchestrationResponse{RequestID: req.ID, Success: true}
			}}
			body := models.CoachingRequest{ID: tt.bodyID, UserID: "u1", Type: models.RequestMotivation}
			r := newTestRequest(http.MethodPost, "/api/v1/coach", body)
			r = r.WithContext(request.WithID(r.Context(), "req-123"))
			newCoachRouter(c).ServeHTTP(httptest.NewRecorder(), r)

			if got != tt.want {
				t.Errorf("request ID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCoachHandler_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	newCoachRouter(&mockCoach{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/coach", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestParseTimeRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		query   string
		wantNil bool
		wantErr bool
	}{
		{name: "none", wantNil: true},
		{name: "start only", query: "?start=2026-01-01T00:00:00Z"},
		{name: "both", query: "?start=2026-01-01T00:00:00Z&end=2026-02-01T00:00:00Z"},
		{name: "bad start", query: "?start=yesterday", wantErr: true},
		{name: "bad end", query: "?end=2026-13-01", wantErr: true},
		{name: "end before start", query: "?start=2026-02-01T00:00:00Z&end=2026-01-01T00:00:00Z", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr, err := parseTimeRange(httptest.NewRequest(http.MethodGet, "/"+tt.query, nil))
			if tt.wantErr != (err != nil) {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tt.wantNil != (tr == nil) {
				t.Errorf("range = %+v, wantNil %v", tr, tt.wantNil)
			}
		})
	}
}
