package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benvon/smart-coach/internal/contextstore"
	"github.com/benvon/smart-coach/internal/models"
	"github.com/gorilla/mux"
)

type mockInitializer struct {
	initFunc func(ctx context.Context, userID string) (*models.UserContext, error)
}

var _ UserInitializer = (*mockInitializer)(nil)

func (m *mockInitializer) InitializeUser(ctx context.Context, userID string) (*models.UserContext, error) {
	if m.initFunc != nil {
		return m.initFunc(ctx, userID)
	}
	return &models.UserContext{UserID: userID, SessionID: "s1"}, nil
}

func newContextRouter(store *contextstore.Store, users UserInitializer) *mux.Router {
	r := mux.NewRouter()
	NewContextHandler(store, users).RegisterRoutes(r.PathPrefix("/api/v1/users").Subrouter())
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeContext(t *testing.T, w *httptest.ResponseRecorder) models.UserContext {
	t.Helper()
	var env struct {
		Data models.UserContext `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	return env.Data
}

func TestContextHandler_Lifecycle(t *testing.T) {
	t.Parallel()

	store := contextstore.New(nil)
	r := newContextRouter(store, &mockInitializer{})
	path := "/api/v1/users/u1/context"

	if w := serve(r, httptest.NewRequest(http.MethodGet, path, nil)); w.Code != http.StatusNotFound {
		t.Fatalf("GET before PUT status = %d, want 404", w.Code)
	}
	if w := serve(r, newTestRequest(http.MethodPatch, path, models.ContextUpdate{})); w.Code != http.StatusNotFound {
		t.Fatalf("PATCH before PUT status = %d, want 404", w.Code)
	}

	put := models.UserContext{
		SessionID:      "s1",
		EmotionalState: models.EmotionalState{Mood: models.MoodGood, Energy: models.LevelHigh},
		Environment:    models.Environment{Location: "gym", Equipment: []string{"barbell"}},
	}
	w := serve(r, newTestRequest(http.MethodPut, path, put))
	if w.Code != http.StatusOK {
		t.Fatalf("PUT status = %d: %s", w.Code, w.Body.String())
	}
	if got := decodeContext(t, w); got.UserID != "u1" || got.Timestamp.IsZero() {
		t.Errorf("PUT returned %+v", got)
	}

	mood := models.MoodLow
	w = serve(r, newTestRequest(http.MethodPatch, path, models.ContextUpdate{
		EmotionalState: &models.EmotionalStateUpdate{Mood: &mood},
	}))
	if w.Code != http.StatusOK {
		t.Fatalf("PATCH status = %d: %s", w.Code, w.Body.String())
	}
	got := decodeContext(t, w)
	if got.EmotionalState.Mood != models.MoodLow || got.EmotionalState.Energy != models.LevelHigh {
		t.Errorf("PATCH merged state = %+v", got.EmotionalState)
	}
	if got.Environment.Location != "gym" {
		t.Errorf("PATCH dropped environment: %+v", got.Environment)
	}

	w = serve(r, httptest.NewRequest(http.MethodGet, path+"/history", nil))
	var hist struct {
		Data []models.UserContext `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&hist); err != nil {
		t.Fatal(err)
	}
	if len(hist.Data) != 1 || hist.Data[0].EmotionalState.Mood != models.MoodGood {
		t.Errorf("history = %+v", hist.Data)
	}

	if w := serve(r, httptest.NewRequest(http.MethodDelete, path, nil)); w.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d", w.Code)
	}
	if _, ok := store.GetContext("u1"); ok {
		t.Error("context still present after DELETE")
	}
}

func TestContextHandler_SetContextRejectsInvalid(t *testing.T) {
	t.Parallel()

	r := newContextRouter(contextstore.New(nil), &mockInitializer{})

	tests := []struct {
		name string
		body any
	}{
		{name: "missing session", body: models.UserContext{EmotionalState: models.EmotionalState{Mood: models.MoodGood}}},
		{name: "unknown mood", body: models.UserContext{SessionID: "s", EmotionalState: models.EmotionalState{Mood: "ecstatic"}}},
		{name: "other user", body: models.UserContext{UserID: "u2", SessionID: "s", EmotionalState: models.EmotionalState{Mood: models.MoodGood}}},
		{name: "unknown field", body: `{"session_id":"s","favourite_color":"red"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := serve(r, newTestRequest(http.MethodPut, "/api/v1/users/u1/context", tt.body))
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestContextHandler_Initialize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "ok", wantStatus: http.StatusOK},
		{name: "profile store down", err: errors.New("load profile: timeout"), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var gotUser string
			users := &mockInitializer{initFunc: func(_ context.Context, userID string) (*models.UserContext, error) {
				gotUser = userID
				if tt.err != nil {
					return nil, tt.err
				}
				return &models.UserContext{UserID: userID, SessionID: "s"}, nil
			}}
			w := serve(newContextRouter(contextstore.New(nil), users), httptest.NewRequest(http.MethodPost, "/api/v1/users/athlete-7/initialize", nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if gotUser != "athlete-7" {
				t.Errorf("InitializeUser called with %q", gotUser)
			}
		})
	}
}

func TestContextHandler_UserIDTooLong(t *testing.T) {
	t.Parallel()

	r := newContextRouter(contextstore.New(nil), &mockInitializer{})
	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/users/"+strings.Repeat("a", 200)+"/context", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestContextHandler_AnalysisAndPredictions(t *testing.T) {
	t.Parallel()

	store := contextstore.New(nil)
	r := newContextRouter(store, &mockInitializer{})

	if w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/predictions", nil)); w.Code != http.StatusNotFound {
		t.Errorf("predictions without context status = %d, want 404", w.Code)
	}

	uc := &models.UserContext{
		SessionID: "s1",
		EmotionalState: models.EmotionalState{
			Mood:       models.MoodLow,
			Motivation: models.MotivationLow,
		},
	}
	if err := store.SetContext("u1", uc); err != nil {
		t.Fatal(err)
	}

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/predictions", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("predictions status = %d", w.Code)
	}
	var env struct {
		Data PredictionResponse `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	if env.Data.Readiness <= 0 || env.Data.Readiness >= 1 {
		t.Errorf("readiness = %v", env.Data.Readiness)
	}
	found := false
	for _, n := range env.Data.Prediction.Needs {
		if n.Type == contextstore.NeedMotivationalSupport {
			found = true
		}
	}
	if !found {
		t.Errorf("needs = %+v, want motivational support", env.Data.Prediction.Needs)
	}

	if w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/analysis", nil)); w.Code != http.StatusOK {
		t.Errorf("analysis status = %d", w.Code)
	}
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/analysis?start=bad", nil)); w.Code != http.StatusBadRequest {
		t.Errorf("analysis with bad range status = %d, want 400", w.Code)
	}
}
