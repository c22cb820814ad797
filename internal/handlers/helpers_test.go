package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benvon/smart-coach/internal/models"
)

// decodeEnvelope reads the standard success/data/error envelope
func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

// newTestRequest builds a request with body marshalled to JSON
func newTestRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	return httptest.NewRequest(method, path, &buf)
}

func TestRespondJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		data   any
		check  func(t *testing.T, data any)
	}{
		{
			name:   "object",
			status: http.StatusOK,
			data:   map[string]string{"content": "Rest today"},
			check: func(t *testing.T, data any) {
				m, ok := data.(map[string]any)
				if !ok || m["content"] != "Rest today" {
					t.Errorf("data = %v", data)
				}
			},
		},
		{
			name:   "nil data",
			status: http.StatusCreated,
			check: func(t *testing.T, data any) {
				if data != nil {
					t.Errorf("data = %v, want nil", data)
				}
			},
		},
		{
			name:   "array",
			status: http.StatusOK,
			data:   []string{"squat", "bench"},
			check: func(t *testing.T, data any) {
				if a, ok := data.([]any); !ok || len(a) != 2 {
					t.Errorf("data = %v", data)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			respondJSON(w, tt.status, tt.data)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			body := decodeEnvelope(t, w)
			if success, ok := body["success"].(bool); !ok || !success {
				t.Error("Expected success to be true")
			}
			ts, ok := body["timestamp"].(string)
			if !ok {
				t.Fatal("Timestamp not found in response")
			}
			if _, err := time.Parse(time.RFC3339, ts); err != nil {
				t.Errorf("Timestamp %q is not RFC3339: %v", ts, err)
			}
			tt.check(t, body["data"])
		})
	}
}

func TestRespondJSONError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		message     string
		wantMessage string
	}{
		{name: "short message", message: "Invalid input", wantMessage: "Invalid input"},
		{
			name:        "long message truncated",
			message:     strings.Repeat("x", 500),
			wantMessage: strings.Repeat("x", maxErrorMessageLength) + "...",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			respondJSONError(w, http.StatusBadRequest, "Bad Request", tt.message)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d", w.Code)
			}
			body := decodeEnvelope(t, w)
			if success, ok := body["success"].(bool); !ok || success {
				t.Error("Expected success to be false")
			}
			if body["error"] != "Bad Request" {
				t.Errorf("error = %v", body["error"])
			}
			if body["message"] != tt.wantMessage {
				t.Errorf("message = %v, want %s", body["message"], tt.wantMessage)
			}
		})
	}
}

func TestRespondModelError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantLeak   bool
	}{
		{name: "validation", err: models.NewValidationError("UserID", "is required"), wantStatus: http.StatusBadRequest, wantLeak: true},
		{name: "wrapped not found", err: fmt.Errorf("lookup: %w", models.NewNotFoundError("context", "u1")), wantStatus: http.StatusNotFound, wantLeak: true},
		{name: "internal", err: errors.New("pq: connection refused"), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			respondModelError(w, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := decodeEnvelope(t, w)
			msg, _ := body["message"].(string)
			if leaked := strings.Contains(msg, tt.err.Error()); leaked != tt.wantLeak {
				t.Errorf("message = %q, error text exposed = %v", msg, leaked)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	var dst struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(newTestRequest(http.MethodPost, "/", `{"user_id":"u1"}`), &dst); err != nil || dst.UserID != "u1" {
		t.Errorf("decodeJSON() = %v, dst = %+v", err, dst)
	}

	for _, body := range []string{`{"user_id":`, `{"unknown":1}`, ``} {
		err := decodeJSON(newTestRequest(http.MethodPost, "/", body), &dst)
		if !models.IsValidationError(err) {
			t.Errorf("decodeJSON(%q) error = %v, want ValidationError", body, err)
		}
	}
}
