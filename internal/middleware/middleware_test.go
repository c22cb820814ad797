package middleware

import (
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
	}{
		{name: "GET ignored", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "json", method: http.MethodPost, contentType: "application/json", body: "{}", wantStatus: http.StatusOK},
		{name: "json with charset", method: http.MethodPatch, contentType: "application/json; charset=utf-8", body: "{}", wantStatus: http.StatusOK},
		{name: "bodyless POST", method: http.MethodPost, wantStatus: http.StatusOK},
		{name: "missing with body", method: http.MethodPut, body: "{}", wantStatus: http.StatusBadRequest},
		{name: "form", method: http.MethodPost, contentType: "application/x-www-form-urlencoded", body: "a=b", wantStatus: http.StatusUnsupportedMediaType},
		{name: "json lookalike", method: http.MethodPost, contentType: "application/jsonp", body: "{}", wantStatus: http.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, "/api/v1/coach", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			ContentType(okHandler).ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestMaxRequestSize(t *testing.T) {
	t.Parallel()

	readAll := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		for {
			_, err := r.Body.Read(buf)
			if err != nil {
				if errors.Is(err, io.EOF) {
					w.WriteHeader(http.StatusOK)
				} else {
					w.WriteHeader(http.StatusRequestEntityTooLarge)
				}
				return
			}
		}
	})

	tests := []struct {
		name       string
		body       string
		hideLength bool
		wantStatus int
	}{
		{name: "within limit", body: strings.Repeat("a", 10), wantStatus: http.StatusOK},
		{name: "declared too large", body: strings.Repeat("a", 100), wantStatus: http.StatusRequestEntityTooLarge},
		{name: "streamed too large", body: strings.Repeat("a", 100), hideLength: true, wantStatus: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.hideLength {
				req.ContentLength = -1
			}
			w := httptest.NewRecorder()
			MaxRequestSize(32)(readAll).ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		hsts     bool
		tls      bool
		wantHSTS bool
	}{
		{name: "plain", wantHSTS: false},
		{name: "hsts without tls", hsts: true, wantHSTS: false},
		{name: "hsts with tls", hsts: true, tls: true, wantHSTS: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			w := httptest.NewRecorder()
			SecurityHeaders(tt.hsts)(okHandler).ServeHTTP(w, req)

			for k, v := range securityHeaders {
				if got := w.Header().Get(k); got != v {
					t.Errorf("%s = %q, want %q", k, got, v)
				}
			}
			if got := w.Header().Get("Strict-Transport-Security") != ""; got != tt.wantHSTS {
				t.Errorf("HSTS set = %v, want %v", got, tt.wantHSTS)
			}
		})
	}
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
			w.WriteHeader(http.StatusOK)
		}
	})
	w := httptest.NewRecorder()
	Timeout(10*time.Millisecond)(slow).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Request timed out") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestAudit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    int
		wantEvent string
	}{
		{status: http.StatusOK},
		{status: http.StatusForbidden, wantEvent: "security_event"},
		{status: http.StatusTooManyRequests, wantEvent: "rate_limit_violation"},
		{status: http.StatusRequestEntityTooLarge, wantEvent: "oversized_request"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()
			core, logs := observer.New(zap.WarnLevel)
			h := Audit(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/coach", nil)
			req.Header.Set("X-Forwarded-For", "203.0.113.9")
			h.ServeHTTP(httptest.NewRecorder(), req)

			all := logs.All()
			if tt.wantEvent == "" {
				if len(all) != 0 {
					t.Errorf("logged %v for %d", all, tt.status)
				}
				return
			}
			if len(all) != 1 || all[0].Message != tt.wantEvent {
				t.Fatalf("logged %v, want %s", all, tt.wantEvent)
			}
			if ip := all[0].ContextMap()["ip"]; ip != "203.0.113.9" {
				t.Errorf("ip = %v", ip)
			}
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: []string{defaultOrigin}},
		{in: " , ", want: []string{defaultOrigin}},
		{in: "https://coach.example.com", want: []string{"https://coach.example.com"}},
		{in: "https://a.example, https://b.example ,https://a.example", want: []string{"https://a.example", "https://b.example"}},
	}
	for _, tt := range tests {
		if got := AllowedOrigins(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("AllowedOrigins(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	h := CORS("https://coach.example.com", nil)(okHandler)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
	}{
		{name: "allowed", method: http.MethodGet, origin: "https://coach.example.com", wantOrigin: "https://coach.example.com"},
		{name: "disallowed", method: http.MethodGet, origin: "https://evil.example", wantOrigin: ""},
		{name: "preflight", method: http.MethodOptions, origin: "https://coach.example.com", wantOrigin: "https://coach.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, "/api/v1/coach", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	store, err := NewRateLimitStore(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := RateLimit(store, "lots-per-second"); err == nil {
		t.Error("expected error for malformed rate")
	}

	mw, err := RateLimit(store, "2-M")
	if err != nil {
		t.Fatal(err)
	}
	h := mw(okHandler)

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/coach", nil)
		req.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("198.51.100.1"); code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, code)
		}
	}
	if code := send("198.51.100.1"); code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", code)
	}
	if code := send("198.51.100.2"); code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", code)
	}
}
