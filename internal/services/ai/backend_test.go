package ai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benvon/smart-coach/internal/models"
	"go.uber.org/zap"
)

func TestBackendRegistry_Build(t *testing.T) {
	t.Parallel()

	r := NewBackendRegistry(zap.NewNop())

	tests := []struct {
		name     string
		cfg      models.AIServiceConfig
		wantType string
		wantErr  bool
	}{
		{name: "simulated", cfg: models.AIServiceConfig{Name: "sim", Kind: KindSimulated}, wantType: "*ai.SimulatedBackend"},
		{name: "unknown kind falls back", cfg: models.AIServiceConfig{Name: "mystery", Kind: "claude"}, wantType: "*ai.SimulatedBackend"},
		{
			name:     "openai",
			cfg:      models.AIServiceConfig{Name: "gpt", Kind: KindOpenAI, Settings: map[string]string{"api_key": "sk-test"}},
			wantType: "*ai.OpenAIBackend",
		},
		{name: "openai without key", cfg: models.AIServiceConfig{Name: "gpt", Kind: KindOpenAI}, wantErr: true},
		{
			name:    "bad simulated latency",
			cfg:     models.AIServiceConfig{Name: "sim", Kind: KindSimulated, Settings: map[string]string{"latency": "soon"}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := r.Build(tt.cfg)
			if tt.wantErr {
				if !models.IsValidationError(err) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			var got string
			switch b.(type) {
			case *SimulatedBackend:
				got = "*ai.SimulatedBackend"
			case *OpenAIBackend:
				got = "*ai.OpenAIBackend"
			}
			if got != tt.wantType {
				t.Errorf("Build() type = %s, want %s", got, tt.wantType)
			}
		})
	}
}

func TestBackendRegistry_CustomKind(t *testing.T) {
	t.Parallel()

	r := NewBackendRegistry(nil)
	r.Register("echo", func(cfg models.AIServiceConfig, _ *zap.Logger) (Backend, error) {
		return BackendFunc(func(ctx context.Context, prompt, _ string) (*Result, error) {
			return &Result{Content: prompt}, nil
		}), nil
	})
	if got := strings.Join(r.Kinds(), ","); got != "echo,openai,simulated" {
		t.Errorf("Kinds() = %s", got)
	}
	b, err := r.Build(models.AIServiceConfig{Name: "e", Kind: "echo"})
	if err != nil {
		t.Fatal(err)
	}
	res, _ := b.Execute(context.Background(), "ping", "")
	if res.Content != "ping" {
		t.Errorf("Content = %q, want ping", res.Content)
	}
}

func TestSimulatedBackend(t *testing.T) {
	t.Parallel()

	b := &SimulatedBackend{Name: "sim", CostPerToken: 0.001, FailFirst: 1}

	if _, err := b.Execute(context.Background(), "Plan a workout.", ""); !errors.Is(err, ErrSimulatedFailure) {
		t.Fatalf("first call error = %v, want ErrSimulatedFailure", err)
	}
	res, err := b.Execute(context.Background(), "Plan a workout. Then more.", "sys")
	if err != nil {
		t.Fatalf("second call error = %v", err)
	}
	if !strings.Contains(res.Content, "Focus: Plan a workout") {
		t.Errorf("Content = %q", res.Content)
	}
	if res.TokensUsed <= 0 || res.Cost != float64(res.TokensUsed)*0.001 {
		t.Errorf("tokens=%d cost=%v", res.TokensUsed, res.Cost)
	}
	if b.Calls() != 2 {
		t.Errorf("Calls() = %d, want 2", b.Calls())
	}
}

func TestSimulatedBackend_RespectsContext(t *testing.T) {
	t.Parallel()

	b := &SimulatedBackend{Name: "slow", Latency: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Execute(ctx, "x", ""); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestOpenAIBackend_Execute(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "Do 3 rounds of squats."},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 40, "completion_tokens": 10, "total_tokens": 50}
		}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend(OpenAIOptions{Name: "gpt", APIKey: "sk-test", BaseURL: srv.URL, CostPerToken: 0.0001}, zap.NewNop())
	res, err := b.Execute(context.Background(), "plan", "")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Content != "Do 3 rounds of squats." || res.TokensUsed != 50 || res.Confidence != 0.9 {
		t.Errorf("unexpected result %+v", res)
	}
	if diff := res.Cost - 0.005; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("Cost = %v, want 0.005", res.Cost)
	}
}

func TestGetRetryDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		attempt int
		want    time.Duration
	}{
		{name: "generic first", err: errors.New("boom"), attempt: 0, want: 5 * time.Second},
		{name: "generic capped", err: errors.New("boom"), attempt: 9, want: 5 * time.Minute},
		{name: "rate limit", err: &APIError{StatusCode: 429}, attempt: 1, want: 2 * time.Minute},
		{name: "quota", err: &APIError{StatusCode: 429, IsPermanent: true}, attempt: 0, want: time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := GetRetryDelay(tt.err, tt.attempt); got != tt.want {
				t.Errorf("GetRetryDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSanitizePrompt(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", MaxPreviewLength+10)
	if got := SanitizePrompt(long, false); len(got) != MaxPreviewLength+3 {
		t.Errorf("len = %d, want %d", len(got), MaxPreviewLength+3)
	}
	if got := SanitizePrompt("hi\x1b[31m", false); got != "hi[31m" {
		t.Errorf("SanitizePrompt() = %q", got)
	}
}
