package ai

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/benvon/smart-coach/internal/models"
	"go.uber.org/zap"
)

// ErrSimulatedFailure is returned by a SimulatedBackend configured to fail
var ErrSimulatedFailure = errors.New("simulated backend failure")

// SimulatedBackend is a deterministic stand-in for a real AI service. It is
// used for local development, the default for unknown kinds, and tests.
type SimulatedBackend struct {
	Name         string
	Latency      time.Duration
	CostPerToken float64
	Confidence   float64
	// FailFirst makes the first N calls fail; negative fails every call
	FailFirst int64

	calls atomic.Int64
}

// NewSimulatedBackendFromConfig is the BackendFactory for the simulated kind.
// Settings read: latency (duration), fail_first (int), fail (bool).
func NewSimulatedBackendFromConfig(cfg models.AIServiceConfig, _ *zap.Logger) (Backend, error) {
	b := &SimulatedBackend{
		Name:         cfg.Name,
		CostPerToken: cfg.CostPerToken,
		Confidence:   0.8,
	}
	if raw := cfg.Settings["latency"]; raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, models.NewValidationError("Settings.latency", err.Error())
		}
		b.Latency = d
	}
	if raw := cfg.Settings["fail_first"]; raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, models.NewValidationError("Settings.fail_first", err.Error())
		}
		b.FailFirst = n
	}
	if raw := cfg.Settings["fail"]; raw != "" {
		fail, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, models.NewValidationError("Settings.fail", err.Error())
		}
		if fail {
			b.FailFirst = -1
		}
	}
	return b, nil
}

// Calls returns how many times Execute has been invoked
func (b *SimulatedBackend) Calls() int64 {
	return b.calls.Load()
}

// Execute implements Backend
func (b *SimulatedBackend) Execute(ctx context.Context, prompt, systemMessage string) (*Result, error) {
	n := b.calls.Add(1)

	if b.Latency > 0 {
		timer := time.NewTimer(b.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if b.FailFirst < 0 || n <= b.FailFirst {
		return nil, fmt.Errorf("%s: %w", b.Name, ErrSimulatedFailure)
	}

	content := fmt.Sprintf("[%s] Here is your coaching plan. %s", b.Name, summarizePrompt(prompt))
	tokens := (len(prompt)+len(systemMessage))/4 + len(content)/4
	confidence := b.Confidence
	if confidence == 0 {
		confidence = 0.8
	}
	return &Result{
		Content:    content,
		TokensUsed: tokens,
		Cost:       float64(tokens) * b.CostPerToken,
		Confidence: confidence,
		Model:      "simulated",
	}, nil
}

// summarizePrompt echoes the first sentence of the prompt, bounded
func summarizePrompt(prompt string) string {
	line := strings.TrimSpace(prompt)
	if i := strings.IndexAny(line, ".\n"); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimPrefix(line, "## Task")
	return "Focus: " + TruncateString(strings.TrimSpace(line), 160)
}
