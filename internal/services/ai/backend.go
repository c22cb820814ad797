package ai

import (
	"context"
	"sort"
	"sync"

	"github.com/benvon/smart-coach/internal/models"
	"go.uber.org/zap"
)

// Backend kinds with built-in factories
const (
	KindOpenAI    = "openai"
	KindSimulated = "simulated"
)

// Result is what a backend returns for one prompt
type Result struct {
	Content    string  `json:"content"`
	TokensUsed int     `json:"tokens_used"`
	Cost       float64 `json:"cost"`
	Confidence float64 `json:"confidence"`
	Model      string  `json:"model,omitempty"`
}

// Backend is an AI text-generation service
type Backend interface {
	// Execute sends a prompt with an optional system message
	Execute(ctx context.Context, prompt, systemMessage string) (*Result, error)
}

// BackendFunc adapts a function into a Backend
type BackendFunc func(ctx context.Context, prompt, systemMessage string) (*Result, error)

// Execute implements Backend
func (f BackendFunc) Execute(ctx context.Context, prompt, systemMessage string) (*Result, error) {
	return f(ctx, prompt, systemMessage)
}

// BackendFactory builds a backend from a service configuration
type BackendFactory func(cfg models.AIServiceConfig, logger *zap.Logger) (Backend, error)

// BackendRegistry maps service kinds to backend factories. Unknown kinds fall
// back to the simulated backend.
type BackendRegistry struct {
	mu        sync.RWMutex
	factories map[string]BackendFactory
	logger    *zap.Logger
}

// NewBackendRegistry creates a registry with the openai and simulated kinds
func NewBackendRegistry(logger *zap.Logger) *BackendRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &BackendRegistry{
		factories: make(map[string]BackendFactory),
		logger:    logger,
	}
	r.Register(KindOpenAI, NewOpenAIBackendFromConfig)
	r.Register(KindSimulated, NewSimulatedBackendFromConfig)
	return r
}

// Register adds or replaces the factory for kind
func (r *BackendRegistry) Register(kind string, factory BackendFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Kinds returns the registered kinds in sorted order
func (r *BackendRegistry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Build resolves the factory for cfg.Kind and constructs the backend
func (r *BackendRegistry) Build(cfg models.AIServiceConfig) (Backend, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Kind]
	fallback := r.factories[KindSimulated]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("unknown_backend_kind",
			zap.String("service", cfg.Name),
			zap.String("kind", cfg.Kind),
		)
		factory = fallback
		if factory == nil {
			factory = NewSimulatedBackendFromConfig
		}
	}
	return factory(cfg, r.logger)
}
