// Package router selects, executes and monitors AI backends. It owns the
// service registry, the response cache and per-service health windows.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/benvon/smart-coach/internal/services/ai"
	"github.com/benvon/smart-coach/internal/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBudget is the per-request cost budget in USD when none is given
const DefaultBudget = 0.01

// Scoring weights
const (
	weightCapability  = 0.4
	weightPerformance = 0.3
	weightCost        = 0.2
	weightReliability = 0.1

	minCostScore = 0.1
)

// Request is one prompt to route to a backend
type Request struct {
	ID            string
	Type          models.RequestType
	Prompt        string
	SystemMessage string
	Context       *models.UserContext
	// Budget overrides DefaultBudget when set
	Budget *float64
	// PreferredService is chosen when it is healthy
	PreferredService string
	// Capabilities overrides inference when non-empty
	Capabilities []string
}

// Response is the outcome of routing a request
type Response struct {
	RequestID   string        `json:"request_id,omitempty"`
	Success     bool          `json:"success"`
	Content     string        `json:"content"`
	ServiceName string        `json:"service_name,omitempty"`
	TokensUsed  int           `json:"tokens_used"`
	Cost        float64       `json:"cost"`
	Confidence  float64       `json:"confidence"`
	Latency     time.Duration `json:"latency"`
	CacheHit    bool          `json:"cache_hit"`
	Error       string        `json:"error,omitempty"`
	Recoverable bool          `json:"recoverable,omitempty"`
	Attempted   []string      `json:"attempted,omitempty"`
}

// ServiceScore is the weighted selection score of one service
type ServiceScore struct {
	Service     string  `json:"service"`
	Total       float64 `json:"total"`
	Capability  float64 `json:"capability"`
	Performance float64 `json:"performance"`
	Cost        float64 `json:"cost"`
	Reliability float64 `json:"reliability"`
}

type registeredService struct {
	config  models.AIServiceConfig
	backend ai.Backend
	health  *healthTracker
}

// Router is the constructor-scoped service registry and dispatcher
type Router struct {
	mu       sync.RWMutex
	services map[string]*registeredService

	cache         ResponseCache
	cacheTTL      time.Duration
	backends      *ai.BackendRegistry
	infer         CapabilityInferrer
	defaultBudget float64
	cooldown      time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

// Option configures a Router
type Option func(*Router)

// WithCache replaces the in-memory response cache
func WithCache(c ResponseCache) Option {
	return func(r *Router) {
		r.cache = c
	}
}

// WithCacheTTL sets how long cached responses are reused
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Router) {
		if ttl > 0 {
			r.cacheTTL = ttl
		}
	}
}

// WithBackendRegistry sets the factory registry used by Register
func WithBackendRegistry(reg *ai.BackendRegistry) Option {
	return func(r *Router) {
		r.backends = reg
	}
}

// WithCapabilityInferrer replaces InferCapabilities
func WithCapabilityInferrer(fn CapabilityInferrer) Option {
	return func(r *Router) {
		r.infer = fn
	}
}

// WithDefaultBudget sets the cost budget used when a request carries none
func WithDefaultBudget(usd float64) Option {
	return func(r *Router) {
		if usd > 0 {
			r.defaultBudget = usd
		}
	}
}

// WithHealthCooldown sets how long execution samples count toward status
func WithHealthCooldown(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.cooldown = d
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// New creates a Router with an in-memory cache and the built-in backend kinds
func New(logger *zap.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		services:      make(map[string]*registeredService),
		cacheTTL:      DefaultCacheTTL,
		infer:         InferCapabilities,
		defaultBudget: DefaultBudget,
		cooldown:      DefaultHealthCooldown,
		now:           time.Now,
		logger:        logger.Named("router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewMemoryCache(DefaultCacheMaxEntries)
	}
	if r.backends == nil {
		r.backends = ai.NewBackendRegistry(r.logger)
	}
	return r
}

// Register validates cfg, builds its backend from the kind registry and adds it
func (r *Router) Register(cfg models.AIServiceConfig) error {
	if err := validateConfig(&cfg); err != nil {
		return err
	}
	backend, err := r.backends.Build(cfg)
	if err != nil {
		return fmt.Errorf("failed to build backend for %s: %w", cfg.Name, err)
	}
	return r.RegisterBackend(cfg, backend)
}

// RegisterBackend adds a service with an already constructed backend
func (r *Router) RegisterBackend(cfg models.AIServiceConfig, backend ai.Backend) error {
	if err := validateConfig(&cfg); err != nil {
		return err
	}
	if backend == nil {
		return models.NewValidationError("backend", "is required")
	}
	if cfg.Status == "" {
		cfg.Status = models.ServiceHealthy
	}

	r.mu.Lock()
	r.services[cfg.Name] = &registeredService{
		config:  cloneConfig(cfg),
		backend: backend,
		health:  newHealthTracker(),
	}
	r.mu.Unlock()

	r.logger.Info("service_registered",
		zap.String("service", cfg.Name),
		zap.String("kind", cfg.Kind),
		zap.Int("capabilities", len(cfg.Capabilities)),
	)
	return nil
}

func validateConfig(cfg *models.AIServiceConfig) error {
	if cfg.Name == "" {
		return models.NewValidationError("Name", "is required")
	}
	if len(cfg.Capabilities) == 0 {
		return models.NewValidationError("Capabilities", "must declare at least one capability")
	}
	return validation.Struct(cfg)
}

// Remove unregisters a service and closes its backend when it is an io.Closer.
// The service is gone even when Close fails.
func (r *Router) Remove(name string) error {
	r.mu.Lock()
	svc, ok := r.services[name]
	if ok {
		delete(r.services, name)
	}
	r.mu.Unlock()
	if !ok {
		return models.NewNotFoundError("service", name)
	}
	r.logger.Info("service_removed", zap.String("service", name))

	if closer, ok := svc.backend.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			r.logger.Warn("service_backend_close_failed", zap.String("service", name), zap.Error(err))
			return fmt.Errorf("failed to close backend %s: %w", name, err)
		}
	}
	return nil
}

// UpdateConfig applies a partial update. Setting Status also clears the
// service's health window so an operator can bring a down service back.
func (r *Router) UpdateConfig(name string, update models.ServiceConfigUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.services[name]
	if !ok {
		return models.NewNotFoundError("service", name)
	}
	cfg := cloneConfig(svc.config)
	if update.Capabilities != nil {
		cfg.Capabilities = append([]models.Capability(nil), update.Capabilities...)
	}
	if update.Reliability != nil {
		cfg.Reliability = *update.Reliability
	}
	if update.CostPerToken != nil {
		cfg.CostPerToken = *update.CostPerToken
	}
	if update.AvgLatency != nil {
		cfg.AvgLatency = *update.AvgLatency
	}
	if update.Fallbacks != nil {
		cfg.Fallbacks = append([]string(nil), update.Fallbacks...)
	}
	if update.Status != nil {
		cfg.Status = *update.Status
	}
	if err := validateConfig(&cfg); err != nil {
		return err
	}
	svc.config = cfg
	if update.Status != nil {
		svc.health.reset()
	}
	r.logger.Info("service_config_updated", zap.String("service", name))
	return nil
}

// ServiceNames returns the registered service names in sorted order
func (r *Router) ServiceNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Services returns a copy of every registered configuration with its live status
func (r *Router) Services() []models.AIServiceConfig {
	names := r.ServiceNames()
	out := make([]models.AIServiceConfig, 0, len(names))
	for _, name := range names {
		svc, ok := r.lookup(name)
		if !ok {
			continue
		}
		cfg := cloneConfig(svc.config)
		cfg.Status = r.effectiveStatus(svc)
		out = append(out, cfg)
	}
	return out
}

// Config returns a copy of one service's configuration with its live status
func (r *Router) Config(name string) (models.AIServiceConfig, error) {
	svc, ok := r.lookup(name)
	if !ok {
		return models.AIServiceConfig{}, models.NewNotFoundError("service", name)
	}
	cfg := cloneConfig(svc.config)
	cfg.Status = r.effectiveStatus(svc)
	return cfg, nil
}

// Health returns the status view of a service
func (r *Router) Health(name string) (models.ServiceHealth, error) {
	svc, ok := r.lookup(name)
	if !ok {
		return models.ServiceHealth{}, models.NewNotFoundError("service", name)
	}
	st := r.statusWindow(svc)
	return models.ServiceHealth{
		Service:     name,
		Status:      worseStatus(svc.config.Status, statusFor(st)),
		ErrorRate:   st.errorRate,
		AvgLatency:  st.avgLatency,
		SampleCount: st.count,
		LastChecked: r.now(),
	}, nil
}

// Metrics aggregates the full sample window of a service
func (r *Router) Metrics(name string) (models.ServiceMetrics, error) {
	svc, ok := r.lookup(name)
	if !ok {
		return models.ServiceMetrics{}, models.NewNotFoundError("service", name)
	}
	st := summarize(svc.health.recent(HealthWindow))
	return models.ServiceMetrics{
		Service:       name,
		TotalRequests: st.count,
		SuccessCount:  st.count - st.errors,
		ErrorCount:    st.errors,
		ErrorRate:     st.errorRate,
		AvgLatency:    st.avgLatency,
		TotalCost:     st.cost,
		TotalTokens:   st.tokens,
		LastUpdated:   st.lastAt,
	}, nil
}

// lookup returns a copy of the named service; the health tracker is shared
func (r *Router) lookup(name string) (*registeredService, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	if !ok {
		return nil, false
	}
	cp := *svc
	return &cp, true
}

// snapshot returns copies of the registered services sorted by name
func (r *Router) snapshot() []*registeredService {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*registeredService, 0, len(r.services))
	for _, svc := range r.services {
		cp := *svc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].config.Name < out[j].config.Name })
	return out
}

// statusWindow summarizes the newest samples still inside the cooldown
func (r *Router) statusWindow(svc *registeredService) windowStats {
	return summarize(freshSamples(svc.health.recent(StatusWindow), r.now().Add(-r.cooldown)))
}

func (r *Router) effectiveStatus(svc *registeredService) models.ServiceStatus {
	return worseStatus(svc.config.Status, statusFor(r.statusWindow(svc)))
}

// SelectOptimalService scores every healthy service and returns the best.
// A healthy preferred service wins outright. ErrNoHealthyServices is returned
// only when no registered service is healthy.
func (r *Router) SelectOptimalService(req Request) (*ServiceScore, error) {
	ranked := r.rankHealthy(req)
	if len(ranked) == 0 {
		return nil, models.ErrNoHealthyServices
	}
	if req.PreferredService != "" {
		for i := range ranked {
			if ranked[i].Service == req.PreferredService {
				return &ranked[i], nil
			}
		}
	}
	return &ranked[0], nil
}

// rankHealthy scores the healthy services, best first, ties broken by name
func (r *Router) rankHealthy(req Request) []ServiceScore {
	required := req.Capabilities
	if len(required) == 0 {
		required = r.infer(req.Prompt, req.Context)
	}
	budget := r.defaultBudget
	if req.Budget != nil && *req.Budget > 0 {
		budget = *req.Budget
	}
	maxLatency := ResponseTimeBudget(req.Context)
	tokens := EstimateTokens(req.Prompt)

	var ranked []ServiceScore
	for _, svc := range r.snapshot() {
		window := r.statusWindow(svc)
		if worseStatus(svc.config.Status, statusFor(window)) != models.ServiceHealthy {
			continue
		}
		ranked = append(ranked, scoreService(svc.config, window, required, budget, maxLatency, tokens))
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		return ranked[i].Service < ranked[j].Service
	})
	return ranked
}

func scoreService(cfg models.AIServiceConfig, window windowStats, required []string, budget float64, maxLatency time.Duration, tokens int) ServiceScore {
	s := ServiceScore{Service: cfg.Name, Reliability: cfg.Reliability}

	if len(required) > 0 {
		matched := 0
		for _, c := range required {
			if cfg.HasCapability(c) {
				matched++
			}
		}
		s.Capability = float64(matched) / float64(len(required))
	}

	latency := cfg.AvgLatency
	if window.count > 0 {
		latency = window.avgLatency
	}
	s.Performance = 1.0
	if latency > maxLatency {
		s.Performance = 0.5
	}
	s.Performance *= 1 - window.errorRate

	estimated := cfg.CostPerToken * float64(tokens)
	s.Cost = 1.0
	if estimated > budget {
		s.Cost = budget / estimated
		if s.Cost < minCostScore {
			s.Cost = minCostScore
		}
	}

	s.Total = weightCapability*s.Capability +
		weightPerformance*s.Performance +
		weightCost*s.Cost +
		weightReliability*s.Reliability
	return s
}

// Route answers req from the cache when a fresh entry exists, otherwise
// executes it on the best service and its fallback chain. Execution failures
// are reported as an unsuccessful, recoverable Response; the error return is
// reserved for invalid requests.
func (r *Router) Route(ctx context.Context, req Request) (*Response, error) {
	if req.Prompt == "" {
		return nil, models.NewValidationError("Prompt", "is required")
	}

	key := CacheKey(req.Prompt, req.Context)
	if cached := r.cached(ctx, key); cached != nil {
		cached.RequestID = req.ID
		return cached, nil
	}

	sel, err := r.SelectOptimalService(req)
	if err != nil {
		r.logger.Warn("service_selection_failed", zap.String("request_id", req.ID), zap.Error(err))
		return r.failureResponse(req, err), nil
	}
	r.logger.Debug("service_selected",
		zap.String("request_id", req.ID),
		zap.String("service", sel.Service),
		zap.Float64("score", sel.Total),
	)

	resp, err := r.ExecuteWithFallback(ctx, req, r.fallbackChain(req, sel.Service))
	if err != nil {
		r.logger.Error("all_services_failed", zap.String("request_id", req.ID), zap.Error(err))
		return r.failureResponse(req, err), nil
	}

	if err := r.cache.Set(ctx, key, &CachedResponse{Response: *resp, StoredAt: r.now()}); err != nil {
		r.logger.Warn("cache_store_failed", zap.Error(err))
	}
	return resp, nil
}

func (r *Router) cached(ctx context.Context, key string) *Response {
	entry, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("cache_lookup_failed", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	if r.now().Sub(entry.StoredAt) >= r.cacheTTL {
		if err := r.cache.Delete(ctx, key); err != nil {
			r.logger.Warn("cache_delete_failed", zap.Error(err))
		}
		return nil
	}
	resp := entry.Response
	resp.CacheHit = true
	r.logger.Debug("route_cache_hit", zap.String("service", resp.ServiceName))
	return &resp
}

// fallbackChain is the primary, its configured fallbacks, then the remaining
// healthy services by score
func (r *Router) fallbackChain(req Request, primary string) []string {
	chain := []string{primary}
	seen := map[string]bool{primary: true}
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			chain = append(chain, name)
		}
	}
	if svc, ok := r.lookup(primary); ok {
		for _, fb := range svc.config.Fallbacks {
			add(fb)
		}
	}
	for _, s := range r.rankHealthy(req) {
		add(s.Service)
	}
	return chain
}

// ExecuteWithFallback tries each named service in order, skipping services
// that are unknown or not healthy. The first success wins; exhausting the list
// returns an AggregateFailure.
func (r *Router) ExecuteWithFallback(ctx context.Context, req Request, services []string) (*Response, error) {
	failure := &models.AggregateFailure{Recoverable: true}

	for _, name := range services {
		svc, ok := r.lookup(name)
		if !ok {
			failure.Errors = append(failure.Errors, models.NewNotFoundError("service", name))
			continue
		}
		if status := r.effectiveStatus(svc); status != models.ServiceHealthy {
			r.logger.Debug("service_skipped",
				zap.String("service", name),
				zap.String("status", string(status)),
			)
			continue
		}
		if err := ctx.Err(); err != nil {
			failure.Errors = append(failure.Errors, err)
			break
		}

		failure.Attempted = append(failure.Attempted, name)
		resp, err := r.execute(ctx, svc, req)
		if err != nil {
			failure.Errors = append(failure.Errors, err)
			continue
		}
		resp.Attempted = append([]string(nil), failure.Attempted...)
		return resp, nil
	}

	if len(failure.Errors) == 0 {
		failure.Errors = append(failure.Errors, models.ErrNoHealthyServices)
	}
	return nil, failure
}

// execute runs one backend call and records a health sample
func (r *Router) execute(ctx context.Context, svc *registeredService, req Request) (*Response, error) {
	name := svc.config.Name
	start := r.now()
	result, err := svc.backend.Execute(ctx, req.Prompt, req.SystemMessage)
	latency := r.now().Sub(start)
	if err == nil && result == nil {
		err = errors.New("backend returned no result")
	}

	sample := models.ExecutionSample{Latency: latency, Success: err == nil, At: r.now()}
	if err == nil {
		sample.Cost = result.Cost
		sample.TokensUsed = result.TokensUsed
	}
	svc.health.record(sample)

	if err != nil {
		r.logger.Warn("service_execution_failed",
			zap.String("service", name),
			zap.String("request_id", req.ID),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
		return nil, &models.ServiceExecutionError{Service: name, Err: err}
	}

	return &Response{
		RequestID:   req.ID,
		Success:     true,
		Content:     result.Content,
		ServiceName: name,
		TokensUsed:  result.TokensUsed,
		Cost:        result.Cost,
		Confidence:  result.Confidence,
		Latency:     latency,
	}, nil
}

// ExecuteParallel routes every request concurrently. A failing or panicking
// request yields an unsuccessful Response in its slot; the batch never fails.
func (r *Router) ExecuteParallel(ctx context.Context, reqs []Request) []*Response {
	out := make([]*Response, len(reqs))
	var g errgroup.Group
	for i := range reqs {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					r.logger.Error("parallel_request_panic", zap.String("request_id", reqs[i].ID), zap.Any("panic", p))
					out[i] = r.failureResponse(reqs[i], fmt.Errorf("panic: %v", p))
				}
			}()
			resp, err := r.Route(ctx, reqs[i])
			if err != nil {
				resp = r.failureResponse(reqs[i], err)
			}
			out[i] = resp
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Router) failureResponse(req Request, err error) *Response {
	resp := &Response{
		RequestID:   req.ID,
		Success:     false,
		Content:     FallbackContent(req.Type),
		Error:       err.Error(),
		Recoverable: true,
	}
	var agg *models.AggregateFailure
	if errors.As(err, &agg) {
		resp.Attempted = append([]string(nil), agg.Attempted...)
		resp.Recoverable = agg.Recoverable
	}
	return resp
}

// FallbackContent is the canned message returned when no service could answer
func FallbackContent(rt models.RequestType) string {
	switch rt {
	case models.RequestTrainingGuidance:
		return "I can't build a detailed plan right now. Try a 20-minute session: a 5-minute warm-up, three rounds of squats, push-ups and planks, then stretch."
	case models.RequestNutritionAdvice:
		return "I can't reach the nutrition planner right now. Aim for a balanced plate: half vegetables, a quarter protein, a quarter whole grains, and plenty of water."
	case models.RequestMotivation:
		return "Every session counts, even a short one. Pick one small thing you can do today and start there."
	case models.RequestProgressAnalysis:
		return "I can't analyze your progress right now. Keep logging your workouts and measurements and I'll review them shortly."
	case models.RequestDataImport:
		return "Your data couldn't be processed right now. Please try the import again in a few minutes."
	default:
		return "I'm having trouble generating a response right now. Please try again shortly."
	}
}

func cloneConfig(cfg models.AIServiceConfig) models.AIServiceConfig {
	cp := cfg
	cp.Capabilities = append([]models.Capability(nil), cfg.Capabilities...)
	cp.Fallbacks = append([]string(nil), cfg.Fallbacks...)
	if cfg.Settings != nil {
		cp.Settings = make(map[string]string, len(cfg.Settings))
		for k, v := range cfg.Settings {
			cp.Settings[k] = v
		}
	}
	return cp
}
