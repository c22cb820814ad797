// Package orchestrator answers coaching requests end to end: it loads the
// user's context, picks a processing route, runs extraction, prompt
// generation and AI routing as needed, and feeds the outcome back into the
// learning optimizer.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/benvon/smart-coach/internal/contextstore"
	"github.com/benvon/smart-coach/internal/extraction"
	"github.com/benvon/smart-coach/internal/learning"
	"github.com/benvon/smart-coach/internal/logger"
	"github.com/benvon/smart-coach/internal/models"
	"github.com/benvon/smart-coach/internal/prompts"
	"github.com/benvon/smart-coach/internal/router"
	"github.com/benvon/smart-coach/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Service stage names reported in ResponseMetadata.ServicesUsed
const (
	StageContextAnalysis  = "context_analysis"
	StageDataExtraction   = "data_extraction"
	StagePromptGeneration = "prompt_generation"
	StageAIRouting        = "ai_routing"
)

const (
	insightsPerResponse   = 5
	contextOnlyConfidence = 0.7
)

// Components are the collaborators an Orchestrator drives. Router is
// required; the others are created with defaults when nil.
type Components struct {
	Contexts  *contextstore.Store
	Extractor *extraction.Pipeline
	Prompts   *prompts.Generator
	Router    *router.Router
	Learning  *learning.Optimizer
}

// Orchestrator is the request-level coordinator
type Orchestrator struct {
	contexts  *contextstore.Store
	extractor *extraction.Pipeline
	prompts   *prompts.Generator
	router    *router.Router
	learning  *learning.Optimizer

	profiles         ProfileStore
	events           EventSink
	batchConcurrency int
	now              func() time.Time
	logger           *zap.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithProfileStore sets the store consulted by InitializeUser
func WithProfileStore(ps ProfileStore) Option {
	return func(o *Orchestrator) {
		o.profiles = ps
	}
}

// WithEventSink replaces the in-process learning sink
func WithEventSink(sink EventSink) Option {
	return func(o *Orchestrator) {
		o.events = sink
	}
}

// WithBatchConcurrency bounds how many batch requests run at once; 0 is unbounded
func WithBatchConcurrency(n int) Option {
	return func(o *Orchestrator) {
		o.batchConcurrency = n
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator over c
func New(c Components, log *zap.Logger, opts ...Option) (*Orchestrator, error) {
	if c.Router == nil {
		return nil, models.NewValidationError("Router", "is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		contexts:  c.Contexts,
		extractor: c.Extractor,
		prompts:   c.Prompts,
		router:    c.Router,
		learning:  c.Learning,
		now:       time.Now,
		logger:    log.Named("orchestrator"),
	}
	if o.contexts == nil {
		o.contexts = contextstore.New(log)
	}
	if o.extractor == nil {
		o.extractor = extraction.New(log)
	}
	if o.prompts == nil {
		o.prompts = prompts.New(log)
	}
	if o.learning == nil {
		o.learning = learning.New(log)
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.events == nil {
		o.events = NewInProcessSink(o.learning, log)
	}
	return o, nil
}

// Contexts returns the context store the orchestrator reads from
func (o *Orchestrator) Contexts() *contextstore.Store { return o.contexts }

// Learning returns the optimizer the orchestrator reports to
func (o *Orchestrator) Learning() *learning.Optimizer { return o.learning }

// Router returns the service router
func (o *Orchestrator) Router() *router.Router { return o.router }

// Prompts returns the prompt generator
func (o *Orchestrator) Prompts() *prompts.Generator { return o.prompts }

// Extractor returns the extraction pipeline
func (o *Orchestrator) Extractor() *extraction.Pipeline { return o.extractor }

// run carries the intermediate state of one request
type run struct {
	req       *models.CoachingRequest
	uc        *models.UserContext
	readiness float64
	route     models.Route
	resp      *models.OrchestrationResponse

	templateID string
	service    string
}

func (r *run) used(stage string) {
	for _, s := range r.resp.Metadata.ServicesUsed {
		if s == stage {
			return
		}
	}
	r.resp.Metadata.ServicesUsed = append(r.resp.Metadata.ServicesUsed, stage)
}

// ProcessRequest runs one request through the pipeline. It never returns an
// error: every failure becomes an unsuccessful response carrying fallback
// content for the request type.
func (o *Orchestrator) ProcessRequest(ctx context.Context, req *models.CoachingRequest) (resp *models.OrchestrationResponse) {
	start := o.now()
	if req == nil {
		req = &models.CoachingRequest{}
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Type == "" {
		req.Type = models.RequestGeneral
	}
	r := &run{
		req: req,
		resp: &models.OrchestrationResponse{
			RequestID: req.ID,
			Metadata:  models.ResponseMetadata{ServicesUsed: []string{}},
		},
	}

	defer func() {
		if p := recover(); p != nil {
			o.logger.Error("request_panic",
				zap.String("request_id", req.ID),
				zap.Any("panic", p),
			)
			resp = o.fail(r, fmt.Errorf("internal error: %v", p))
		}
		resp.Metadata.ProcessingTime = o.now().Sub(start)
	}()

	if err := validateRequest(req); err != nil {
		return o.fail(r, err)
	}

	o.loadContext(ctx, r)

	_, span := telemetry.StartStage(ctx, telemetry.StageRoutingDecision, req.ID)
	r.route = DecideRoute(req, r.readiness)
	r.resp.Route = r.route
	span.SetAttributes(attribute.String("coach.route", string(r.route)))
	telemetry.EndStage(span, nil)

	if err := o.execute(ctx, r); err != nil {
		o.logger.Warn("request_failed",
			zap.String("request_id", req.ID),
			zap.String("route", string(r.route)),
			zap.String("error", logger.SanitizeError(err)),
		)
		o.fail(r, err)
	}

	if req.Options.EnableLearning {
		for _, ins := range o.learning.Insights(insightsPerResponse) {
			r.resp.Insights = append(r.resp.Insights, ins.Title)
		}
	}
	if req.Options.EnablePersonalization {
		rec := o.learning.GetPersonalizedRecommendations(req.UserID, r.uc)
		adaptation := rec.Adaptation
		r.resp.Adaptation = &adaptation
	}

	r.resp.FollowUpSuggestions = FollowUpSuggestions(req.Type, r.resp.Data)
	o.markInteraction(r)
	o.recordOutcome(ctx, r)

	o.logger.Info("request_processed",
		zap.String("request_id", req.ID),
		zap.String("user_id", logger.SanitizeUserID(req.UserID)),
		zap.String("type", string(req.Type)),
		zap.String("route", string(r.route)),
		zap.Bool("success", r.resp.Success),
		zap.Strings("services_used", r.resp.Metadata.ServicesUsed),
	)
	return r.resp
}

func validateRequest(req *models.CoachingRequest) error {
	if req.UserID == "" {
		return models.NewValidationError("UserID", "is required")
	}
	if !models.IsValidRequestType(req.Type) {
		return models.NewValidationError("Type", fmt.Sprintf("unknown request type %q", req.Type))
	}
	if !req.Input.HasText() && !req.Input.HasImage() && req.Type == models.RequestDataImport {
		return models.NewValidationError("Input", "data import needs text or an image")
	}
	return nil
}

// loadContext reads the current context and derives the readiness score.
// A caller-supplied readiness overrides the derived one.
func (o *Orchestrator) loadContext(ctx context.Context, r *run) {
	_, span := telemetry.StartStage(ctx, telemetry.StageContextLoad, r.req.ID)
	defer telemetry.EndStage(span, nil)

	uc, ok := o.contexts.GetContext(r.req.UserID)
	if !ok {
		uc = &models.UserContext{UserID: r.req.UserID}
	}
	r.uc = uc
	r.readiness = contextstore.ReadinessScore(uc)
	if rs := r.req.Context.ReadinessScore; rs != nil && !math.IsNaN(*rs) {
		r.readiness = math.Max(0, math.Min(1, *rs))
	}
	r.resp.Metadata.ReadinessScore = r.readiness
	r.used(StageContextAnalysis)
	span.SetAttributes(
		attribute.Bool("coach.context_found", ok),
		attribute.Float64("coach.readiness", r.readiness),
	)
}

func (o *Orchestrator) execute(ctx context.Context, r *run) error {
	switch r.route {
	case models.RouteContextAnalysisOnly:
		o.contextOnly(r)
		return nil
	case models.RouteImageAnalysisFirst:
		data, err := o.extractImage(ctx, r)
		if err != nil {
			return err
		}
		return o.generate(ctx, r, data)
	case models.RouteHybridProcessing:
		data, err := o.extractImage(ctx, r)
		if err != nil {
			// the text alone still carries the request
			o.logger.Warn("hybrid_image_extraction_failed",
				zap.String("request_id", r.req.ID),
				zap.Error(err),
			)
		}
		data = mergeData(data, o.extractText(ctx, r))
		return o.generate(ctx, r, data)
	default:
		var data *models.ExtractedData
		if r.req.Type == models.RequestDataImport && r.req.Input.HasText() {
			data = o.extractText(ctx, r)
		}
		return o.generate(ctx, r, data)
	}
}

// contextOnly answers from the context alone without calling a backend
func (o *Orchestrator) contextOnly(r *run) {
	analysis := o.contexts.AnalyzePatterns(r.req.UserID, nil)
	r.resp.Success = true
	r.resp.Content = ContextOnlyAdvice(r.readiness, r.uc, analysis)
	r.resp.Metadata.Confidence = contextOnlyConfidence
}

func (o *Orchestrator) extractImage(ctx context.Context, r *run) (*models.ExtractedData, error) {
	ctx, span := telemetry.StartStage(ctx, telemetry.StageExtraction, r.req.ID)
	result, err := o.extractor.ExtractFromImage(ctx, r.req.Input.Image, TargetsFor(r.req.Type))
	telemetry.EndStage(span, err)
	r.used(StageDataExtraction)
	if err != nil {
		return nil, fmt.Errorf("image extraction: %w", err)
	}
	if !result.Success {
		o.logger.Warn("image_extraction_incomplete",
			zap.String("request_id", r.req.ID),
			zap.Strings("errors", result.Errors),
		)
	}
	r.resp.Data = result.Data
	return result.Data, nil
}

func (o *Orchestrator) extractText(ctx context.Context, r *run) *models.ExtractedData {
	ctx, span := telemetry.StartStage(ctx, telemetry.StageExtraction, r.req.ID)
	defer telemetry.EndStage(span, nil)
	result := o.extractor.ExtractFromText(ctx, r.req.Input.Text, TargetsFor(r.req.Type))
	r.used(StageDataExtraction)
	if result.Data != nil && result.Data.Count() > 0 {
		r.resp.Data = mergeData(r.resp.Data, result.Data)
		return result.Data
	}
	return nil
}

// generate builds the prompt for the best available service and routes it
func (o *Orchestrator) generate(ctx context.Context, r *run, data *models.ExtractedData) error {
	routeReq := router.Request{
		ID:               r.req.ID,
		Type:             r.req.Type,
		Context:          r.uc,
		Budget:           r.req.Context.Budget,
		PreferredService: r.req.Options.PreferredService,
		Prompt:           userInput(r.req, data),
	}

	target, kind := "", ""
	if sel, err := o.router.SelectOptimalService(routeReq); err == nil {
		target = sel.Service
		if cfg, err := o.router.Config(sel.Service); err == nil {
			kind = cfg.Kind
		}
	}

	pctx, span := telemetry.StartStage(ctx, telemetry.StagePromptGeneration, r.req.ID)
	prompt, err := o.prompts.Generate(pctx, prompts.GenerationRequest{
		Context:       r.uc,
		Category:      prompts.CategoryForRequest(r.req.Type),
		TargetService: target,
		TargetKind:    kind,
		UserInput:     routeReq.Prompt,
		HasImage:      r.req.Input.HasImage(),
	})
	telemetry.EndStage(span, err)
	if err != nil {
		return fmt.Errorf("prompt generation: %w", err)
	}
	r.used(StagePromptGeneration)
	r.templateID = prompt.TemplateID
	r.resp.Metadata.TemplateID = prompt.TemplateID

	routeReq.Prompt = prompt.Prompt
	routeReq.SystemMessage = prompt.SystemMessage
	if routeReq.PreferredService == "" {
		routeReq.PreferredService = target
	}

	actx, span := telemetry.StartStage(ctx, telemetry.StageAIRouting, r.req.ID)
	out, err := o.router.Route(actx, routeReq)
	r.used(StageAIRouting)
	if err != nil {
		telemetry.EndStage(span, err)
		return fmt.Errorf("ai routing: %w", err)
	}
	span.SetAttributes(
		attribute.String("coach.service", out.ServiceName),
		attribute.Bool("coach.cache_hit", out.CacheHit),
	)
	if !out.Success {
		err := errors.New(out.Error)
		telemetry.EndStage(span, err)
		r.resp.Content = out.Content
		r.resp.Error = out.Error
		r.resp.Recoverable = out.Recoverable
		return nil
	}
	telemetry.EndStage(span, nil)

	r.service = out.ServiceName
	r.resp.Success = true
	r.resp.Content = out.Content
	r.resp.Metadata.ServiceName = out.ServiceName
	r.resp.Metadata.CacheHit = out.CacheHit
	r.resp.Metadata.Confidence = out.Confidence
	return nil
}

// userInput is the request text followed by a summary of any extracted data
func userInput(req *models.CoachingRequest, data *models.ExtractedData) string {
	text := strings.TrimSpace(req.Input.Text)
	if text == "" {
		text = defaultQuestion(req.Type)
	}
	if summary := SummarizeData(data); summary != "" {
		text += "\n\nExtracted data: " + summary
	}
	return text
}

func (o *Orchestrator) fail(r *run, err error) *models.OrchestrationResponse {
	r.resp.Success = false
	r.resp.Error = err.Error()
	r.resp.Content = router.FallbackContent(r.req.Type)
	r.resp.Recoverable = !models.IsValidationError(err)
	return r.resp
}

// markInteraction stores the last-interaction marker on an existing context
func (o *Orchestrator) markInteraction(r *run) {
	if _, ok := o.contexts.GetContext(r.req.UserID); !ok {
		return
	}
	marker := &models.Interaction{
		RequestID:   r.req.ID,
		RequestType: r.req.Type,
		Route:       r.route,
		Success:     r.resp.Success,
		At:          o.now(),
	}
	if err := o.contexts.UpdateContext(r.req.UserID, models.ContextUpdate{LastInteraction: marker}); err != nil {
		o.logger.Warn("last_interaction_update_failed",
			zap.String("request_id", r.req.ID),
			zap.Error(err),
		)
	}
}
