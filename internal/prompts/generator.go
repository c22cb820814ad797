// Package prompts turns a user context, request category and target AI
// service into a finished prompt with quality metrics.
package prompts

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benvon/smart-coach/internal/models"
	"go.uber.org/zap"
)

const defaultEffectiveness = 0.5

var slotPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// GenerationRequest describes the prompt to build
type GenerationRequest struct {
	Context       *models.UserContext
	Category      models.TemplateCategory
	Complexity    models.Complexity
	TargetService string
	// TargetKind is the backend kind of TargetService and drives phrasing style
	TargetKind string
	UserInput  string
	HasImage   bool
	Variables  map[string]string
}

// Generator selects templates and renders prompts. Templates live in a
// constructor-scoped registry.
type Generator struct {
	mu        sync.RWMutex
	templates map[string]*models.PromptTemplate
	history   map[string][]float64

	skipDefaults bool
	now          func() time.Time
	logger       *zap.Logger
}

// Option configures a Generator
type Option func(*Generator)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// WithoutDefaults skips registration of the built-in templates
func WithoutDefaults() Option {
	return func(g *Generator) {
		g.skipDefaults = true
	}
}

// New creates a Generator with the built-in templates registered
func New(logger *zap.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Generator{
		templates: make(map[string]*models.PromptTemplate),
		history:   make(map[string][]float64),
		now:       time.Now,
		logger:    logger.Named("prompts"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if !g.skipDefaults {
		for _, t := range DefaultTemplates() {
			if err := g.RegisterTemplate(t); err != nil {
				g.logger.Error("default_template_invalid", zap.String("template_id", t.ID), zap.Error(err))
			}
		}
	}
	return g
}

// CategoryForRequest maps a request type onto a template category
func CategoryForRequest(rt models.RequestType) models.TemplateCategory {
	switch rt {
	case models.RequestTrainingGuidance:
		return models.CategoryWorkoutGeneration
	case models.RequestNutritionAdvice:
		return models.CategoryNutritionAdvice
	case models.RequestMotivation:
		return models.CategoryMotivation
	case models.RequestProgressAnalysis, models.RequestDataImport:
		return models.CategoryProgressAnalysis
	default:
		return models.CategoryGeneralCoaching
	}
}

// Generate selects the best template for req and renders it
func (g *Generator) Generate(ctx context.Context, req GenerationRequest) (*models.GeneratedPrompt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	uc := req.Context
	if uc == nil {
		uc = &models.UserContext{}
	}
	if req.Category == "" {
		req.Category = models.CategoryGeneralCoaching
	}
	if req.Complexity == "" {
		req.Complexity = uc.Preferences.PromptComplexity
	}

	tmpl, err := g.selectTemplate(req)
	if err != nil {
		return nil, err
	}

	vars := g.populateVariables(uc, req)
	adjustments := applyAdjustments(uc, vars)
	for k, v := range req.Variables {
		vars[k] = v
	}

	for _, v := range tmpl.Variables {
		if _, ok := vars[v.Name]; ok && vars[v.Name] != "" {
			continue
		}
		if v.Default != "" {
			vars[v.Name] = v.Default
			continue
		}
		if v.Required {
			return nil, models.NewValidationError(v.Name, "required template variable has no value")
		}
	}

	body := substitute(tmpl.Body, vars)
	body += conditionalSections(uc)
	style := StyleForKind(req.TargetKind, req.HasImage)
	body = adaptToStyle(body, style, vars)
	body = adaptToExpertise(body, uc.Preferences.ExpertiseLevel)

	prompt := &models.GeneratedPrompt{
		Prompt:                 body,
		SystemMessage:          systemMessage(vars),
		TemplateID:             tmpl.ID,
		TargetService:          req.TargetService,
		Variables:              vars,
		Adjustments:            adjustments,
		PredictedEffectiveness: g.PredictEffectiveness(tmpl.ID),
	}
	prompt.Quality = assessQuality(prompt, uc)

	g.logger.Debug("prompt_generated",
		zap.String("template_id", tmpl.ID),
		zap.String("target_service", req.TargetService),
		zap.String("style", string(style)),
		zap.Int("adjustments", len(adjustments)),
		zap.Float64("quality", prompt.Quality.Overall),
	)
	return prompt, nil
}

// selectTemplate scores candidates: base effectiveness, +0.2 for a matching
// complexity and +0.1 when the target service is listed. Categories without
// templates fall back to general coaching.
func (g *Generator) selectTemplate(req GenerationRequest) (models.PromptTemplate, error) {
	candidates := g.ListTemplates(req.Category)
	if len(candidates) == 0 && req.Category != models.CategoryGeneralCoaching {
		candidates = g.ListTemplates(models.CategoryGeneralCoaching)
	}
	if len(candidates) == 0 {
		return models.PromptTemplate{}, models.NewNotFoundError("template category", string(req.Category))
	}

	best, bestScore := candidates[0], -1.0
	for _, t := range candidates {
		score := TemplateScore(t, req.Complexity, req.TargetService, req.TargetKind)
		if score > bestScore {
			best, bestScore = t, score
		}
	}
	return best, nil
}

// TemplateScore returns the selection score of t for a request
func TemplateScore(t models.PromptTemplate, complexity models.Complexity, service, kind string) float64 {
	score := t.Effectiveness
	if complexity != "" && t.Complexity == complexity {
		score += 0.2
	}
	for _, target := range t.TargetServices {
		if (service != "" && target == service) || (kind != "" && target == kind) {
			score += 0.1
			break
		}
	}
	return score
}

func (g *Generator) populateVariables(uc *models.UserContext, req GenerationRequest) map[string]string {
	es, env, prefs := uc.EmotionalState, uc.Environment, uc.Preferences
	now := uc.Timestamp
	if now.IsZero() {
		now = g.now()
	}

	equipment := "no equipment"
	if len(env.Equipment) > 0 {
		equipment = strings.Join(env.Equipment, ", ")
	}
	minutes := ""
	if env.AvailableMinutes > 0 {
		minutes = strconv.Itoa(env.AvailableMinutes)
	}

	vars := map[string]string{
		"user_input":          strings.TrimSpace(req.UserInput),
		"mood":                orDefault(string(es.Mood), string(models.MoodNeutral)),
		"energy":              orDefault(string(es.Energy), string(models.LevelMedium)),
		"confidence":          orDefault(string(es.Confidence), string(models.LevelMedium)),
		"motivation":          orDefault(string(es.Motivation), string(models.MotivationMedium)),
		"stress":              orDefault(string(es.Stress), string(models.StressModerate)),
		"location":            orDefault(env.Location, "home"),
		"equipment":           equipment,
		"space":               orDefault(string(env.Space), string(models.SpaceModerate)),
		"available_minutes":   minutes,
		"noise":               orDefault(string(env.Noise), string(models.NoiseModerate)),
		"expertise_level":     orDefault(string(prefs.ExpertiseLevel), string(models.ExpertiseBeginner)),
		"communication_style": orDefault(prefs.CommunicationStyle, "friendly"),
		"language":            orDefault(prefs.Language, "en"),
		"time_of_day":         timeOfDay(now),
		"day_of_week":         now.Weekday().String(),
		"tone":                "supportive",
		"challenge_level":     "moderate",
		"intensity":           "moderate",
		"structure":           "standard",
		"focus":               "overall progress",
	}
	return vars
}

// PredictEffectiveness returns the running average of recorded scores for a
// template, or 0.5 with no history
func (g *Generator) PredictEffectiveness(templateID string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	scores := g.history[templateID]
	if len(scores) == 0 {
		return defaultEffectiveness
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// RecordEffectiveness appends an observed score and folds the running average
// back into the template's base effectiveness
func (g *Generator) RecordEffectiveness(templateID string, score float64) error {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.templates[templateID]
	if !ok {
		return models.NewNotFoundError("template", templateID)
	}
	g.history[templateID] = append(g.history[templateID], score)
	var sum float64
	for _, s := range g.history[templateID] {
		sum += s
	}
	updated := *t
	updated.Effectiveness = sum / float64(len(g.history[templateID]))
	updated.UpdatedAt = g.now()
	g.templates[templateID] = &updated
	return nil
}

func substitute(body string, vars map[string]string) string {
	return slotPattern.ReplaceAllStringFunc(body, func(slot string) string {
		name := slotPattern.FindStringSubmatch(slot)[1]
		return vars[name]
	})
}

// UnresolvedSlots lists slot names in body that vars does not provide
func UnresolvedSlots(body string, vars map[string]string) []string {
	seen := make(map[string]bool)
	var missing []string
	for _, m := range slotPattern.FindAllStringSubmatch(body, -1) {
		if _, ok := vars[m[1]]; !ok && !seen[m[1]] {
			seen[m[1]] = true
			missing = append(missing, m[1])
		}
	}
	sort.Strings(missing)
	return missing
}

func systemMessage(vars map[string]string) string {
	return fmt.Sprintf("You are an experienced fitness coach. Use a %s tone and tailor advice to a %s athlete. "+
		"Prioritize safety and keep recommendations practical.", vars["tone"], vars["expertise_level"])
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func timeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return "morning"
	case h >= 12 && h < 17:
		return "afternoon"
	case h >= 17 && h < 21:
		return "evening"
	default:
		return "night"
	}
}
