package prompts

import (
	"sort"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/benvon/smart-coach/internal/validation"
	"go.uber.org/zap"
)

// RegisterTemplate validates and stores a new template
func (g *Generator) RegisterTemplate(t models.PromptTemplate) error {
	if err := validateTemplate(&t); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.templates[t.ID]; exists {
		return models.NewValidationError("ID", "template already registered: "+t.ID)
	}
	now := g.now()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Effectiveness == 0 {
		t.Effectiveness = defaultEffectiveness
	}
	g.templates[t.ID] = &t

	g.logger.Debug("template_registered",
		zap.String("template_id", t.ID),
		zap.String("category", string(t.Category)),
	)
	return nil
}

// UpdateTemplate applies a partial update to an existing template
func (g *Generator) UpdateTemplate(id string, update models.TemplateUpdate) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, ok := g.templates[id]
	if !ok {
		return models.NewNotFoundError("template", id)
	}
	next := *existing
	if update.Name != nil {
		next.Name = *update.Name
	}
	if update.Category != nil {
		next.Category = *update.Category
	}
	if update.Body != nil {
		next.Body = *update.Body
	}
	if update.Variables != nil {
		next.Variables = append([]models.TemplateVariable(nil), update.Variables...)
	}
	if update.Complexity != nil {
		next.Complexity = *update.Complexity
	}
	if update.TargetServices != nil {
		next.TargetServices = append([]string(nil), update.TargetServices...)
	}
	if update.Compatibility != nil {
		next.Compatibility = make(map[string]string, len(update.Compatibility))
		for k, v := range update.Compatibility {
			next.Compatibility[k] = v
		}
	}
	if update.Effectiveness != nil {
		next.Effectiveness = *update.Effectiveness
	}
	if err := validateTemplate(&next); err != nil {
		return err
	}
	next.UpdatedAt = g.now()
	g.templates[id] = &next
	return nil
}

// GetTemplate returns a copy of a registered template
func (g *Generator) GetTemplate(id string) (models.PromptTemplate, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, ok := g.templates[id]
	if !ok {
		return models.PromptTemplate{}, false
	}
	return *t, true
}

// ListTemplates returns templates sorted by ID, filtered by category when non-empty
func (g *Generator) ListTemplates(category models.TemplateCategory) []models.PromptTemplate {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]models.PromptTemplate, 0, len(g.templates))
	for _, t := range g.templates {
		if category == "" || t.Category == category {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func validateTemplate(t *models.PromptTemplate) error {
	if err := validation.Struct(t); err != nil {
		return err
	}
	if err := validation.ValidateCategory(t.Category); err != nil {
		return err
	}
	if t.Complexity != "" {
		switch t.Complexity {
		case models.ComplexitySimple, models.ComplexityModerate, models.ComplexityDetailed:
		default:
			return models.NewValidationError("Complexity", "unknown complexity: "+string(t.Complexity))
		}
	}
	return nil
}

// DefaultTemplates returns one built-in template per category
func DefaultTemplates() []models.PromptTemplate {
	common := []models.TemplateVariable{
		{Name: "user_input", Type: models.VariableString},
		{Name: "expertise_level", Type: models.VariableString, Default: "beginner"},
		{Name: "tone", Type: models.VariableString, Default: "supportive"},
	}
	withCommon := func(extra ...models.TemplateVariable) []models.TemplateVariable {
		return append(append([]models.TemplateVariable(nil), common...), extra...)
	}

	return []models.PromptTemplate{
		{
			ID:       "workout-standard",
			Name:     "Personalized workout",
			Category: models.CategoryWorkoutGeneration,
			Body: "Design a {{structure}} workout for a {{expertise_level}} athlete training at {{location}} " +
				"with {{equipment}}. They have {{available_minutes}} minutes, {{energy}} energy and feel {{mood}}. " +
				"Keep the intensity {{intensity}} and the challenge {{challenge_level}}. Request: {{user_input}}",
			Variables: withCommon(
				models.TemplateVariable{Name: "structure", Type: models.VariableString, Default: "standard"},
				models.TemplateVariable{Name: "available_minutes", Type: models.VariableNumber, Required: true, Default: "45"},
			),
			Complexity:     models.ComplexityModerate,
			TargetServices: []string{"openai"},
			Effectiveness:  0.7,
		},
		{
			ID:       "nutrition-basics",
			Name:     "Nutrition guidance",
			Category: models.CategoryNutritionAdvice,
			Body: "Give {{expertise_level}}-level nutrition advice in a {{tone}} tone. " +
				"The athlete's energy is {{energy}} and their goal-related question is: {{user_input}}",
			Variables:     withCommon(),
			Complexity:    models.ComplexitySimple,
			Effectiveness: 0.65,
		},
		{
			ID:       "motivation-boost",
			Name:     "Motivation check-in",
			Category: models.CategoryMotivation,
			Body: "The athlete feels {{mood}} with {{motivation}} motivation and {{stress}} stress. " +
				"Respond in a {{tone}} tone with one small, achievable next step. Message: {{user_input}}",
			Variables:     withCommon(),
			Complexity:    models.ComplexitySimple,
			Effectiveness: 0.7,
		},
		{
			ID:       "progress-review",
			Name:     "Progress review",
			Category: models.CategoryProgressAnalysis,
			Body: "Review the following training data for a {{expertise_level}} athlete and summarize progress, " +
				"plateaus and next adjustments: {{user_input}}",
			Variables:      withCommon(),
			Complexity:     models.ComplexityDetailed,
			TargetServices: []string{"openai"},
			Effectiveness:  0.6,
		},
		{
			ID:       "form-cues",
			Name:     "Form guidance",
			Category: models.CategoryFormGuidance,
			Body: "Explain safe technique and the top cues for the movement described below to a " +
				"{{expertise_level}} athlete with {{equipment}}. {{user_input}}",
			Variables:     withCommon(),
			Complexity:    models.ComplexityModerate,
			Effectiveness: 0.6,
		},
		{
			ID:       "recovery-plan",
			Name:     "Recovery plan",
			Category: models.CategoryRecovery,
			Body: "Suggest a recovery routine for someone with {{energy}} energy and {{stress}} stress " +
				"who has {{available_minutes}} minutes at {{location}}. {{user_input}}",
			Variables:     withCommon(),
			Complexity:    models.ComplexitySimple,
			Effectiveness: 0.6,
		},
		{
			ID:            "general-coach",
			Name:          "General coaching",
			Category:      models.CategoryGeneralCoaching,
			Body:          "Answer as a {{tone}} fitness coach for a {{expertise_level}} athlete: {{user_input}}",
			Variables:     withCommon(),
			Complexity:    models.ComplexitySimple,
			Effectiveness: 0.5,
		},
	}
}
