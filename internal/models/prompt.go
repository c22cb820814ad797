package models

import (
	"time"
)

// TemplateCategory groups prompt templates by coaching purpose
type TemplateCategory string

const (
	CategoryWorkoutGeneration TemplateCategory = "workout_generation"
	CategoryNutritionAdvice   TemplateCategory = "nutrition_advice"
	CategoryMotivation        TemplateCategory = "motivation"
	CategoryProgressAnalysis  TemplateCategory = "progress_analysis"
	CategoryFormGuidance      TemplateCategory = "form_guidance"
	CategoryRecovery          TemplateCategory = "recovery"
	CategoryGeneralCoaching   TemplateCategory = "general_coaching"
)

// TemplateCategories is the closed set of accepted categories
var TemplateCategories = []TemplateCategory{
	CategoryWorkoutGeneration,
	CategoryNutritionAdvice,
	CategoryMotivation,
	CategoryProgressAnalysis,
	CategoryFormGuidance,
	CategoryRecovery,
	CategoryGeneralCoaching,
}

// IsValidCategory reports whether c is in the closed category set
func IsValidCategory(c TemplateCategory) bool {
	for _, known := range TemplateCategories {
		if c == known {
			return true
		}
	}
	return false
}

// VariableType is the declared type of a template variable
type VariableType string

const (
	VariableString VariableType = "string"
	VariableNumber VariableType = "number"
	VariableList   VariableType = "list"
	VariableBool   VariableType = "boolean"
)

// TemplateVariable declares a named slot in a template body
type TemplateVariable struct {
	Name     string       `json:"name" yaml:"name" validate:"required"`
	Type     VariableType `json:"type" yaml:"type"`
	Required bool         `json:"required" yaml:"required"`
	Default  string       `json:"default,omitempty" yaml:"default,omitempty"`
}

// PromptTemplate is a reusable prompt body with {{variable}} slots
type PromptTemplate struct {
	ID             string             `json:"id" yaml:"id" validate:"required"`
	Name           string             `json:"name" yaml:"name" validate:"required"`
	Category       TemplateCategory   `json:"category" yaml:"category" validate:"required"`
	Body           string             `json:"body" yaml:"body" validate:"required"`
	Variables      []TemplateVariable `json:"variables,omitempty" yaml:"variables,omitempty" validate:"dive"`
	Complexity     Complexity         `json:"complexity,omitempty" yaml:"complexity,omitempty"`
	TargetServices []string           `json:"target_services,omitempty" yaml:"target_services,omitempty"`
	Compatibility  map[string]string  `json:"compatibility,omitempty" yaml:"compatibility,omitempty"`
	Effectiveness  float64            `json:"effectiveness" yaml:"effectiveness" validate:"gte=0,lte=1"`
	CreatedAt      time.Time          `json:"created_at" yaml:"-"`
	UpdatedAt      time.Time          `json:"updated_at" yaml:"-"`
}

// TemplateUpdate is a partial update of a PromptTemplate
type TemplateUpdate struct {
	Name           *string            `json:"name,omitempty"`
	Category       *TemplateCategory  `json:"category,omitempty"`
	Body           *string            `json:"body,omitempty"`
	Variables      []TemplateVariable `json:"variables,omitempty"`
	Complexity     *Complexity        `json:"complexity,omitempty"`
	TargetServices []string           `json:"target_services,omitempty"`
	Compatibility  map[string]string  `json:"compatibility,omitempty"`
	Effectiveness  *float64           `json:"effectiveness,omitempty"`
}

// PromptQuality summarizes heuristic quality metrics of a generated prompt
type PromptQuality struct {
	Clarity         float64 `json:"clarity"`
	Specificity     float64 `json:"specificity"`
	Personalization float64 `json:"personalization"`
	Length          int     `json:"length"`
	Overall         float64 `json:"overall"`
}

// GeneratedPrompt is a finished prompt with its provenance and metrics
type GeneratedPrompt struct {
	Prompt                 string            `json:"prompt"`
	SystemMessage          string            `json:"system_message"`
	TemplateID             string            `json:"template_id"`
	TargetService          string            `json:"target_service,omitempty"`
	Variables              map[string]string `json:"variables"`
	Adjustments            []string          `json:"adjustments"`
	Quality                PromptQuality     `json:"quality"`
	PredictedEffectiveness float64           `json:"predicted_effectiveness"`
}
