package models

import (
	"time"
)

// RequestType identifies what the caller wants from the coach
type RequestType string

const (
	RequestTrainingGuidance RequestType = "training_guidance"
	RequestDataImport       RequestType = "data_import"
	RequestProgressAnalysis RequestType = "progress_analysis"
	RequestNutritionAdvice  RequestType = "nutrition_advice"
	RequestMotivation       RequestType = "motivation"
	RequestGeneral          RequestType = "general"
)

// IsValidRequestType reports whether t is a known request type
func IsValidRequestType(t RequestType) bool {
	switch t {
	case RequestTrainingGuidance, RequestDataImport, RequestProgressAnalysis,
		RequestNutritionAdvice, RequestMotivation, RequestGeneral:
		return true
	}
	return false
}

// Route is the processing branch the orchestrator chose for a request
type Route string

const (
	RouteImageAnalysisFirst  Route = "image_analysis_first"
	RouteContextAnalysisOnly Route = "context_analysis_only"
	RouteHybridProcessing    Route = "hybrid_processing"
	RouteAIGenerationFirst   Route = "ai_generation_first"
)

// RequestInput carries the user-supplied payload
type RequestInput struct {
	Text  string `json:"text,omitempty"`
	Image []byte `json:"image,omitempty"`
}

// HasText reports whether text input is present
func (i RequestInput) HasText() bool {
	return i.Text != ""
}

// HasImage reports whether image input is present
func (i RequestInput) HasImage() bool {
	return len(i.Image) > 0
}

// RequestContext carries caller-supplied hints that override derived values
type RequestContext struct {
	ReadinessScore *float64 `json:"readiness_score,omitempty"`
	Budget         *float64 `json:"budget,omitempty"`
}

// RequestOptions toggles optional orchestration stages
type RequestOptions struct {
	EnableLearning        bool   `json:"enable_learning"`
	EnablePersonalization bool   `json:"enable_personalization"`
	PreferredService      string `json:"preferred_service,omitempty"`
}

// CoachingRequest is a single incoming request to the orchestrator
type CoachingRequest struct {
	ID      string         `json:"id"`
	UserID  string         `json:"user_id"`
	Type    RequestType    `json:"type"`
	Input   RequestInput   `json:"input"`
	Context RequestContext `json:"context"`
	Options RequestOptions `json:"options"`
}

// ResponseMetadata describes how a response was produced
type ResponseMetadata struct {
	ServicesUsed   []string      `json:"services_used"`
	ServiceName    string        `json:"service_name,omitempty"`
	ProcessingTime time.Duration `json:"processing_time"`
	Confidence     float64       `json:"confidence"`
	CacheHit       bool          `json:"cache_hit"`
	ReadinessScore float64       `json:"readiness_score"`
	TemplateID     string        `json:"template_id,omitempty"`
}

// Adaptation is the personalization bundle attached to a response
type Adaptation struct {
	Complexity Complexity `json:"complexity"`
	Tone       string     `json:"tone"`
	Length     string     `json:"length"`
	Insights   []string   `json:"insights,omitempty"`
}

// OrchestrationResponse is the caller-visible result of a request
type OrchestrationResponse struct {
	RequestID           string           `json:"request_id"`
	Success             bool             `json:"success"`
	Content             string           `json:"content"`
	Error               string           `json:"error,omitempty"`
	Recoverable         bool             `json:"recoverable,omitempty"`
	Route               Route            `json:"route,omitempty"`
	Data                *ExtractedData   `json:"data,omitempty"`
	Insights            []string         `json:"insights,omitempty"`
	Adaptation          *Adaptation      `json:"adaptation,omitempty"`
	FollowUpSuggestions []string         `json:"follow_up_suggestions"`
	Metadata            ResponseMetadata `json:"metadata"`
}

// Profile is the persisted user profile owned by the surrounding application
type Profile struct {
	UserID      string         `json:"user_id"`
	DisplayName string         `json:"display_name,omitempty"`
	Expertise   ExpertiseLevel `json:"expertise,omitempty"`
	Goals       []string       `json:"goals,omitempty"`
	Equipment   []string       `json:"equipment,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
