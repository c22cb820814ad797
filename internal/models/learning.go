package models

import (
	"time"
)

// ComponentType identifies the subsystem a measurement belongs to
type ComponentType string

const (
	ComponentPromptGeneration ComponentType = "prompt_generation"
	ComponentServiceRouting   ComponentType = "service_routing"
	ComponentExtraction       ComponentType = "data_extraction"
	ComponentContextAnalysis  ComponentType = "context_analysis"
	ComponentOrchestration    ComponentType = "orchestration"
	ComponentRecommendation   ComponentType = "recommendation"
)

// EffectivenessMetric is one measured effectiveness signal for a component
type EffectivenessMetric struct {
	ID          string             `json:"id"`
	Component   ComponentType      `json:"component"`
	ComponentID string             `json:"component_id,omitempty"`
	UserID      string             `json:"user_id,omitempty"`
	Metric      string             `json:"metric"`
	Value       float64            `json:"value"`
	Signals     map[string]float64 `json:"signals,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// UsagePattern is a detected usage habit of a user
type UsagePattern struct {
	UserID     string         `json:"user_id"`
	Type       string         `json:"type"`
	Value      string         `json:"value"`
	Frequency  int            `json:"frequency"`
	Confidence float64        `json:"confidence"`
	Attributes map[string]any `json:"attributes,omitempty"`
	LastSeen   time.Time      `json:"last_seen"`
}

// InsightType classifies discovered insights
type InsightType string

const (
	InsightBehavior             InsightType = "behavior"
	InsightPerformance          InsightType = "performance"
	InsightContentEffectiveness InsightType = "content_effectiveness"
	InsightPredictive           InsightType = "predictive"
	InsightAnomaly              InsightType = "anomaly"
	InsightABTest               InsightType = "ab_test"
)

// LearningInsight is an analytic conclusion with a severity and confidence
type LearningInsight struct {
	ID             string         `json:"id"`
	Type           InsightType    `json:"type"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Severity       Severity       `json:"severity"`
	Confidence     float64        `json:"confidence"`
	Component      ComponentType  `json:"component,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	Recommendation string         `json:"recommendation,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// InsightScope filters insight discovery
type InsightScope struct {
	UserID    string        `json:"user_id,omitempty"`
	Component ComponentType `json:"component,omitempty"`
	Types     []InsightType `json:"types,omitempty"`
	Since     time.Time     `json:"since,omitempty"`
}

// Includes reports whether the scope requests insight type t
func (s InsightScope) Includes(t InsightType) bool {
	if len(s.Types) == 0 {
		return true
	}
	for _, want := range s.Types {
		if want == t {
			return true
		}
	}
	return false
}

// ABTestStatus is the lifecycle state of an A/B test
type ABTestStatus string

const (
	ABTestDraft     ABTestStatus = "draft"
	ABTestActive    ABTestStatus = "active"
	ABTestPaused    ABTestStatus = "paused"
	ABTestCompleted ABTestStatus = "completed"
	ABTestCancelled ABTestStatus = "cancelled"
)

// ABVariant is one option within an A/B test
type ABVariant struct {
	ID            string         `json:"id" validate:"required"`
	Name          string         `json:"name"`
	Weight        float64        `json:"weight" validate:"gte=0,lte=100"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

// SuccessMetric declares how a test's success is measured
type SuccessMetric struct {
	Name    string `json:"name" validate:"required"`
	Primary bool   `json:"primary"`
	Goal    string `json:"goal,omitempty"`
}

// TargetAudience restricts which users are eligible for a test
type TargetAudience struct {
	UserIDs         []string         `json:"user_ids,omitempty"`
	ExpertiseLevels []ExpertiseLevel `json:"expertise_levels,omitempty"`
	Percentage      float64          `json:"percentage,omitempty"`
}

// ABTestConfiguration is the definition and state of an A/B test
type ABTestConfiguration struct {
	ID                      string          `json:"id"`
	Name                    string          `json:"name" validate:"required"`
	Description             string          `json:"description,omitempty"`
	Component               ComponentType   `json:"component"`
	Variants                []ABVariant     `json:"variants" validate:"dive"`
	SuccessMetrics          []SuccessMetric `json:"success_metrics" validate:"dive"`
	TargetAudience          *TargetAudience `json:"target_audience,omitempty"`
	MinSampleSize           int             `json:"min_sample_size"`
	MinimumDetectableEffect float64         `json:"minimum_detectable_effect"`
	ConfidenceLevel         float64         `json:"confidence_level"`
	AutoStop                bool            `json:"auto_stop"`
	Status                  ABTestStatus    `json:"status"`
	CreatedAt               time.Time       `json:"created_at"`
	StartedAt               *time.Time      `json:"started_at,omitempty"`
	EndedAt                 *time.Time      `json:"ended_at,omitempty"`
}

// PrimaryMetric returns the primary success metric, if declared
func (c *ABTestConfiguration) PrimaryMetric() (SuccessMetric, bool) {
	for _, m := range c.SuccessMetrics {
		if m.Primary {
			return m, true
		}
	}
	return SuccessMetric{}, false
}

// ABTestEvent is one recorded event for a participant
type ABTestEvent struct {
	TestID    string    `json:"test_id"`
	UserID    string    `json:"user_id"`
	VariantID string    `json:"variant_id"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Converted bool      `json:"converted"`
	Timestamp time.Time `json:"timestamp"`
}

// VariantStatistics summarizes events for one variant
type VariantStatistics struct {
	VariantID      string  `json:"variant_id"`
	Participants   int     `json:"participants"`
	Conversions    int     `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
	MeanValue      float64 `json:"mean_value"`
	StdDev         float64 `json:"std_dev"`
	Lift           float64 `json:"lift"`
	ZScore         float64 `json:"z_score"`
	PValue         float64 `json:"p_value"`
}

// ABRecommendation is the action derived from completed test results
type ABRecommendation string

const (
	RecommendDeployWinner    ABRecommendation = "deploy_winner"
	RecommendContinueTesting ABRecommendation = "continue_testing"
	RecommendKeepControl     ABRecommendation = "keep_control"
	RecommendRedesignTest    ABRecommendation = "redesign_test"
)

// ABTestResults carries per-variant statistics and a significance verdict
type ABTestResults struct {
	TestID            string              `json:"test_id"`
	Status            ABTestStatus        `json:"status"`
	Variants          []VariantStatistics `json:"variants"`
	TotalParticipants int                 `json:"total_participants"`
	Significant       bool                `json:"significant"`
	PValue            float64             `json:"p_value"`
	ConfidenceLevel   float64             `json:"confidence_level"`
	WinnerVariantID   string              `json:"winner_variant_id,omitempty"`
	Recommendation    ABRecommendation    `json:"recommendation"`
	Insight           *LearningInsight    `json:"insight,omitempty"`
	ImprovementPlanID string              `json:"improvement_plan_id,omitempty"`
	ComputedAt        time.Time           `json:"computed_at"`
}

// ImprovementAction is one step of a continuous improvement plan
type ImprovementAction struct {
	Description string `json:"description"`
	Owner       string `json:"owner"`
	Done        bool   `json:"done"`
}

// ContinuousImprovementPlan rolls a validated change out to a component
type ContinuousImprovementPlan struct {
	ID              string              `json:"id"`
	SourceTestID    string              `json:"source_test_id,omitempty"`
	Component       ComponentType       `json:"component"`
	Objective       string              `json:"objective"`
	ExpectedLift    float64             `json:"expected_lift"`
	Actions         []ImprovementAction `json:"actions"`
	SuccessCriteria []string            `json:"success_criteria"`
	CreatedAt       time.Time           `json:"created_at"`
}

// ComponentHealthStatus grades one component's performance against baseline
type ComponentHealthStatus string

const (
	ComponentHealthy  ComponentHealthStatus = "healthy"
	ComponentDegraded ComponentHealthStatus = "degraded"
	ComponentFailing  ComponentHealthStatus = "failing"
)

// ComponentHealth is the health of a single component
type ComponentHealth struct {
	Component   ComponentType         `json:"component"`
	Status      ComponentHealthStatus `json:"status"`
	Current     float64               `json:"current"`
	Baseline    float64               `json:"baseline"`
	Ratio       float64               `json:"ratio"`
	SampleCount int                   `json:"sample_count"`
}

// OverallHealth is the aggregated system status
type OverallHealth string

const (
	OverallHealthy  OverallHealth = "healthy"
	OverallWarning  OverallHealth = "warning"
	OverallCritical OverallHealth = "critical"
)

// SystemHealth aggregates component health
type SystemHealth struct {
	Status     OverallHealth     `json:"status"`
	Components []ComponentHealth `json:"components"`
	Anomalies  int               `json:"anomalies"`
	CheckedAt  time.Time         `json:"checked_at"`
}

// PersonalizedRecommendations is the adaptation bundle for one user
type PersonalizedRecommendations struct {
	UserID     string           `json:"user_id"`
	Adaptation Adaptation       `json:"adaptation"`
	Patterns   []UsagePattern   `json:"patterns,omitempty"`
	Needs      *NeedsPrediction `json:"needs,omitempty"`
	Insights   []string         `json:"insights,omitempty"`
	Confidence float64          `json:"confidence"`
}

// LearningEventType classifies a learning signal carried between the
// orchestrator and the optimizer
type LearningEventType string

const (
	LearningEventEffectiveness LearningEventType = "effectiveness"
	LearningEventABTest        LearningEventType = "ab_event"
	LearningEventUsage         LearningEventType = "usage"
)

// LearningEvent is one learning signal; the payload field matching Type is set
type LearningEvent struct {
	Type          LearningEventType     `json:"type"`
	Effectiveness []EffectivenessMetric `json:"effectiveness,omitempty"`
	ABEvent       *ABTestEvent          `json:"ab_event,omitempty"`
	Usage         *UsagePattern         `json:"usage,omitempty"`
	OccurredAt    time.Time             `json:"occurred_at"`
}
