package models

import (
	"time"
)

// Mood represents a user's self-reported or inferred mood
type Mood string

const (
	MoodExcellent Mood = "excellent"
	MoodGood      Mood = "good"
	MoodNeutral   Mood = "neutral"
	MoodLow       Mood = "low"
	MoodPoor      Mood = "poor"
)

// Level is a generic three-step scale used for energy and confidence
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// Motivation represents how motivated the user currently is
type Motivation string

const (
	MotivationHigh       Motivation = "high"
	MotivationMedium     Motivation = "medium"
	MotivationLow        Motivation = "low"
	MotivationStruggling Motivation = "struggling"
)

// Stress represents the user's current stress level
type Stress string

const (
	StressLow          Stress = "low"
	StressModerate     Stress = "moderate"
	StressHigh         Stress = "high"
	StressOverwhelming Stress = "overwhelming"
)

// SpaceTier describes how much room the user has available to train
type SpaceTier string

const (
	SpaceUnlimited   SpaceTier = "unlimited"
	SpaceModerate    SpaceTier = "moderate"
	SpaceLimited     SpaceTier = "limited"
	SpaceVeryLimited SpaceTier = "very_limited"
)

// NoiseTier describes the noise constraints of the user's environment
type NoiseTier string

const (
	NoiseQuiet    NoiseTier = "quiet"
	NoiseModerate NoiseTier = "moderate"
	NoiseLoud     NoiseTier = "loud"
)

// ExpertiseLevel is the user's training experience
type ExpertiseLevel string

const (
	ExpertiseBeginner     ExpertiseLevel = "beginner"
	ExpertiseIntermediate ExpertiseLevel = "intermediate"
	ExpertiseAdvanced     ExpertiseLevel = "advanced"
	ExpertiseExpert       ExpertiseLevel = "expert"
)

// Complexity is the desired prompt / response complexity
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityDetailed Complexity = "detailed"
)

// EmotionalState captures the user's emotional signals
type EmotionalState struct {
	Mood       Mood       `json:"mood" validate:"required,mood"`
	Energy     Level      `json:"energy,omitempty" validate:"omitempty,level"`
	Confidence Level      `json:"confidence,omitempty" validate:"omitempty,level"`
	Motivation Motivation `json:"motivation,omitempty" validate:"omitempty,motivation"`
	Stress     Stress     `json:"stress,omitempty" validate:"omitempty,stress"`
}

// Environment captures where and with what the user is training
type Environment struct {
	Location         string    `json:"location,omitempty"`
	Equipment        []string  `json:"equipment,omitempty"`
	Space            SpaceTier `json:"space,omitempty" validate:"omitempty,space_tier"`
	AvailableMinutes int       `json:"available_minutes,omitempty" validate:"gte=0"`
	Noise            NoiseTier `json:"noise,omitempty" validate:"omitempty,noise_tier"`
}

// Preferences captures how the user likes to be coached
type Preferences struct {
	CommunicationStyle string         `json:"communication_style,omitempty"`
	ExpertiseLevel     ExpertiseLevel `json:"expertise_level,omitempty" validate:"omitempty,expertise"`
	Language           string         `json:"language,omitempty"`
	PromptComplexity   Complexity     `json:"prompt_complexity,omitempty" validate:"omitempty,complexity"`
}

// Interaction marks the last request the orchestrator handled for a user
type Interaction struct {
	RequestID   string      `json:"request_id"`
	RequestType RequestType `json:"request_type"`
	Route       Route       `json:"route"`
	Success     bool        `json:"success"`
	At          time.Time   `json:"at"`
}

// UserContext is the current behavioral/environmental/emotional state of a user
type UserContext struct {
	UserID          string         `json:"user_id" validate:"required"`
	SessionID       string         `json:"session_id" validate:"required"`
	EmotionalState  EmotionalState `json:"emotional_state"`
	Environment     Environment    `json:"environment"`
	Preferences     Preferences    `json:"preferences"`
	LastInteraction *Interaction   `json:"last_interaction,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Clone returns a deep copy of the context
func (c *UserContext) Clone() *UserContext {
	if c == nil {
		return nil
	}
	out := *c
	if c.Environment.Equipment != nil {
		out.Environment.Equipment = append([]string(nil), c.Environment.Equipment...)
	}
	if c.LastInteraction != nil {
		li := *c.LastInteraction
		out.LastInteraction = &li
	}
	return &out
}

// EmotionalStateUpdate is a partial update of EmotionalState; nil fields are preserved
type EmotionalStateUpdate struct {
	Mood       *Mood       `json:"mood,omitempty"`
	Energy     *Level      `json:"energy,omitempty"`
	Confidence *Level      `json:"confidence,omitempty"`
	Motivation *Motivation `json:"motivation,omitempty"`
	Stress     *Stress     `json:"stress,omitempty"`
}

// EnvironmentUpdate is a partial update of Environment; nil fields are preserved
type EnvironmentUpdate struct {
	Location         *string    `json:"location,omitempty"`
	Equipment        []string   `json:"equipment,omitempty"`
	Space            *SpaceTier `json:"space,omitempty"`
	AvailableMinutes *int       `json:"available_minutes,omitempty"`
	Noise            *NoiseTier `json:"noise,omitempty"`
}

// PreferencesUpdate is a partial update of Preferences; nil fields are preserved
type PreferencesUpdate struct {
	CommunicationStyle *string         `json:"communication_style,omitempty"`
	ExpertiseLevel     *ExpertiseLevel `json:"expertise_level,omitempty"`
	Language           *string         `json:"language,omitempty"`
	PromptComplexity   *Complexity     `json:"prompt_complexity,omitempty"`
}

// ContextUpdate is a partial, per-group update of a UserContext
type ContextUpdate struct {
	SessionID       *string               `json:"session_id,omitempty"`
	EmotionalState  *EmotionalStateUpdate `json:"emotional_state,omitempty"`
	Environment     *EnvironmentUpdate    `json:"environment,omitempty"`
	Preferences     *PreferencesUpdate    `json:"preferences,omitempty"`
	LastInteraction *Interaction          `json:"last_interaction,omitempty"`
}

// Apply merges the update into a copy of base, field by field within each group
func (u ContextUpdate) Apply(base *UserContext) *UserContext {
	out := base.Clone()
	if u.SessionID != nil {
		out.SessionID = *u.SessionID
	}
	if es := u.EmotionalState; es != nil {
		if es.Mood != nil {
			out.EmotionalState.Mood = *es.Mood
		}
		if es.Energy != nil {
			out.EmotionalState.Energy = *es.Energy
		}
		if es.Confidence != nil {
			out.EmotionalState.Confidence = *es.Confidence
		}
		if es.Motivation != nil {
			out.EmotionalState.Motivation = *es.Motivation
		}
		if es.Stress != nil {
			out.EmotionalState.Stress = *es.Stress
		}
	}
	if env := u.Environment; env != nil {
		if env.Location != nil {
			out.Environment.Location = *env.Location
		}
		if env.Equipment != nil {
			out.Environment.Equipment = append([]string(nil), env.Equipment...)
		}
		if env.Space != nil {
			out.Environment.Space = *env.Space
		}
		if env.AvailableMinutes != nil {
			out.Environment.AvailableMinutes = *env.AvailableMinutes
		}
		if env.Noise != nil {
			out.Environment.Noise = *env.Noise
		}
	}
	if p := u.Preferences; p != nil {
		if p.CommunicationStyle != nil {
			out.Preferences.CommunicationStyle = *p.CommunicationStyle
		}
		if p.ExpertiseLevel != nil {
			out.Preferences.ExpertiseLevel = *p.ExpertiseLevel
		}
		if p.Language != nil {
			out.Preferences.Language = *p.Language
		}
		if p.PromptComplexity != nil {
			out.Preferences.PromptComplexity = *p.PromptComplexity
		}
	}
	if u.LastInteraction != nil {
		li := *u.LastInteraction
		out.LastInteraction = &li
	}
	return out
}

// TimeRange bounds a history query; zero values are open ends
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range
func (r *TimeRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// Pattern is a recurring behavior detected in a user's history
type Pattern struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Frequency  int     `json:"frequency"`
	Impact     string  `json:"impact"`
}

// TrendDirection is the sign of a detected trend
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
)

// Trend is a directional change of an ordinal metric over time
type Trend struct {
	Metric       string         `json:"metric"`
	Direction    TrendDirection `json:"direction"`
	Magnitude    float64        `json:"magnitude"`
	Significance float64        `json:"significance"`
}

// Severity grades anomalies and insights
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Anomaly is an unexpected change between consecutive history entries
type Anomaly struct {
	Type        string    `json:"type"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// ContextInsight is an actionable conclusion drawn from patterns and trends
type ContextInsight struct {
	Type           string  `json:"type"`
	Description    string  `json:"description"`
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
}

// ContextAnalysis is derived fresh from history on every analysis call
type ContextAnalysis struct {
	Patterns  []Pattern        `json:"patterns"`
	Trends    []Trend          `json:"trends"`
	Anomalies []Anomaly        `json:"anomalies"`
	Insights  []ContextInsight `json:"insights"`
}

// Timeframe indicates when a predicted need should be addressed
type Timeframe string

const (
	TimeframeImmediate       Timeframe = "immediate"
	TimeframeNextSession     Timeframe = "next_session"
	TimeframeNextFewSessions Timeframe = "next_few_sessions"
)

// PredictedNeed is a candidate need with a fixed priority
type PredictedNeed struct {
	Type     string  `json:"type"`
	Priority float64 `json:"priority"`
	Reason   string  `json:"reason"`
}

// NeedsPrediction is the output of rule-based need prediction
type NeedsPrediction struct {
	Needs      []PredictedNeed `json:"needs"`
	Confidence float64         `json:"confidence"`
	Timeframe  Timeframe       `json:"timeframe"`
}
