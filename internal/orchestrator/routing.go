package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/benvon/smart-coach/internal/models"
)

// LowReadinessThreshold is the readiness below which training guidance is
// answered from context alone
const LowReadinessThreshold = 0.3

// DecideRoute picks the processing branch; the first matching rule wins
func DecideRoute(req *models.CoachingRequest, readiness float64) models.Route {
	switch {
	case req.Input.HasImage() && req.Type == models.RequestDataImport:
		return models.RouteImageAnalysisFirst
	case req.Type == models.RequestTrainingGuidance && readiness < LowReadinessThreshold:
		return models.RouteContextAnalysisOnly
	case req.Input.HasImage() && req.Input.HasText():
		return models.RouteHybridProcessing
	default:
		return models.RouteAIGenerationFirst
	}
}

// TargetsFor lists the extraction targets relevant to a request type
func TargetsFor(rt models.RequestType) []models.ExtractionTarget {
	switch rt {
	case models.RequestNutritionAdvice:
		return []models.ExtractionTarget{{Type: models.TargetNutrition}}
	case models.RequestTrainingGuidance:
		return []models.ExtractionTarget{{Type: models.TargetWorkout}}
	case models.RequestProgressAnalysis:
		return []models.ExtractionTarget{
			{Type: models.TargetMeasurement},
			{Type: models.TargetProgressPhoto},
			{Type: models.TargetWorkout},
		}
	default:
		return []models.ExtractionTarget{
			{Type: models.TargetWorkout},
			{Type: models.TargetNutrition},
			{Type: models.TargetMeasurement},
			{Type: models.TargetProgressPhoto},
		}
	}
}

var followUps = map[models.RequestType][]string{
	models.RequestTrainingGuidance: {
		"Log your workout results",
		"Rate how hard the session felt",
		"Ask for a variation if an exercise doesn't fit",
	},
	models.RequestNutritionAdvice: {
		"Log today's meals",
		"Ask for a shopping list",
	},
	models.RequestProgressAnalysis: {
		"Upload a new progress photo",
		"Update your body measurements",
	},
	models.RequestMotivation: {
		"Set one small goal for today",
		"Check in again after your next session",
	},
	models.RequestDataImport: {
		"Review the imported data",
		"Ask for an analysis of your progress",
	},
	models.RequestGeneral: {
		"Ask for a training plan",
		"Tell me how you're feeling today",
	},
}

// FollowUpSuggestions returns the static suggestions for a request type,
// extended per target when structured data was extracted
func FollowUpSuggestions(rt models.RequestType, data *models.ExtractedData) []string {
	base, ok := followUps[rt]
	if !ok {
		base = followUps[models.RequestGeneral]
	}
	out := append([]string(nil), base...)
	if data == nil || data.Count() == 0 {
		return out
	}
	if len(data.Fields[models.TargetWorkout]) > 0 {
		out = append(out, "Compare this workout with last week's")
	}
	if len(data.Fields[models.TargetNutrition]) > 0 {
		out = append(out, "Check these macros against your daily targets")
	}
	if len(data.Fields[models.TargetMeasurement]) > 0 {
		out = append(out, "Track this measurement over the next month")
	}
	return out
}

// ContextOnlyAdvice is the recovery-focused answer given without an AI call.
// It always states the readiness score.
func ContextOnlyAdvice(readiness float64, uc *models.UserContext, analysis models.ContextAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your readiness score is %.2f, so today is better suited to recovery than hard training.", readiness)

	if uc != nil {
		es := uc.EmotionalState
		switch {
		case es.Energy == models.LevelLow:
			b.WriteString(" Your energy is low: try 10 to 15 minutes of easy walking or mobility work.")
		case es.Stress == models.StressHigh || es.Stress == models.StressOverwhelming:
			b.WriteString(" Stress is high: a few minutes of slow breathing and light stretching will help more than intensity.")
		case es.Motivation == models.MotivationStruggling || es.Motivation == models.MotivationLow:
			b.WriteString(" Motivation is low: commit to just five minutes and stop there if you need to.")
		default:
			b.WriteString(" Keep it light with gentle movement and stretching.")
		}
	}
	for i, ins := range analysis.Insights {
		if i == 2 {
			break
		}
		if ins.Recommendation != "" {
			b.WriteString(" ")
			b.WriteString(ins.Recommendation)
		}
	}
	b.WriteString(" Prioritize sleep, hydration and a good meal, and check back when you feel more rested.")
	return b.String()
}

// SummarizeData renders extracted data points as "field=value unit" pairs
// in target order
func SummarizeData(data *models.ExtractedData) string {
	if data == nil || data.Count() == 0 {
		return ""
	}
	targets := make([]string, 0, len(data.Fields))
	for t := range data.Fields {
		targets = append(targets, string(t))
	}
	sort.Strings(targets)

	var parts []string
	for _, t := range targets {
		for _, p := range data.Fields[models.ExtractionTargetType(t)] {
			part := fmt.Sprintf("%s=%v", p.Field, p.Value)
			if p.Unit != "" {
				part += " " + p.Unit
			}
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

// mergeData combines two extraction results; a's source wins
func mergeData(a, b *models.ExtractedData) *models.ExtractedData {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	out := &models.ExtractedData{
		Fields: make(map[models.ExtractionTargetType][]models.DataPoint, len(a.Fields)+len(b.Fields)),
		Source: a.Source,
		Text:   a.Text,
	}
	for t, points := range a.Fields {
		out.Fields[t] = append(out.Fields[t], points...)
	}
	for t, points := range b.Fields {
		out.Fields[t] = append(out.Fields[t], points...)
	}
	if b.Source != "" && b.Source != a.Source {
		out.Source = a.Source + "+" + b.Source
	}
	return out
}

func defaultQuestion(rt models.RequestType) string {
	switch rt {
	case models.RequestTrainingGuidance:
		return "What workout should I do today?"
	case models.RequestNutritionAdvice:
		return "What should I eat today?"
	case models.RequestProgressAnalysis, models.RequestDataImport:
		return "How am I progressing?"
	case models.RequestMotivation:
		return "Help me stay motivated."
	default:
		return "How should I approach my training?"
	}
}
