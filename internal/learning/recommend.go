package learning

import (
	"fmt"

	"github.com/benvon/smart-coach/internal/contextstore"
	"github.com/benvon/smart-coach/internal/models"
)

const lowReadiness = 0.4

// GetPersonalizedRecommendations combines the user's usage patterns with
// predicted needs into an adaptation bundle
func (o *Optimizer) GetPersonalizedRecommendations(userID string, uc *models.UserContext) models.PersonalizedRecommendations {
	patterns := o.UsagePatterns(userID)
	rec := models.PersonalizedRecommendations{
		UserID:   userID,
		Patterns: patterns,
	}

	var needs models.NeedsPrediction
	if uc != nil {
		needs = contextstore.PredictNeeds(uc)
		rec.Needs = &needs
	}
	rec.Adaptation = adaptationFor(uc, needs)

	for _, n := range needs.Needs {
		rec.Insights = append(rec.Insights, fmt.Sprintf("Likely need: %s (%s)", n.Type, n.Reason))
	}
	var patternConf float64
	for _, p := range patterns {
		rec.Insights = append(rec.Insights, fmt.Sprintf("You often choose %s: %s", p.Type, p.Value))
		patternConf += p.Confidence
	}
	rec.Adaptation.Insights = rec.Insights

	var parts []float64
	if uc != nil && len(needs.Needs) > 0 {
		parts = append(parts, needs.Confidence)
	}
	if len(patterns) > 0 {
		parts = append(parts, patternConf/float64(len(patterns)))
	}
	rec.Confidence = 0.5
	if len(parts) > 0 {
		rec.Confidence = mean(parts)
	}
	return rec
}

// adaptationFor picks complexity from preference or expertise, tone from the
// top need and length from the time budget
func adaptationFor(uc *models.UserContext, needs models.NeedsPrediction) models.Adaptation {
	a := models.Adaptation{
		Complexity: models.ComplexityModerate,
		Tone:       "balanced",
		Length:     "medium",
	}
	if uc == nil {
		return a
	}

	switch uc.Preferences.ExpertiseLevel {
	case models.ExpertiseBeginner:
		a.Complexity = models.ComplexitySimple
	case models.ExpertiseAdvanced, models.ExpertiseExpert:
		a.Complexity = models.ComplexityDetailed
		a.Length = "detailed"
	}
	if uc.Preferences.PromptComplexity != "" {
		a.Complexity = uc.Preferences.PromptComplexity
	}
	if contextstore.ReadinessScore(uc) < lowReadiness {
		a.Complexity = models.ComplexitySimple
	}

	if len(needs.Needs) > 0 {
		switch needs.Needs[0].Type {
		case contextstore.NeedMotivationalSupport:
			a.Tone = "encouraging"
		case contextstore.NeedStressRelief:
			a.Tone = "calm"
		case contextstore.NeedLowIntensityWorkout:
			a.Tone = "gentle"
		}
	} else if uc.Preferences.CommunicationStyle != "" {
		a.Tone = uc.Preferences.CommunicationStyle
	}

	if m := uc.Environment.AvailableMinutes; m > 0 && m < 30 {
		a.Length = "short"
	}
	return a
}
