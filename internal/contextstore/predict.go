package contextstore

import (
	"math"
	"sort"

	"github.com/benvon/smart-coach/internal/models"
)

// Need types produced by PredictNeeds
const (
	NeedMotivationalSupport   = "motivational_support"
	NeedLowIntensityWorkout   = "low_intensity_workout"
	NeedStressRelief          = "stress_relief"
	NeedQuickWorkout          = "quick_workout"
	NeedSpaceEfficientSession = "space_efficient_exercise"

	maxPredictedNeeds = 5
	shortSessionLimit = 30
)

// PredictNeeds applies fixed rules to a context and returns the candidate
// needs sorted by descending priority
func PredictNeeds(ctx *models.UserContext) models.NeedsPrediction {
	prediction := models.NeedsPrediction{
		Needs:     []models.PredictedNeed{},
		Timeframe: models.TimeframeNextFewSessions,
	}
	if ctx == nil {
		return prediction
	}

	es := ctx.EmotionalState
	env := ctx.Environment
	shortOnTime := env.AvailableMinutes > 0 && env.AvailableMinutes < shortSessionLimit

	if es.Motivation == models.MotivationLow || es.Motivation == models.MotivationStruggling {
		prediction.Needs = append(prediction.Needs, models.PredictedNeed{
			Type: NeedMotivationalSupport, Priority: 0.9, Reason: "motivation is " + string(es.Motivation),
		})
	}
	if es.Energy == models.LevelLow {
		prediction.Needs = append(prediction.Needs, models.PredictedNeed{
			Type: NeedLowIntensityWorkout, Priority: 0.8, Reason: "energy is low",
		})
	}
	if es.Stress == models.StressHigh || es.Stress == models.StressOverwhelming {
		prediction.Needs = append(prediction.Needs, models.PredictedNeed{
			Type: NeedStressRelief, Priority: 0.85, Reason: "stress is " + string(es.Stress),
		})
	}
	if shortOnTime {
		prediction.Needs = append(prediction.Needs, models.PredictedNeed{
			Type: NeedQuickWorkout, Priority: 0.7, Reason: "less than 30 minutes available",
		})
	}
	if env.Space == models.SpaceVeryLimited {
		prediction.Needs = append(prediction.Needs, models.PredictedNeed{
			Type: NeedSpaceEfficientSession, Priority: 0.6, Reason: "space is very limited",
		})
	}

	sort.SliceStable(prediction.Needs, func(i, j int) bool {
		return prediction.Needs[i].Priority > prediction.Needs[j].Priority
	})
	if len(prediction.Needs) > maxPredictedNeeds {
		prediction.Needs = prediction.Needs[:maxPredictedNeeds]
	}

	if n := len(prediction.Needs); n > 0 {
		var sum float64
		for _, need := range prediction.Needs {
			sum += need.Priority
		}
		prediction.Confidence = math.Min(sum/float64(n)*0.8, 1)
	}

	switch {
	case es.Stress == models.StressOverwhelming || es.Motivation == models.MotivationStruggling:
		prediction.Timeframe = models.TimeframeImmediate
	case shortOnTime:
		prediction.Timeframe = models.TimeframeNextSession
	}
	return prediction
}

// ReadinessScore estimates in [0,1] how ready the user is for demanding work.
// It averages normalized energy, motivation and mood with inverted stress;
// unset fields count as their scale default.
func ReadinessScore(ctx *models.UserContext) float64 {
	if ctx == nil {
		return 0.5
	}
	es := ctx.EmotionalState
	sum := models.EnergyScale.Normalized(string(es.Energy)) +
		models.MotivationScale.Normalized(string(es.Motivation)) +
		models.MoodScale.Normalized(string(es.Mood)) +
		(1 - models.StressScale.Normalized(string(es.Stress)))
	return sum / 4
}
