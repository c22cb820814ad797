package contextstore

import (
	"fmt"
	"math"
	"sort"

	"github.com/benvon/smart-coach/internal/logger"
	"github.com/benvon/smart-coach/internal/models"
	"go.uber.org/zap"
)

const (
	minHistoryForAnalysis = 2
	minHourOccurrences    = 3
	moodConsistencyShare  = 0.6
	locationShare         = 0.5
	minTrendPoints        = 3
	minTrendSlope         = 0.1
	moodDropThreshold     = 2
	optimalTimingMinConf  = 0.7
)

// Pattern types reported by AnalyzePatterns
const (
	PatternTimeOfDay          = "time_of_day"
	PatternMoodConsistency    = "mood_consistency"
	PatternLocationPreference = "location_preference"

	AnomalyMoodDrop = "mood_drop"

	InsightMotivationDecline = "motivation_decline"
	InsightOptimalTiming     = "optimal_timing"
)

// AnalyzePatterns derives patterns, trends, anomalies and insights from the
// user's history filtered by tr. A nil range covers the whole history.
func (s *Store) AnalyzePatterns(userID string, tr *models.TimeRange) models.ContextAnalysis {
	history := s.GetHistory(userID)
	filtered := history[:0]
	for _, c := range history {
		if tr.Contains(c.Timestamp) {
			filtered = append(filtered, c)
		}
	}

	analysis := models.ContextAnalysis{
		Patterns:  []models.Pattern{},
		Trends:    []models.Trend{},
		Anomalies: []models.Anomaly{},
		Insights:  []models.ContextInsight{},
	}
	if len(filtered) < minHistoryForAnalysis {
		return analysis
	}

	analysis.Patterns = append(analysis.Patterns, timeOfDayPatterns(filtered)...)
	if p, ok := moodConsistency(filtered); ok {
		analysis.Patterns = append(analysis.Patterns, p)
	}
	if p, ok := locationPreference(filtered); ok {
		analysis.Patterns = append(analysis.Patterns, p)
	}
	analysis.Trends = detectTrends(filtered)
	analysis.Anomalies = detectAnomalies(filtered)
	analysis.Insights = synthesizeInsights(analysis.Patterns, analysis.Trends)

	s.logger.Debug("context_analyzed",
		zap.String("user_id", logger.SanitizeUserID(userID)),
		zap.Int("entries", len(filtered)),
		zap.Int("patterns", len(analysis.Patterns)),
		zap.Int("trends", len(analysis.Trends)),
		zap.Int("anomalies", len(analysis.Anomalies)),
	)
	return analysis
}

func timeOfDayPatterns(history []*models.UserContext) []models.Pattern {
	counts := make(map[int]int)
	for _, c := range history {
		counts[c.Timestamp.Hour()]++
	}
	hours := make([]int, 0, len(counts))
	for h := range counts {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	var patterns []models.Pattern
	for _, h := range hours {
		count := counts[h]
		if count < minHourOccurrences {
			continue
		}
		confidence := math.Min(float64(count)/float64(len(history))*2, 1)
		patterns = append(patterns, models.Pattern{
			Type:       PatternTimeOfDay,
			Value:      fmt.Sprintf("%02d:00", h),
			Confidence: confidence,
			Frequency:  count,
			Impact:     impactFor(confidence),
		})
	}
	return patterns
}

func moodConsistency(history []*models.UserContext) (models.Pattern, bool) {
	value, count := dominant(history, func(c *models.UserContext) string {
		return string(c.EmotionalState.Mood)
	})
	share := float64(count) / float64(len(history))
	if value == "" || share <= moodConsistencyShare {
		return models.Pattern{}, false
	}
	return models.Pattern{
		Type:       PatternMoodConsistency,
		Value:      value,
		Confidence: share,
		Frequency:  count,
		Impact:     impactFor(share),
	}, true
}

func locationPreference(history []*models.UserContext) (models.Pattern, bool) {
	value, count := dominant(history, func(c *models.UserContext) string {
		return c.Environment.Location
	})
	share := float64(count) / float64(len(history))
	if value == "" || share <= locationShare {
		return models.Pattern{}, false
	}
	return models.Pattern{
		Type:       PatternLocationPreference,
		Value:      value,
		Confidence: share,
		Frequency:  count,
		Impact:     impactFor(share),
	}, true
}

// dominant returns the most frequent non-empty key and its count; ties go to
// the lexically smallest key
func dominant(history []*models.UserContext, key func(*models.UserContext) string) (string, int) {
	counts := make(map[string]int)
	for _, c := range history {
		if k := key(c); k != "" {
			counts[k]++
		}
	}
	best, bestCount := "", 0
	for k, n := range counts {
		if n > bestCount || (n == bestCount && k < best) {
			best, bestCount = k, n
		}
	}
	return best, bestCount
}

func impactFor(confidence float64) string {
	if confidence > 0.7 {
		return "high"
	}
	return "medium"
}

func detectTrends(history []*models.UserContext) []models.Trend {
	trends := []models.Trend{}
	series := []struct {
		metric string
		scale  *models.OrdinalScale
		value  func(*models.UserContext) string
	}{
		{"motivation", models.MotivationScale, func(c *models.UserContext) string { return string(c.EmotionalState.Motivation) }},
		{"energy", models.EnergyScale, func(c *models.UserContext) string { return string(c.EmotionalState.Energy) }},
	}
	for _, sr := range series {
		var values []float64
		for _, c := range history {
			if n, ok := sr.scale.Lookup(sr.value(c)); ok {
				values = append(values, float64(n))
			}
		}
		if len(values) < minTrendPoints {
			continue
		}
		slope := regressionSlope(values)
		if math.Abs(slope) < minTrendSlope {
			continue
		}
		direction := models.TrendIncreasing
		if slope < 0 {
			direction = models.TrendDecreasing
		}
		trends = append(trends, models.Trend{
			Metric:       sr.metric,
			Direction:    direction,
			Magnitude:    math.Abs(slope),
			Significance: math.Min(math.Abs(slope)*2, 1),
		})
	}
	return trends
}

// regressionSlope fits value = a + b*index by least squares and returns b
func regressionSlope(values []float64) float64 {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func detectAnomalies(history []*models.UserContext) []models.Anomaly {
	anomalies := []models.Anomaly{}
	for i := 1; i < len(history); i++ {
		prev := models.MoodScale.Number(string(history[i-1].EmotionalState.Mood))
		cur := models.MoodScale.Number(string(history[i].EmotionalState.Mood))
		if prev-cur >= moodDropThreshold {
			desc := fmt.Sprintf("mood dropped from %s to %s",
				history[i-1].EmotionalState.Mood, history[i].EmotionalState.Mood)
			anomalies = append(anomalies, models.Anomaly{
				Type:        AnomalyMoodDrop,
				Severity:    models.SeverityMedium,
				Description: desc,
				Timestamp:   history[i].Timestamp,
			})
		}
	}
	return anomalies
}

func synthesizeInsights(patterns []models.Pattern, trends []models.Trend) []models.ContextInsight {
	insights := []models.ContextInsight{}
	for _, t := range trends {
		if t.Metric == "motivation" && t.Direction == models.TrendDecreasing {
			insights = append(insights, models.ContextInsight{
				Type:           InsightMotivationDecline,
				Description:    "Motivation has been declining across recent sessions",
				Recommendation: "Shorten sessions and add encouraging, achievable goals",
				Confidence:     t.Significance,
			})
		}
	}
	for _, p := range patterns {
		if p.Type == PatternTimeOfDay && p.Confidence > optimalTimingMinConf {
			insights = append(insights, models.ContextInsight{
				Type:           InsightOptimalTiming,
				Description:    fmt.Sprintf("Most sessions happen around %s", p.Value),
				Recommendation: fmt.Sprintf("Schedule key workouts around %s", p.Value),
				Confidence:     p.Confidence,
			})
		}
	}
	return insights
}
