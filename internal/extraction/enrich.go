package extraction

import (
	"sort"
	"strings"
	"time"

	"github.com/benvon/smart-coach/internal/models"
)

// Enrichment kinds attached by EnrichData
const (
	EnrichmentGeographic  = "geographic"
	EnrichmentTemporal    = "temporal"
	EnrichmentUserContext = "user_context"
	EnrichmentNutrition   = "nutrition_lookup"
)

// Macros holds per-100g nutrition values
type Macros struct {
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
}

var nutritionTable = map[string]Macros{
	"chicken breast": {Calories: 165, Protein: 31, Carbs: 0, Fat: 3.6},
	"salmon":         {Calories: 208, Protein: 20, Carbs: 0, Fat: 13},
	"egg":            {Calories: 155, Protein: 13, Carbs: 1.1, Fat: 11},
	"rice":           {Calories: 130, Protein: 2.7, Carbs: 28, Fat: 0.3},
	"oats":           {Calories: 389, Protein: 16.9, Carbs: 66, Fat: 6.9},
	"banana":         {Calories: 89, Protein: 1.1, Carbs: 23, Fat: 0.3},
	"broccoli":       {Calories: 34, Protein: 2.8, Carbs: 7, Fat: 0.4},
	"greek yogurt":   {Calories: 59, Protein: 10, Carbs: 3.6, Fat: 0.4},
	"almonds":        {Calories: 579, Protein: 21, Carbs: 22, Fat: 50},
	"sweet potato":   {Calories: 86, Protein: 1.6, Carbs: 20, Fat: 0.1},
}

// knownFoods returns table keys longest first so multi-word foods win
func knownFoods() []string {
	foods := make([]string, 0, len(nutritionTable))
	for f := range nutritionTable {
		foods = append(foods, f)
	}
	sort.Slice(foods, func(i, j int) bool {
		if len(foods[i]) != len(foods[j]) {
			return len(foods[i]) > len(foods[j])
		}
		return foods[i] < foods[j]
	})
	return foods
}

// LookupNutrition returns per-100g macros for a known food
func LookupNutrition(food string) (Macros, bool) {
	m, ok := nutritionTable[strings.ToLower(strings.TrimSpace(food))]
	return m, ok
}

var (
	outdoorKeywords = []string{"park", "trail", "beach", "outdoor", "track", "field", "mountain"}
	indoorKeywords  = []string{"gym", "home", "studio", "office", "hotel", "garage", "indoor"}
)

// EnrichData attaches independent enrichments to extracted data. Overall
// confidence is the mean of attached enrichment confidences, or 1 with none.
func (p *Pipeline) EnrichData(data map[string]any, uc *models.UserContext) models.EnrichedData {
	out := models.EnrichedData{
		Data:        make(map[string]any, len(data)),
		Enrichments: []models.Enrichment{},
	}
	for k, v := range data {
		out.Data[k] = v
	}

	if e, ok := geographicEnrichment(uc); ok {
		out.Enrichments = append(out.Enrichments, e)
	}
	if e, ok := temporalEnrichment(uc); ok {
		out.Enrichments = append(out.Enrichments, e)
	}
	if e, ok := userContextEnrichment(uc); ok {
		out.Enrichments = append(out.Enrichments, e)
	}
	if e, ok := nutritionEnrichment(data); ok {
		out.Enrichments = append(out.Enrichments, e)
	}

	if len(out.Enrichments) == 0 {
		out.Confidence = 1
		return out
	}
	var sum float64
	for _, e := range out.Enrichments {
		sum += e.Confidence
	}
	out.Confidence = sum / float64(len(out.Enrichments))
	return out
}

func geographicEnrichment(uc *models.UserContext) (models.Enrichment, bool) {
	if uc == nil || uc.Environment.Location == "" {
		return models.Enrichment{}, false
	}
	loc := strings.ToLower(uc.Environment.Location)
	setting, confidence := "unknown", 0.5
	if containsAny(loc, outdoorKeywords) {
		setting, confidence = "outdoor", 0.8
	} else if containsAny(loc, indoorKeywords) {
		setting, confidence = "indoor", 0.8
	}
	return models.Enrichment{
		Kind:       EnrichmentGeographic,
		Values:     map[string]any{"location": uc.Environment.Location, "setting": setting},
		Confidence: confidence,
	}, true
}

func temporalEnrichment(uc *models.UserContext) (models.Enrichment, bool) {
	if uc == nil || uc.Timestamp.IsZero() {
		return models.Enrichment{}, false
	}
	t := uc.Timestamp
	return models.Enrichment{
		Kind: EnrichmentTemporal,
		Values: map[string]any{
			"time_of_day": TimeOfDay(t),
			"day_type":    DayType(t),
			"season":      Season(t),
		},
		Confidence: 0.9,
	}, true
}

func userContextEnrichment(uc *models.UserContext) (models.Enrichment, bool) {
	if uc == nil {
		return models.Enrichment{}, false
	}
	expertise := uc.Preferences.ExpertiseLevel
	if expertise == "" {
		expertise = models.ExpertiseBeginner
	}
	energy := uc.EmotionalState.Energy
	if energy == "" {
		energy = models.LevelMedium
	}
	return models.Enrichment{
		Kind:       EnrichmentUserContext,
		Values:     map[string]any{"expertise_level": string(expertise), "energy": string(energy)},
		Confidence: 0.8,
	}, true
}

func nutritionEnrichment(data map[string]any) (models.Enrichment, bool) {
	food, ok := data["food"].(string)
	if !ok {
		return models.Enrichment{}, false
	}
	macros, ok := LookupNutrition(food)
	if !ok {
		return models.Enrichment{}, false
	}
	grams := 100.0
	if g, ok := toFloat(data["grams"]); ok && g > 0 {
		grams = g
	}
	factor := grams / 100
	return models.Enrichment{
		Kind: EnrichmentNutrition,
		Values: map[string]any{
			"food":     food,
			"grams":    grams,
			"calories": macros.Calories * factor,
			"protein":  macros.Protein * factor,
			"carbs":    macros.Carbs * factor,
			"fat":      macros.Fat * factor,
		},
		Confidence: 0.75,
	}, true
}

// TimeOfDay buckets t into morning, afternoon, evening or night
func TimeOfDay(t time.Time) string {
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

// DayType reports weekday or weekend
func DayType(t time.Time) string {
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return "weekend"
	}
	return "weekday"
}

// Season returns the northern-hemisphere season for t's month
func Season(t time.Time) string {
	switch t.Month() {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "autumn"
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
