package extraction

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/benvon/smart-coach/internal/models"
)

// Pattern extracts data points for one target type from text
type Pattern interface {
	Extract(text string) []models.DataPoint
}

// PatternFunc adapts a function into a Pattern
type PatternFunc func(text string) []models.DataPoint

// Extract implements Pattern
func (f PatternFunc) Extract(text string) []models.DataPoint {
	return f(text)
}

// DefaultPatterns returns the built-in pattern library
func DefaultPatterns() map[models.ExtractionTargetType]Pattern {
	return map[models.ExtractionTargetType]Pattern{
		models.TargetWorkout:       PatternFunc(extractWorkout),
		models.TargetNutrition:     PatternFunc(extractNutrition),
		models.TargetMeasurement:   PatternFunc(extractMeasurement),
		models.TargetProgressPhoto: PatternFunc(extractProgressPhoto),
	}
}

var (
	exerciseRe = regexp.MustCompile(`(?i)\b(back squats?|front squats?|squats?|deadlifts?|bench press|overhead press|` +
		`barbell rows?|rows?|pull-?ups?|chin-?ups?|push-?ups?|lunges?|curls?|dips|planks?|burpees|` +
		`running|cycling|swimming|rowing)\b`)
	setsRepsRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:x|×|sets?\s+of)\s*(\d{1,3})\b`)
	loadRe     = regexp.MustCompile(`(?i)\b(\d{1,4}(?:\.\d+)?)\s*(kg|kgs|lbs?|pounds)\b`)
	durationRe = regexp.MustCompile(`(?i)\b(\d{1,3}(?:\.\d+)?)\s*(minutes?|mins?|hours?|hrs?)\b`)
	distanceRe = regexp.MustCompile(`(?i)\b(\d{1,3}(?:\.\d+)?)\s*(km|kilometers?|mi|miles?)\b`)

	caloriesRe = regexp.MustCompile(`(?i)\b(\d{2,5})\s*(?:kcal|cals?|calories)\b`)

	bodyWeightRe = regexp.MustCompile(`(?i)\b(?:body\s*weight|weigh-in|weighed(?:\s+in)?|weigh(?:\s+in)?)\s*(?:is|at|of|:|=)?\s*(\d{2,3}(?:\.\d+)?)\s*(kg|kgs|lbs?|pounds)\b`)
	bodyFatRe    = regexp.MustCompile(`(?i)\b(?:body\s*fat|bf)\s*(?:is|at|of|:|=)?\s*(\d{1,2}(?:\.\d+)?)\s*%`)
	waistRe      = regexp.MustCompile(`(?i)\bwaist\s*(?:is|at|of|:|=)?\s*(\d{2,3}(?:\.\d+)?)\s*(cm|in|inch|inches)\b`)

	photoDateRe = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	poseRe      = regexp.MustCompile(`(?i)\b(front|back|side|profile|relaxed|flexed)\b`)
)

var macroPatterns = map[string][]*regexp.Regexp{
	"protein": {
		regexp.MustCompile(`(?i)\b(\d{1,3}(?:\.\d+)?)\s*g(?:rams)?\s+(?:of\s+)?protein\b`),
		regexp.MustCompile(`(?i)\bprotein\s*[:=]?\s*(\d{1,3}(?:\.\d+)?)\s*g\b`),
	},
	"carbs": {
		regexp.MustCompile(`(?i)\b(\d{1,3}(?:\.\d+)?)\s*g(?:rams)?\s+(?:of\s+)?(?:carbs|carbohydrates)\b`),
		regexp.MustCompile(`(?i)\b(?:carbs|carbohydrates)\s*[:=]?\s*(\d{1,3}(?:\.\d+)?)\s*g\b`),
	},
	"fat": {
		regexp.MustCompile(`(?i)\b(\d{1,3}(?:\.\d+)?)\s*g(?:rams)?\s+(?:of\s+)?fats?\b`),
		regexp.MustCompile(`(?i)\bfats?\s*[:=]?\s*(\d{1,3}(?:\.\d+)?)\s*g\b`),
	},
}

func extractWorkout(text string) []models.DataPoint {
	var points []models.DataPoint
	for _, m := range exerciseRe.FindAllStringSubmatch(text, -1) {
		points = append(points, models.DataPoint{Field: "exercise", Value: strings.ToLower(m[1]), Raw: m[0], Score: 0.8})
	}
	for _, m := range setsRepsRe.FindAllStringSubmatch(text, -1) {
		sets, _ := strconv.Atoi(m[1])
		reps, _ := strconv.Atoi(m[2])
		points = append(points,
			models.DataPoint{Field: "sets", Value: sets, Raw: m[0], Score: 0.9},
			models.DataPoint{Field: "reps", Value: reps, Raw: m[0], Score: 0.9},
		)
	}
	bw := bodyWeightRe.FindStringIndex(text)
	for _, idx := range loadRe.FindAllStringSubmatchIndex(text, -1) {
		if bw != nil && idx[0] >= bw[0] && idx[0] < bw[1] {
			continue
		}
		raw, value, unit := text[idx[0]:idx[1]], text[idx[2]:idx[3]], text[idx[4]:idx[5]]
		points = append(points, models.DataPoint{Field: "weight", Value: parseFloat(value), Unit: massUnit(unit), Raw: raw, Score: 0.85})
	}
	for _, m := range durationRe.FindAllStringSubmatch(text, -1) {
		minutes := parseFloat(m[1])
		if strings.HasPrefix(strings.ToLower(m[2]), "h") {
			minutes *= 60
		}
		points = append(points, models.DataPoint{Field: "duration", Value: minutes, Unit: "min", Raw: m[0], Score: 0.8})
	}
	for _, m := range distanceRe.FindAllStringSubmatch(text, -1) {
		unit := "km"
		if strings.HasPrefix(strings.ToLower(m[2]), "mi") {
			unit = "mi"
		}
		points = append(points, models.DataPoint{Field: "distance", Value: parseFloat(m[1]), Unit: unit, Raw: m[0], Score: 0.8})
	}
	return points
}

func extractNutrition(text string) []models.DataPoint {
	var points []models.DataPoint
	for _, m := range caloriesRe.FindAllStringSubmatch(text, -1) {
		kcal, _ := strconv.Atoi(m[1])
		points = append(points, models.DataPoint{Field: "calories", Value: kcal, Unit: "kcal", Raw: m[0], Score: 0.9})
	}

	macros := make([]string, 0, len(macroPatterns))
	for name := range macroPatterns {
		macros = append(macros, name)
	}
	sort.Strings(macros)
	for _, name := range macros {
		for _, re := range macroPatterns[name] {
			if m := re.FindStringSubmatch(text); m != nil {
				points = append(points, models.DataPoint{Field: name, Value: parseFloat(m[1]), Unit: "g", Raw: m[0], Score: 0.85})
				break
			}
		}
	}

	lower := strings.ToLower(text)
	for _, food := range knownFoods() {
		if strings.Contains(lower, food) {
			points = append(points, models.DataPoint{Field: "food", Value: food, Raw: food, Score: 0.6})
		}
	}
	return points
}

func extractMeasurement(text string) []models.DataPoint {
	var points []models.DataPoint
	if m := bodyWeightRe.FindStringSubmatch(text); m != nil {
		points = append(points, models.DataPoint{Field: "body_weight", Value: parseFloat(m[1]), Unit: massUnit(m[2]), Raw: m[0], Score: 0.9})
	}
	if m := bodyFatRe.FindStringSubmatch(text); m != nil {
		points = append(points, models.DataPoint{Field: "body_fat", Value: parseFloat(m[1]), Unit: "%", Raw: m[0], Score: 0.9})
	}
	if m := waistRe.FindStringSubmatch(text); m != nil {
		unit := "cm"
		if strings.HasPrefix(strings.ToLower(m[2]), "in") {
			unit = "in"
		}
		points = append(points, models.DataPoint{Field: "waist", Value: parseFloat(m[1]), Unit: unit, Raw: m[0], Score: 0.85})
	}
	return points
}

func extractProgressPhoto(text string) []models.DataPoint {
	var points []models.DataPoint
	if m := photoDateRe.FindStringSubmatch(text); m != nil {
		points = append(points, models.DataPoint{Field: "date", Value: m[1], Raw: m[0], Score: 0.9})
	}
	seen := make(map[string]bool)
	for _, m := range poseRe.FindAllStringSubmatch(text, -1) {
		pose := strings.ToLower(m[1])
		if seen[pose] {
			continue
		}
		seen[pose] = true
		points = append(points, models.DataPoint{Field: "pose", Value: pose, Raw: m[0], Score: 0.6})
	}
	return points
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func massUnit(raw string) string {
	if strings.HasPrefix(strings.ToLower(raw), "k") {
		return "kg"
	}
	return "lb"
}
