package prompts

import (
	"math"
	"strings"
	"unicode"

	"github.com/benvon/smart-coach/internal/models"
)

const idealSentenceWords = 20

// assessQuality scores a rendered prompt on clarity, specificity and
// personalization, each in [0,1]
func assessQuality(p *models.GeneratedPrompt, uc *models.UserContext) models.PromptQuality {
	q := models.PromptQuality{Length: len(p.Prompt)}
	q.Clarity = clarity(p.Prompt)
	q.Specificity = specificity(p.Prompt)
	q.Personalization = personalization(p, uc)
	q.Overall = (q.Clarity + q.Specificity + q.Personalization) / 3
	return q
}

// clarity penalizes long average sentence length
func clarity(text string) float64 {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '?' || r == '!' || r == '\n'
	})
	var count, words int
	for _, s := range sentences {
		if n := len(strings.Fields(s)); n > 0 {
			count++
			words += n
		}
	}
	if count == 0 {
		return 0
	}
	avg := float64(words) / float64(count)
	return clamp01(1 - math.Max(0, avg-idealSentenceWords)/30)
}

// specificity rewards numbers and concrete units in the prompt
func specificity(text string) float64 {
	numeric := 0
	for _, tok := range strings.Fields(text) {
		if strings.IndexFunc(tok, unicode.IsDigit) >= 0 {
			numeric++
		}
	}
	return clamp01(0.4 + 0.1*float64(numeric))
}

// personalization rewards context-driven adjustments and populated context
func personalization(p *models.GeneratedPrompt, uc *models.UserContext) float64 {
	score := 0.15 * float64(len(p.Adjustments))
	if uc == nil {
		return clamp01(score)
	}
	signals := []bool{
		uc.EmotionalState.Mood != "",
		uc.EmotionalState.Energy != "",
		uc.Environment.Location != "",
		uc.Environment.AvailableMinutes > 0,
		uc.Preferences.ExpertiseLevel != "",
	}
	for _, s := range signals {
		if s {
			score += 0.1
		}
	}
	return clamp01(score)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
