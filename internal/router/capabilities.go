package router

import (
	"regexp"
	"time"

	"github.com/benvon/smart-coach/internal/models"
)

// CapabilityInferrer derives the capabilities a request needs
type CapabilityInferrer func(prompt string, uc *models.UserContext) []string

var (
	imageKeywords = regexp.MustCompile(`(?i)\b(image|images|photo|photos|picture|pictures|screenshot|selfie)\b`)
	dataKeywords  = regexp.MustCompile(`(?i)\b(data|analy[sz]e|analysis|analytics|stats|statistics|metrics|chart|trend|trends)\b`)
)

// InferCapabilities returns the capabilities required by a prompt: always
// text_generation, plus image_analysis for image mentions, data_extraction for
// data or analysis mentions, and reasoning for expert users.
func InferCapabilities(prompt string, uc *models.UserContext) []string {
	caps := []string{models.CapabilityTextGeneration}
	if imageKeywords.MatchString(prompt) {
		caps = append(caps, models.CapabilityImageAnalysis)
	}
	if dataKeywords.MatchString(prompt) {
		caps = append(caps, models.CapabilityDataExtraction)
	}
	if uc != nil && uc.Preferences.ExpertiseLevel == models.ExpertiseExpert {
		caps = append(caps, models.CapabilityReasoning)
	}
	return caps
}

// ResponseTimeBudget maps the user's available minutes to the maximum
// acceptable backend latency. Unknown availability gets the widest budget.
func ResponseTimeBudget(uc *models.UserContext) time.Duration {
	if uc == nil || uc.Environment.AvailableMinutes <= 0 {
		return 30 * time.Second
	}
	switch minutes := uc.Environment.AvailableMinutes; {
	case minutes < 15:
		return 5 * time.Second
	case minutes < 30:
		return 10 * time.Second
	default:
		return 30 * time.Second
	}
}

// EstimateTokens approximates prompt tokens plus a completion allowance
func EstimateTokens(prompt string) int {
	return len(prompt)/4 + completionAllowance
}

const completionAllowance = 500
