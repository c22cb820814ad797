package prompts

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/benvon/smart-coach/internal/models"
)

// Adjustment names recorded on a generated prompt
const (
	AdjustEncouragingTone = "encouraging_tone"
	AdjustLowEnergy       = "low_energy"
	AdjustStressPriority  = "stress_priority"
	AdjustExpress         = "express_structure"
	AdjustBodyweightOnly  = "bodyweight_only"

	expressMinutes = 30
)

// Style is the phrasing structure a backend prefers
type Style string

const (
	StyleInstruction    Style = "instruction"
	StyleConversational Style = "conversational"
	StyleMultimodal     Style = "multimodal"
)

// StyleForKind maps a backend kind onto its preferred phrasing. Image
// requests always use multimodal framing.
func StyleForKind(kind string, hasImage bool) Style {
	if hasImage {
		return StyleMultimodal
	}
	switch strings.ToLower(kind) {
	case "openai", "instruction":
		return StyleInstruction
	case "vision", "multimodal":
		return StyleMultimodal
	default:
		return StyleConversational
	}
}

func isStruggling(es models.EmotionalState) bool {
	return es.Motivation == models.MotivationStruggling || es.Motivation == models.MotivationLow
}

func isStressed(es models.EmotionalState) bool {
	return es.Stress == models.StressHigh || es.Stress == models.StressOverwhelming
}

func isShortOnTime(env models.Environment) bool {
	return env.AvailableMinutes > 0 && env.AvailableMinutes < expressMinutes
}

// applyAdjustments rewrites emotion and environment driven variables in
// place and returns the names of the adjustments applied
func applyAdjustments(uc *models.UserContext, vars map[string]string) []string {
	adjustments := []string{}
	es, env := uc.EmotionalState, uc.Environment

	if isStruggling(es) {
		vars["tone"] = "highly encouraging"
		vars["challenge_level"] = "gentle"
		adjustments = append(adjustments, AdjustEncouragingTone)
	}
	if es.Energy == models.LevelLow {
		vars["intensity"] = "light"
		vars["duration_hint"] = "shorter than usual"
		adjustments = append(adjustments, AdjustLowEnergy)
	}
	if isStressed(es) {
		vars["focus"] = "stress relief"
		adjustments = append(adjustments, AdjustStressPriority)
	}
	if isShortOnTime(env) {
		vars["structure"] = "express"
		adjustments = append(adjustments, AdjustExpress)
	}
	if env.Space == models.SpaceVeryLimited {
		vars["equipment"] = "bodyweight only"
		adjustments = append(adjustments, AdjustBodyweightOnly)
	}
	return adjustments
}

// conditionalSections returns extra prompt blocks triggered by the context
func conditionalSections(uc *models.UserContext) string {
	var b strings.Builder
	if isStressed(uc.EmotionalState) {
		b.WriteString("\n\nStress relief: open with two minutes of slow breathing and favor calm, rhythmic movement. ")
		b.WriteString("Avoid maximal efforts today.")
	}
	if isShortOnTime(uc.Environment) {
		fmt.Fprintf(&b, "\n\nTime crunch: the whole session must fit in %d minutes. "+
			"Use supersets or circuits and skip long rest periods.", uc.Environment.AvailableMinutes)
	}
	if isStruggling(uc.EmotionalState) {
		b.WriteString("\n\nMotivation recovery: acknowledge that showing up counts, set one small win for today ")
		b.WriteString("and celebrate it.")
	}
	return b.String()
}

func adaptToStyle(body string, style Style, vars map[string]string) string {
	switch style {
	case StyleInstruction:
		var b strings.Builder
		b.WriteString("## Task\n")
		b.WriteString(body)
		fmt.Fprintf(&b, "\n\n## Athlete\nExpertise: %s. Mood: %s. Energy: %s.", vars["expertise_level"], vars["mood"], vars["energy"])
		b.WriteString("\n\n## Response format\nUse short sections with bullet points and concrete numbers.")
		return b.String()
	case StyleMultimodal:
		return "Look carefully at the attached image and use what you see as context.\n\n" + body +
			"\n\nRefer to specific visual details when they support your advice."
	default:
		return "Let's talk through this together. " + body +
			"\n\nSo, with all of that in mind, what would you suggest?"
	}
}

var beginnerRewrites = []struct {
	term *regexp.Regexp
	to   string
}{
	{wholeWord("progressive overload"), "gradually increasing difficulty"},
	{wholeWord("hypertrophy"), "muscle growth"},
	{wholeWord("periodization"), "planned training phases"},
	{wholeWord("compound movements"), "multi-joint exercises"},
	{wholeWord("RPE"), "effort level"},
	{wholeWord("biomechanics"), "body mechanics"},
}

func wholeWord(term string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(term) + `\b`)
}

func adaptToExpertise(body string, level models.ExpertiseLevel) string {
	switch level {
	case models.ExpertiseAdvanced, models.ExpertiseExpert:
		return body + "\n\nWhere relevant, reference periodization, RPE targets and the biomechanics of each movement."
	case models.ExpertiseIntermediate:
		return body
	default:
		for _, r := range beginnerRewrites {
			body = r.term.ReplaceAllLiteralString(body, r.to)
		}
		return body + "\n\nUse simple, jargon-free language and explain any exercise names."
	}
}
