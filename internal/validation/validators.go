package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	// These should never fail in normal operation, but log if they do
	enums := map[string]validator.Func{
		"mood":              enumValidator(moodValues),
		"level":             enumValidator(levelValues),
		"motivation":        enumValidator(motivationValues),
		"stress":            enumValidator(stressValues),
		"space_tier":        enumValidator(spaceValues),
		"noise_tier":        enumValidator(noiseValues),
		"expertise":         enumValidator(expertiseValues),
		"complexity":        enumValidator(complexityValues),
		"template_category": validateTemplateCategory,
	}
	for tag, fn := range enums {
		if err := Validate.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("failed to register %s validator: %v", tag, err))
		}
	}
}

var (
	moodValues = []string{
		string(models.MoodExcellent), string(models.MoodGood), string(models.MoodNeutral),
		string(models.MoodLow), string(models.MoodPoor),
	}
	levelValues = []string{
		string(models.LevelHigh), string(models.LevelMedium), string(models.LevelLow),
	}
	motivationValues = []string{
		string(models.MotivationHigh), string(models.MotivationMedium),
		string(models.MotivationLow), string(models.MotivationStruggling),
	}
	stressValues = []string{
		string(models.StressLow), string(models.StressModerate),
		string(models.StressHigh), string(models.StressOverwhelming),
	}
	spaceValues = []string{
		string(models.SpaceUnlimited), string(models.SpaceModerate),
		string(models.SpaceLimited), string(models.SpaceVeryLimited),
	}
	noiseValues = []string{
		string(models.NoiseQuiet), string(models.NoiseModerate), string(models.NoiseLoud),
	}
	expertiseValues = []string{
		string(models.ExpertiseBeginner), string(models.ExpertiseIntermediate),
		string(models.ExpertiseAdvanced), string(models.ExpertiseExpert),
	}
	complexityValues = []string{
		string(models.ComplexitySimple), string(models.ComplexityModerate), string(models.ComplexityDetailed),
	}
)

// enumValidator returns a validator func accepting only the given values
func enumValidator(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		for _, a := range allowed {
			if value == a {
				return true
			}
		}
		return false
	}
}

// validateTemplateCategory validates that a string is a known template category
func validateTemplateCategory(fl validator.FieldLevel) bool {
	return models.IsValidCategory(models.TemplateCategory(fl.Field().String()))
}

// Struct validates s and converts the first failure into a models.ValidationError
func Struct(s any) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return models.NewValidationError(fieldPath(fe), describe(fe))
	}
	return models.NewValidationError("", err.Error())
}

// fieldPath strips the root struct name from the namespace (UserContext.EmotionalState.Mood -> EmotionalState.Mood)
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s item(s)", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	default:
		return fmt.Sprintf("invalid value %q (%s)", fmt.Sprint(fe.Value()), fe.Tag())
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateMood validates a Mood value
func ValidateMood(value models.Mood) error {
	if !models.IsValidMood(value) {
		return models.NewValidationError("EmotionalState.Mood",
			fmt.Sprintf("invalid mood: %s (must be one of %s)", value, strings.Join(moodValues, ", ")))
	}
	return nil
}

// ValidateCategory validates a TemplateCategory value
func ValidateCategory(value models.TemplateCategory) error {
	if !models.IsValidCategory(value) {
		return models.NewValidationError("Category", fmt.Sprintf("unknown template category: %s", value))
	}
	return nil
}
