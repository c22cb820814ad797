package prompts

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/benvon/smart-coach/internal/models"
	"go.uber.org/zap"
)

func struggling() *models.UserContext {
	return &models.UserContext{
		UserID:    "u1",
		SessionID: "s1",
		EmotionalState: models.EmotionalState{
			Mood:       models.MoodLow,
			Energy:     models.LevelLow,
			Motivation: models.MotivationStruggling,
			Stress:     models.StressHigh,
		},
		Environment: models.Environment{
			Location:         "hotel room",
			AvailableMinutes: 15,
			Space:            models.SpaceVeryLimited,
		},
		Preferences: models.Preferences{ExpertiseLevel: models.ExpertiseBeginner},
		Timestamp:   time.Date(2026, 5, 5, 7, 30, 0, 0, time.UTC),
	}
}

func TestGenerate_AdjustmentsAndSections(t *testing.T) {
	t.Parallel()

	g := New(zap.NewNop())
	got, err := g.Generate(context.Background(), GenerationRequest{
		Context:    struggling(),
		Category:   models.CategoryWorkoutGeneration,
		TargetKind: "simulated",
		UserInput:  "quick full body session",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if got.TemplateID != "workout-standard" {
		t.Errorf("TemplateID = %s, want workout-standard", got.TemplateID)
	}
	wantAdjustments := []string{AdjustEncouragingTone, AdjustLowEnergy, AdjustStressPriority, AdjustExpress, AdjustBodyweightOnly}
	if strings.Join(got.Adjustments, ",") != strings.Join(wantAdjustments, ",") {
		t.Errorf("Adjustments = %v, want %v", got.Adjustments, wantAdjustments)
	}
	for _, want := range []string{
		"express workout",
		"bodyweight only",
		"15 minutes",
		"Stress relief:",
		"Time crunch:",
		"Motivation recovery:",
		"quick full body session",
		"jargon-free",
	} {
		if !strings.Contains(got.Prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, got.Prompt)
		}
	}
	if strings.Contains(got.Prompt, "{{") {
		t.Errorf("prompt has unresolved slots:\n%s", got.Prompt)
	}
	if !strings.Contains(got.SystemMessage, "highly encouraging") {
		t.Errorf("SystemMessage = %q", got.SystemMessage)
	}
	if got.PredictedEffectiveness != 0.5 {
		t.Errorf("PredictedEffectiveness = %v, want 0.5", got.PredictedEffectiveness)
	}
	q := got.Quality
	if q.Length != len(got.Prompt) || q.Overall <= 0 || q.Overall > 1 {
		t.Errorf("unexpected quality %+v", q)
	}
}

func TestGenerate_StyleByKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		kind     string
		hasImage bool
		marker   string
	}{
		{name: "instruction headers", kind: "openai", marker: "## Task"},
		{name: "conversational", kind: "simulated", marker: "Let's talk through this together."},
		{name: "multimodal for images", kind: "openai", hasImage: true, marker: "attached image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := New(zap.NewNop())
			got, err := g.Generate(context.Background(), GenerationRequest{
				Category:   models.CategoryGeneralCoaching,
				TargetKind: tt.kind,
				HasImage:   tt.hasImage,
				UserInput:  "how often should I train?",
			})
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(got.Prompt, tt.marker) {
				t.Errorf("prompt missing %q:\n%s", tt.marker, got.Prompt)
			}
		})
	}
}

func TestGenerate_AdvancedExpertise(t *testing.T) {
	t.Parallel()

	g := New(zap.NewNop())
	uc := &models.UserContext{Preferences: models.Preferences{ExpertiseLevel: models.ExpertiseExpert}}
	got, err := g.Generate(context.Background(), GenerationRequest{Context: uc, Category: models.CategoryFormGuidance})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.Prompt, "periodization") {
		t.Errorf("expert prompt should mention periodization:\n%s", got.Prompt)
	}
}

func TestAdaptToExpertise_BeginnerRewritesWholeWords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		want    string
		notWant string
	}{
		{name: "standalone term", body: "Keep each set at RPE 7.", want: "Keep each set at effort level 7."},
		{name: "term inside a word", body: "Stay on the SHARPEST form cues.", want: "SHARPEST", notWant: "effort level"},
		{name: "phrase", body: "Apply progressive overload weekly.", want: "gradually increasing difficulty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := adaptToExpertise(tt.body, models.ExpertiseBeginner)
			if !strings.Contains(got, tt.want) {
				t.Errorf("adaptToExpertise() = %q, want it to contain %q", got, tt.want)
			}
			if tt.notWant != "" && strings.Contains(got, tt.notWant) {
				t.Errorf("adaptToExpertise() = %q, must not contain %q", got, tt.notWant)
			}
		})
	}
}

func TestTemplateScore(t *testing.T) {
	t.Parallel()

	tmpl := models.PromptTemplate{
		Effectiveness:  0.6,
		Complexity:     models.ComplexityDetailed,
		TargetServices: []string{"openai"},
	}
	tests := []struct {
		name       string
		complexity models.Complexity
		kind       string
		want       float64
	}{
		{name: "base only", complexity: models.ComplexitySimple, kind: "simulated", want: 0.6},
		{name: "complexity match", complexity: models.ComplexityDetailed, kind: "simulated", want: 0.8},
		{name: "both", complexity: models.ComplexityDetailed, kind: "openai", want: 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TemplateScore(tmpl, tt.complexity, "", tt.kind); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("TemplateScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerate_SelectsHighestScore(t *testing.T) {
	t.Parallel()

	g := New(zap.NewNop(), WithoutDefaults())
	for _, tmpl := range []models.PromptTemplate{
		{ID: "a", Name: "A", Category: models.CategoryRecovery, Body: "A {{user_input}}", Effectiveness: 0.7},
		{ID: "b", Name: "B", Category: models.CategoryRecovery, Body: "B {{user_input}}", Effectiveness: 0.6,
			Complexity: models.ComplexitySimple},
	} {
		if err := g.RegisterTemplate(tmpl); err != nil {
			t.Fatal(err)
		}
	}

	got, err := g.Generate(context.Background(), GenerationRequest{
		Category:   models.CategoryRecovery,
		Complexity: models.ComplexitySimple,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.TemplateID != "b" {
		t.Errorf("TemplateID = %s, want b (0.6+0.2 beats 0.7)", got.TemplateID)
	}

	// No template in the category and no general fallback.
	if _, err := g.Generate(context.Background(), GenerationRequest{Category: models.CategoryMotivation}); !models.IsNotFoundError(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestEffectivenessTracking(t *testing.T) {
	t.Parallel()

	g := New(zap.NewNop())
	if got := g.PredictEffectiveness("general-coach"); got != 0.5 {
		t.Fatalf("default prediction = %v, want 0.5", got)
	}
	for _, s := range []float64{0.9, 0.7, 1.4} {
		if err := g.RecordEffectiveness("general-coach", s); err != nil {
			t.Fatal(err)
		}
	}
	// 1.4 is clamped to 1.
	want := (0.9 + 0.7 + 1.0) / 3
	if got := g.PredictEffectiveness("general-coach"); math.Abs(got-want) > 1e-9 {
		t.Errorf("PredictEffectiveness() = %v, want %v", got, want)
	}
	tmpl, _ := g.GetTemplate("general-coach")
	if math.Abs(tmpl.Effectiveness-want) > 1e-9 {
		t.Errorf("template effectiveness = %v, want %v", tmpl.Effectiveness, want)
	}
	if err := g.RecordEffectiveness("missing", 0.5); !models.IsNotFoundError(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestUnresolvedSlots(t *testing.T) {
	t.Parallel()

	got := UnresolvedSlots("{{ a }} {{b}} {{a}} {{c}}", map[string]string{"b": "x"})
	if strings.Join(got, ",") != "a,c" {
		t.Errorf("UnresolvedSlots() = %v, want [a c]", got)
	}
}
