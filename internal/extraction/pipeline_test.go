package extraction

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/benvon/smart-coach/internal/models"
	"go.uber.org/zap"
)

func fixedOCR(name, text string, conf float64) OCRProvider {
	return OCRFunc{
		ProviderName: name,
		Fn: func(ctx context.Context, image []byte) (models.OCRResult, error) {
			return models.OCRResult{Text: text, Confidence: conf}, nil
		},
	}
}

func failingOCR(name string) OCRProvider {
	return OCRFunc{
		ProviderName: name,
		Fn: func(ctx context.Context, image []byte) (models.OCRResult, error) {
			return models.OCRResult{}, errors.New("engine crashed")
		},
	}
}

func TestExtractFromImage_PicksBestScore(t *testing.T) {
	t.Parallel()

	long := "Back squats 5x5 at 100kg, then 20 minutes of rowing"
	p := New(zap.NewNop(),
		WithOCRProvider(fixedOCR("short", "squats", 0.95)),
		WithOCRProvider(fixedOCR("long", long, 0.8)),
		WithOCRProvider(fixedOCR("noisy", "zz", 0.1)),
		WithOCRProvider(failingOCR("broken")),
	)

	res, err := p.ExtractFromImage(context.Background(), []byte("raw"), []models.ExtractionTarget{
		{Type: models.TargetWorkout},
		{Type: models.TargetNutrition},
	})
	if err != nil {
		t.Fatalf("ExtractFromImage() error = %v", err)
	}
	if res.OCR == nil || res.OCR.Provider != "long" {
		t.Fatalf("winning provider = %+v, want long", res.OCR)
	}
	if !res.Success {
		t.Errorf("expected success, errors = %v", res.Errors)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("expected provider failure as warning, got %v", res.Warnings)
	}

	// Two valid results (0.95, 0.8); one of two targets produced data.
	want := 0.6*((0.95+0.8)/2) + 0.4*0.5
	if math.Abs(res.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", res.Confidence, want)
	}
	if len(res.Data.Fields[models.TargetWorkout]) == 0 {
		t.Error("expected workout data points")
	}
}

func TestExtractFromImage_NoValidOCR(t *testing.T) {
	t.Parallel()

	p := New(zap.NewNop(),
		WithOCRProvider(fixedOCR("weak", "some text", 0.2)),
		WithOCRProvider(failingOCR("broken")),
	)
	_, err := p.ExtractFromImage(context.Background(), []byte("img"), []models.ExtractionTarget{{Type: models.TargetWorkout}})
	if !errors.Is(err, models.ErrNoValidOCRResult) {
		t.Fatalf("expected ErrNoValidOCRResult, got %v", err)
	}
}

func TestExtractFromImage_RequiredTargetFailsClosed(t *testing.T) {
	t.Parallel()

	p := New(zap.NewNop(), WithOCRProvider(fixedOCR("ocr", "felt great today", 0.9)))
	res, err := p.ExtractFromImage(context.Background(), []byte("img"), []models.ExtractionTarget{
		{Type: models.TargetMeasurement, Required: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success || len(res.Errors) != 1 {
		t.Errorf("expected structured failure, got success=%v errors=%v", res.Success, res.Errors)
	}
}

func TestExtractFromImage_DefaultTextLayer(t *testing.T) {
	t.Parallel()

	p := New(zap.NewNop())
	res, err := p.ExtractFromImage(context.Background(), []byte("body weight: 82.5 kg, body fat 18%"),
		[]models.ExtractionTarget{{Type: models.TargetMeasurement}})
	if err != nil {
		t.Fatal(err)
	}
	flat := res.Data.Flatten()
	if flat["body_weight"] != 82.5 || flat["body_fat"] != 18.0 {
		t.Errorf("unexpected measurements: %v", flat)
	}
}

func TestExtractFromText(t *testing.T) {
	t.Parallel()

	text := "Lunch: chicken breast and rice, 650 kcal, 45g protein, carbs: 70g"
	p := New(zap.NewNop())
	res := p.ExtractFromText(context.Background(), text, []models.ExtractionTarget{
		{Type: models.TargetNutrition},
		{Type: "astrology"},
	})
	if !res.Success {
		t.Fatalf("expected success, errors = %v", res.Errors)
	}

	n := res.Data.Count()
	want := 0.7*math.Min(float64(n)/10, 1) + 0.3*math.Min(float64(len(text))/1000, 1)
	if math.Abs(res.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", res.Confidence, want)
	}

	flat := res.Data.Flatten()
	if flat["calories"] != 650 || flat["protein"] != 45.0 || flat["carbs"] != 70.0 {
		t.Errorf("unexpected nutrition values: %v", flat)
	}
	var foods []any
	for _, dp := range res.Data.Fields[models.TargetNutrition] {
		if dp.Field == "food" {
			foods = append(foods, dp.Value)
		}
	}
	if len(foods) != 2 {
		t.Errorf("foods = %v, want chicken breast and rice", foods)
	}
}

func TestExtractFromText_Empty(t *testing.T) {
	t.Parallel()

	res := New(zap.NewNop()).ExtractFromText(context.Background(), "   ", []models.ExtractionTarget{{Type: models.TargetWorkout}})
	if res.Success || len(res.Errors) == 0 {
		t.Errorf("expected failure for empty text, got %+v", res)
	}
}
