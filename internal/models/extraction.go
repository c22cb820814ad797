package models

import (
	"time"
)

// ExtractionTargetType names a pattern family the extractor knows about
type ExtractionTargetType string

const (
	TargetWorkout       ExtractionTargetType = "workout"
	TargetNutrition     ExtractionTargetType = "nutrition"
	TargetMeasurement   ExtractionTargetType = "measurement"
	TargetProgressPhoto ExtractionTargetType = "progress_photo"
)

// ExtractionTarget asks the extractor to run one pattern family
type ExtractionTarget struct {
	Type     ExtractionTargetType `json:"type"`
	Required bool                 `json:"required,omitempty"`
}

// DataPoint is a single structured value extracted from text
type DataPoint struct {
	Field string  `json:"field"`
	Value any     `json:"value"`
	Unit  string  `json:"unit,omitempty"`
	Raw   string  `json:"raw"`
	Score float64 `json:"score"`
}

// ExtractedData groups data points by target type
type ExtractedData struct {
	Fields map[ExtractionTargetType][]DataPoint `json:"fields"`
	Source string                               `json:"source"`
	Text   string                               `json:"text,omitempty"`
}

// Count returns the total number of data points
func (d *ExtractedData) Count() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, points := range d.Fields {
		n += len(points)
	}
	return n
}

// Flatten returns field name -> value for the first occurrence of each field
func (d *ExtractedData) Flatten() map[string]any {
	out := make(map[string]any)
	if d == nil {
		return out
	}
	for _, points := range d.Fields {
		for _, p := range points {
			if _, exists := out[p.Field]; !exists {
				out[p.Field] = p.Value
			}
		}
	}
	return out
}

// OCRResult is what an OCR provider returns for one image
type OCRResult struct {
	Provider   string  `json:"provider"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// ExtractionResult is the structured outcome of an extraction run
type ExtractionResult struct {
	Success    bool           `json:"success"`
	Data       *ExtractedData `json:"data,omitempty"`
	Confidence float64        `json:"confidence"`
	Errors     []string       `json:"errors,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
	OCR        *OCRResult     `json:"ocr,omitempty"`
	Duration   time.Duration  `json:"duration"`
}

// FieldIssue is an itemized validation error or warning
type FieldIssue struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// DataValidationResult reports whether data satisfied a schema
type DataValidationResult struct {
	Valid    bool         `json:"valid"`
	Errors   []FieldIssue `json:"errors"`
	Warnings []FieldIssue `json:"warnings"`
}

// Enrichment is one attached piece of derived context
type Enrichment struct {
	Kind       string         `json:"kind"`
	Values     map[string]any `json:"values"`
	Confidence float64        `json:"confidence"`
}

// EnrichedData is extracted data plus its enrichments
type EnrichedData struct {
	Data        map[string]any `json:"data"`
	Enrichments []Enrichment   `json:"enrichments"`
	Confidence  float64        `json:"confidence"`
}
