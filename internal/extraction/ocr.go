package extraction

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/benvon/smart-coach/internal/models"
)

// OCRProvider turns an image into recognized text
type OCRProvider interface {
	Name() string
	ExtractText(ctx context.Context, image []byte) (models.OCRResult, error)
}

// TextLayerOCR treats the image payload as an already-recognized text layer.
// Payloads that are not valid UTF-8 produce an empty, zero-confidence result.
type TextLayerOCR struct {
	// Confidence reported for valid text layers; zero means 0.9
	Confidence float64
}

// Name implements OCRProvider
func (p *TextLayerOCR) Name() string {
	return "text_layer"
}

// ExtractText implements OCRProvider
func (p *TextLayerOCR) ExtractText(ctx context.Context, image []byte) (models.OCRResult, error) {
	if err := ctx.Err(); err != nil {
		return models.OCRResult{}, err
	}
	result := models.OCRResult{Provider: p.Name()}
	if !utf8.Valid(image) {
		return result, nil
	}
	text := strings.TrimSpace(string(image))
	if text == "" {
		return result, nil
	}
	result.Text = text
	result.Confidence = p.Confidence
	if result.Confidence == 0 {
		result.Confidence = 0.9
	}
	return result, nil
}

// OCRFunc adapts a function into an OCRProvider
type OCRFunc struct {
	ProviderName string
	Fn           func(ctx context.Context, image []byte) (models.OCRResult, error)
}

// Name implements OCRProvider
func (f OCRFunc) Name() string {
	return f.ProviderName
}

// ExtractText implements OCRProvider
func (f OCRFunc) ExtractText(ctx context.Context, image []byte) (models.OCRResult, error) {
	res, err := f.Fn(ctx, image)
	if res.Provider == "" {
		res.Provider = f.ProviderName
	}
	return res, err
}
