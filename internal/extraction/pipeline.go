// Package extraction turns images and free text into structured fitness data
// with confidence scores, validation and enrichment.
package extraction

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/benvon/smart-coach/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// MinOCRConfidence is the floor below which OCR results are discarded
	MinOCRConfidence = 0.3
)

// Pipeline runs OCR providers and the pattern library
type Pipeline struct {
	providers []OCRProvider
	patterns  map[models.ExtractionTargetType]Pattern
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithOCRProvider adds an OCR provider
func WithOCRProvider(p OCRProvider) Option {
	return func(pl *Pipeline) {
		pl.providers = append(pl.providers, p)
	}
}

// WithPattern registers or replaces the pattern for a target type
func WithPattern(target models.ExtractionTargetType, p Pattern) Option {
	return func(pl *Pipeline) {
		pl.patterns[target] = p
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(pl *Pipeline) {
		pl.now = now
	}
}

// New creates a pipeline with the default pattern library. When no OCR
// provider is supplied a TextLayerOCR is used.
func New(logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		patterns: DefaultPatterns(),
		now:      time.Now,
		logger:   logger.Named("extraction"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if len(p.providers) == 0 {
		p.providers = []OCRProvider{&TextLayerOCR{}}
	}
	return p
}

// ExtractFromImage runs every OCR provider concurrently, keeps the best result
// above the confidence floor and extracts the requested targets from its text.
// It returns models.ErrNoValidOCRResult when no result clears the floor.
func (p *Pipeline) ExtractFromImage(ctx context.Context, image []byte, targets []models.ExtractionTarget) (*models.ExtractionResult, error) {
	start := p.now()
	result := &models.ExtractionResult{Errors: []string{}, Warnings: []string{}}

	if len(image) == 0 {
		result.Errors = append(result.Errors, (&models.ExtractionError{Stage: "input", Message: "empty image"}).Error())
		result.Duration = p.now().Sub(start)
		return result, nil
	}

	image = preprocess(image)
	valid, providerErrs := p.runOCR(ctx, image)
	for _, err := range providerErrs {
		result.Warnings = append(result.Warnings, err.Error())
	}
	if len(valid) == 0 {
		p.logger.Warn("ocr_no_valid_result",
			zap.Int("providers", len(p.providers)),
			zap.Int("provider_errors", len(providerErrs)),
		)
		return nil, models.ErrNoValidOCRResult
	}

	best := valid[0]
	var confSum float64
	for _, r := range valid {
		confSum += r.Confidence
		if ocrScore(r) > ocrScore(best) {
			best = r
		}
	}
	meanConfidence := confSum / float64(len(valid))

	data, nonEmpty, requested, errs := p.extract(best.Text, targets)
	result.Errors = append(result.Errors, errs...)
	data.Source = "image:" + best.Provider

	fieldFraction := 0.0
	if requested > 0 {
		fieldFraction = float64(nonEmpty) / float64(requested)
	}

	bestCopy := best
	result.OCR = &bestCopy
	result.Data = data
	result.Confidence = 0.6*meanConfidence + 0.4*fieldFraction
	result.Success = len(result.Errors) == 0
	result.Duration = p.now().Sub(start)

	p.logger.Debug("image_extracted",
		zap.String("provider", best.Provider),
		zap.Float64("confidence", result.Confidence),
		zap.Int("data_points", data.Count()),
	)
	return result, nil
}

// ExtractFromText runs the requested targets over text
func (p *Pipeline) ExtractFromText(ctx context.Context, text string, targets []models.ExtractionTarget) *models.ExtractionResult {
	start := p.now()
	result := &models.ExtractionResult{Errors: []string{}, Warnings: []string{}}

	if err := ctx.Err(); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	if strings.TrimSpace(text) == "" {
		result.Errors = append(result.Errors, (&models.ExtractionError{Stage: "input", Message: "empty text"}).Error())
		return result
	}

	data, _, _, errs := p.extract(text, targets)
	data.Source = "text"
	result.Errors = append(result.Errors, errs...)
	result.Data = data
	result.Confidence = 0.7*math.Min(float64(data.Count())/10, 1) + 0.3*math.Min(float64(len(text))/1000, 1)
	result.Success = len(result.Errors) == 0
	result.Duration = p.now().Sub(start)
	return result
}

// extract applies each target's pattern. It returns the data, the number of
// known targets that produced points, the number of known targets requested,
// and errors for required targets that produced nothing.
func (p *Pipeline) extract(text string, targets []models.ExtractionTarget) (*models.ExtractedData, int, int, []string) {
	data := &models.ExtractedData{
		Fields: make(map[models.ExtractionTargetType][]models.DataPoint),
		Text:   text,
	}
	var errs []string
	nonEmpty, requested := 0, 0
	for _, target := range targets {
		pattern, ok := p.patterns[target.Type]
		if !ok {
			p.logger.Warn("unknown_extraction_target", zap.String("target", string(target.Type)))
			continue
		}
		requested++
		points := pattern.Extract(text)
		if len(points) == 0 {
			if target.Required {
				errs = append(errs, (&models.ExtractionError{
					Stage:   string(target.Type),
					Message: "required target produced no data",
				}).Error())
			}
			continue
		}
		nonEmpty++
		data.Fields[target.Type] = append(data.Fields[target.Type], points...)
	}
	return data, nonEmpty, requested, errs
}

// runOCR fans out to every provider and collects results above the floor.
// Provider failures are returned, not propagated, so one bad provider cannot
// cancel the others.
func (p *Pipeline) runOCR(ctx context.Context, image []byte) ([]models.OCRResult, []error) {
	var (
		mu    sync.Mutex
		valid []models.OCRResult
		errs  []error
		g     errgroup.Group
	)
	for _, provider := range p.providers {
		g.Go(func() error {
			res, err := provider.ExtractText(ctx, image)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("ocr provider %s: %w", provider.Name(), err))
				return nil
			}
			if res.Provider == "" {
				res.Provider = provider.Name()
			}
			if res.Confidence < MinOCRConfidence || res.Text == "" {
				p.logger.Debug("ocr_result_discarded",
					zap.String("provider", res.Provider),
					zap.Float64("confidence", res.Confidence),
				)
				return nil
			}
			valid = append(valid, res)
			return nil
		})
	}
	_ = g.Wait()
	return valid, errs
}

func ocrScore(r models.OCRResult) float64 {
	return r.Confidence * math.Log(float64(len(r.Text))+1)
}

// preprocess is the image normalization hook; images pass through unchanged
func preprocess(image []byte) []byte {
	return image
}
