package orchestrator

import (
	"context"
	"errors"

	"github.com/benvon/smart-coach/internal/learning"
	"github.com/benvon/smart-coach/internal/models"
	"github.com/benvon/smart-coach/internal/telemetry"
	"go.uber.org/zap"
)

// EventSink receives the learning signals produced while processing requests
type EventSink interface {
	Publish(ctx context.Context, ev models.LearningEvent) error
}

// InProcessSink applies events to an optimizer synchronously
type InProcessSink struct {
	optimizer *learning.Optimizer
	logger    *zap.Logger
}

// NewInProcessSink creates a sink feeding optimizer directly
func NewInProcessSink(optimizer *learning.Optimizer, log *zap.Logger) *InProcessSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &InProcessSink{optimizer: optimizer, logger: log.Named("learning_sink")}
}

// Publish applies ev to the optimizer
func (s *InProcessSink) Publish(_ context.Context, ev models.LearningEvent) error {
	return s.optimizer.Apply(ev)
}

// MultiSink publishes every event to each sink in order and joins their errors
type MultiSink []EventSink

// Publish implements EventSink
func (m MultiSink) Publish(ctx context.Context, ev models.LearningEvent) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DiscardSink drops events; used when learning is disabled
type DiscardSink struct{}

// Publish implements EventSink
func (DiscardSink) Publish(context.Context, models.LearningEvent) error { return nil }

var (
	_ EventSink = (*InProcessSink)(nil)
	_ EventSink = MultiSink(nil)
	_ EventSink = DiscardSink{}
)

// recordOutcome reports success or failure of each stage that ran
func (o *Orchestrator) recordOutcome(ctx context.Context, r *run) {
	ctx, span := telemetry.StartStage(ctx, telemetry.StageLearning, r.req.ID)
	var publishErr error
	defer func() { telemetry.EndStage(span, publishErr) }()

	now := o.now()
	outcome := 0.0
	if r.resp.Success {
		outcome = 1
	}
	metric := func(c models.ComponentType, id string, v float64) models.EffectivenessMetric {
		return models.EffectivenessMetric{
			Component:   c,
			ComponentID: id,
			UserID:      r.req.UserID,
			Metric:      learning.MetricEffectiveness,
			Value:       v,
			Timestamp:   now,
		}
	}

	measurements := []models.EffectivenessMetric{
		metric(models.ComponentOrchestration, string(r.route), outcome),
	}
	if r.templateID != "" {
		score := outcome * r.resp.Metadata.Confidence
		measurements = append(measurements, metric(models.ComponentPromptGeneration, r.templateID, score))
		if err := o.prompts.RecordEffectiveness(r.templateID, score); err != nil {
			o.logger.Debug("template_effectiveness_skipped", zap.String("template_id", r.templateID), zap.Error(err))
		}
	}
	if r.service != "" || contains(r.resp.Metadata.ServicesUsed, StageAIRouting) {
		measurements = append(measurements, metric(models.ComponentServiceRouting, r.service, outcome))
	}
	if contains(r.resp.Metadata.ServicesUsed, StageDataExtraction) {
		extracted := 0.0
		if r.resp.Data.Count() > 0 {
			extracted = 1
		}
		measurements = append(measurements, metric(models.ComponentExtraction, string(r.req.Type), extracted))
	}

	events := []models.LearningEvent{{
		Type:          models.LearningEventEffectiveness,
		Effectiveness: measurements,
		OccurredAt:    now,
	}}
	if r.req.Options.EnableLearning {
		events = append(events, models.LearningEvent{
			Type: models.LearningEventUsage,
			Usage: &models.UsagePattern{
				UserID:     r.req.UserID,
				Type:       "request_type",
				Value:      string(r.req.Type),
				Frequency:  1,
				Confidence: 0.5,
				LastSeen:   now,
			},
			OccurredAt: now,
		})
	}

	for _, ev := range events {
		if err := o.events.Publish(ctx, ev); err != nil {
			publishErr = err
			o.logger.Warn("learning_event_publish_failed",
				zap.String("request_id", r.req.ID),
				zap.String("event_type", string(ev.Type)),
				zap.Error(err),
			)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
