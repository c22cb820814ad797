// Package learning tracks effectiveness signals, runs A/B tests and turns
// both into insights, improvement plans and per-user adaptations.
package learning

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MetricEffectiveness is the metric name system health is computed from
const MetricEffectiveness = "effectiveness"

const (
	minAnomalySamples = 10
	criticalZ         = 3.0
	warningZ          = 2.0

	maxSamplesPerSeries = 1000
	maxAnomalies        = 1000
	maxInsights         = 500

	healthWindow       = 10
	healthyRatio       = 0.9
	degradedRatio      = 0.7
	warningDegradedPct = 0.3
)

// Anomaly is an effectiveness value far from its series' history
type Anomaly struct {
	ID        string               `json:"id"`
	Component models.ComponentType `json:"component"`
	Metric    string               `json:"metric"`
	Value     float64              `json:"value"`
	Mean      float64              `json:"mean"`
	StdDev    float64              `json:"std_dev"`
	ZScore    float64              `json:"z_score"`
	Severity  models.Severity      `json:"severity"`
	At        time.Time            `json:"at"`
}

// TrackResult reports what TrackEffectiveness recorded
type TrackResult struct {
	Recorded  int       `json:"recorded"`
	Anomalies []Anomaly `json:"anomalies"`
}

type seriesKey struct {
	component models.ComponentType
	metric    string
}

// Optimizer is the constructor-scoped learning state
type Optimizer struct {
	mu sync.Mutex

	series    map[seriesKey][]float64
	byItem    map[seriesKey][]float64 // component + componentID -> effectiveness values
	anomalies []Anomaly
	usage     map[string][]models.UsagePattern
	insights  []models.LearningInsight
	plans     []models.ContinuousImprovementPlan
	tests     map[string]*abTest

	critical map[models.ComponentType]bool
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures an Optimizer
type Option func(*Optimizer)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *Optimizer) {
		o.now = now
	}
}

// WithCriticalComponents replaces the set of components re-analyzed on every measurement
func WithCriticalComponents(components ...models.ComponentType) Option {
	return func(o *Optimizer) {
		o.critical = make(map[models.ComponentType]bool, len(components))
		for _, c := range components {
			o.critical[c] = true
		}
	}
}

// New creates an Optimizer. Service routing and orchestration are critical by default.
func New(logger *zap.Logger, opts ...Option) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Optimizer{
		series: make(map[seriesKey][]float64),
		byItem: make(map[seriesKey][]float64),
		usage:  make(map[string][]models.UsagePattern),
		tests:  make(map[string]*abTest),
		critical: map[models.ComponentType]bool{
			models.ComponentServiceRouting: true,
			models.ComponentOrchestration:  true,
		},
		now:    time.Now,
		logger: logger.Named("learning"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// TrackEffectiveness appends a batch of measurements. Each value is z-scored
// against its series history before being appended: |z|>3 is a critical
// anomaly that triggers emergency analysis, |z|>2 a warning. Measurements on
// critical components re-run performance analysis for that component.
func (o *Optimizer) TrackEffectiveness(measurements []models.EffectivenessMetric) (TrackResult, error) {
	for _, m := range measurements {
		if m.Component == "" {
			return TrackResult{}, models.NewValidationError("Component", "is required")
		}
		if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
			return TrackResult{}, models.NewValidationError("Value", "must be a finite number")
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	var result TrackResult
	reanalyze := make(map[models.ComponentType]bool)
	for _, m := range measurements {
		if m.Metric == "" {
			m.Metric = MetricEffectiveness
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = o.now()
		}
		key := seriesKey{component: m.Component, metric: m.Metric}
		prior := o.series[key]

		if a, ok := detectAnomaly(prior, m); ok {
			a.ID = uuid.New().String()
			o.anomalies = appendBounded(o.anomalies, a, maxAnomalies)
			result.Anomalies = append(result.Anomalies, a)
			o.logger.Warn("effectiveness_anomaly",
				zap.String("component", string(m.Component)),
				zap.String("metric", m.Metric),
				zap.Float64("z_score", a.ZScore),
				zap.String("severity", string(a.Severity)),
			)
			if a.Severity == models.SeverityCritical {
				o.emergencyAnalysisLocked(a)
			}
		}

		o.series[key] = appendBounded(prior, m.Value, maxSamplesPerSeries)
		if m.ComponentID != "" && m.Metric == MetricEffectiveness {
			item := seriesKey{component: m.Component, metric: m.ComponentID}
			o.byItem[item] = appendBounded(o.byItem[item], m.Value, maxSamplesPerSeries)
		}
		if o.critical[m.Component] {
			reanalyze[m.Component] = true
		}
		result.Recorded++
	}

	for component := range reanalyze {
		for _, ins := range o.performanceInsightsLocked(component) {
			o.recordInsightLocked(ins)
		}
	}
	return result, nil
}

func detectAnomaly(prior []float64, m models.EffectivenessMetric) (Anomaly, bool) {
	if len(prior) < minAnomalySamples {
		return Anomaly{}, false
	}
	mu, sd := mean(prior), stddev(prior)
	if sd == 0 {
		return Anomaly{}, false
	}
	z := (m.Value - mu) / sd
	a := Anomaly{
		Component: m.Component,
		Metric:    m.Metric,
		Value:     m.Value,
		Mean:      mu,
		StdDev:    sd,
		ZScore:    z,
		At:        m.Timestamp,
	}
	switch abs := math.Abs(z); {
	case abs > criticalZ:
		a.Severity = models.SeverityCritical
	case abs > warningZ:
		a.Severity = models.SeverityWarning
	default:
		return Anomaly{}, false
	}
	return a, true
}

// emergencyAnalysisLocked records a critical insight for a critical anomaly
func (o *Optimizer) emergencyAnalysisLocked(a Anomaly) {
	o.logger.Error("emergency_analysis_triggered",
		zap.String("component", string(a.Component)),
		zap.String("metric", a.Metric),
		zap.Float64("value", a.Value),
	)
	o.recordInsightLocked(anomalyInsight(a, o.now()))
	for _, ins := range o.performanceInsightsLocked(a.Component) {
		o.recordInsightLocked(ins)
	}
}

// Anomalies returns the recorded anomalies, oldest first
func (o *Optimizer) Anomalies() []Anomaly {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Anomaly(nil), o.anomalies...)
}

// RecordUsage merges a usage pattern into the user's pattern set. A pattern
// with the same type and value increments the existing frequency.
func (o *Optimizer) RecordUsage(p models.UsagePattern) error {
	if p.UserID == "" {
		return models.NewValidationError("UserID", "is required")
	}
	if p.Type == "" {
		return models.NewValidationError("Type", "is required")
	}
	if p.Frequency <= 0 {
		p.Frequency = 1
	}
	p.Confidence = clamp01(p.Confidence)

	o.mu.Lock()
	defer o.mu.Unlock()
	if p.LastSeen.IsZero() {
		p.LastSeen = o.now()
	}

	patterns := o.usage[p.UserID]
	for i := range patterns {
		if patterns[i].Type == p.Type && patterns[i].Value == p.Value {
			patterns[i].Frequency += p.Frequency
			patterns[i].Confidence = math.Max(patterns[i].Confidence, p.Confidence)
			if p.LastSeen.After(patterns[i].LastSeen) {
				patterns[i].LastSeen = p.LastSeen
			}
			return nil
		}
	}
	o.usage[p.UserID] = append(patterns, p)
	return nil
}

// UsagePatterns returns the user's patterns, most frequent first
func (o *Optimizer) UsagePatterns(userID string) []models.UsagePattern {
	o.mu.Lock()
	defer o.mu.Unlock()
	return sortedPatterns(o.usage[userID])
}

func sortedPatterns(in []models.UsagePattern) []models.UsagePattern {
	out := append([]models.UsagePattern(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Frequency > out[j].Frequency })
	return out
}

// Insights returns up to limit stored insights, newest first. limit <= 0 returns all.
func (o *Optimizer) Insights(limit int) []models.LearningInsight {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.LearningInsight, 0, len(o.insights))
	for i := len(o.insights) - 1; i >= 0; i-- {
		out = append(out, o.insights[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// recordInsightLocked stores ins, replacing an earlier insight with the same
// type, component and title
func (o *Optimizer) recordInsightLocked(ins models.LearningInsight) {
	for i, existing := range o.insights {
		if existing.Type == ins.Type && existing.Component == ins.Component && existing.Title == ins.Title {
			o.insights = append(o.insights[:i], o.insights[i+1:]...)
			break
		}
	}
	o.insights = appendBounded(o.insights, ins, maxInsights)
}

// ImprovementPlans returns the spawned improvement plans, oldest first
func (o *Optimizer) ImprovementPlans() []models.ContinuousImprovementPlan {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.ContinuousImprovementPlan(nil), o.plans...)
}

// GetSystemHealth grades each component by the ratio of its recent mean
// effectiveness to its earlier baseline. The system is critical when any
// component is failing and warning when more than 30% are degraded.
func (o *Optimizer) GetSystemHealth() models.SystemHealth {
	o.mu.Lock()
	defer o.mu.Unlock()

	health := models.SystemHealth{
		Status:    models.OverallHealthy,
		Anomalies: len(o.anomalies),
		CheckedAt: o.now(),
	}

	var components []models.ComponentType
	for key := range o.series {
		if key.metric == MetricEffectiveness {
			components = append(components, key.component)
		}
	}
	sort.Slice(components, func(i, j int) bool { return components[i] < components[j] })

	failing, degraded := 0, 0
	for _, c := range components {
		ch := componentHealth(c, o.series[seriesKey{component: c, metric: MetricEffectiveness}])
		switch ch.Status {
		case models.ComponentFailing:
			failing++
		case models.ComponentDegraded:
			degraded++
		}
		health.Components = append(health.Components, ch)
	}

	switch {
	case failing > 0:
		health.Status = models.OverallCritical
	case len(components) > 0 && float64(degraded)/float64(len(components)) > warningDegradedPct:
		health.Status = models.OverallWarning
	}
	return health
}

// componentHealth compares the mean of the last healthWindow values with the
// mean of everything before them. Without enough history the ratio is 1.
func componentHealth(c models.ComponentType, values []float64) models.ComponentHealth {
	ch := models.ComponentHealth{Component: c, SampleCount: len(values), Ratio: 1, Status: models.ComponentHealthy}
	if len(values) == 0 {
		return ch
	}
	recentStart := len(values) - healthWindow
	if recentStart < healthWindow {
		ch.Current = mean(values)
		ch.Baseline = ch.Current
		return ch
	}
	ch.Baseline = mean(values[:recentStart])
	ch.Current = mean(values[recentStart:])
	if ch.Baseline > 0 {
		ch.Ratio = ch.Current / ch.Baseline
	}
	switch {
	case ch.Ratio >= healthyRatio:
		ch.Status = models.ComponentHealthy
	case ch.Ratio >= degradedRatio:
		ch.Status = models.ComponentDegraded
	default:
		ch.Status = models.ComponentFailing
	}
	return ch
}

func appendBounded[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if len(s) > limit {
		s = append(s[:0:0], s[len(s)-limit:]...)
	}
	return s
}

// Apply dispatches a learning event to the matching operation
func (o *Optimizer) Apply(ev models.LearningEvent) error {
	switch ev.Type {
	case models.LearningEventEffectiveness:
		_, err := o.TrackEffectiveness(ev.Effectiveness)
		return err
	case models.LearningEventABTest:
		if ev.ABEvent == nil {
			return models.NewValidationError("ABEvent", "is required for ab_event")
		}
		return o.RecordEvent(*ev.ABEvent)
	case models.LearningEventUsage:
		if ev.Usage == nil {
			return models.NewValidationError("Usage", "is required for usage")
		}
		return o.RecordUsage(*ev.Usage)
	default:
		return models.NewValidationError("Type", fmt.Sprintf("unknown learning event type %q", ev.Type))
	}
}
