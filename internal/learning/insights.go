package learning

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/google/uuid"
)

const (
	minPerformanceSamples = 5
	criticalEffectiveness = 0.3
	lowEffectiveness      = 0.5
	trendWindow           = 20
	decliningSlope        = -0.01
	strongItemMean        = 0.8
	weakItemMean          = 0.4
	recurringFrequency    = 3
)

func severityWeight(s models.Severity) float64 {
	switch s {
	case models.SeverityCritical:
		return 3
	case models.SeverityWarning:
		return 2
	default:
		return 1
	}
}

// DiscoverInsights runs the behavior, performance, content effectiveness,
// predictive and anomaly analyzers selected by scope and returns their
// insights sorted by severity-weighted confidence. Results are also stored
// for Insights.
func (o *Optimizer) DiscoverInsights(scope models.InsightScope) []models.LearningInsight {
	o.mu.Lock()
	defer o.mu.Unlock()

	analyzers := []struct {
		kind models.InsightType
		run  func(models.InsightScope) []models.LearningInsight
	}{
		{models.InsightBehavior, o.behaviorInsightsLocked},
		{models.InsightPerformance, o.scopedPerformanceLocked},
		{models.InsightContentEffectiveness, o.contentInsightsLocked},
		{models.InsightPredictive, o.predictiveInsightsLocked},
		{models.InsightAnomaly, o.anomalyInsightsLocked},
	}

	var out []models.LearningInsight
	for _, a := range analyzers {
		if !scope.Includes(a.kind) {
			continue
		}
		for _, ins := range a.run(scope) {
			if scope.Component != "" && ins.Component != "" && ins.Component != scope.Component {
				continue
			}
			out = append(out, ins)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		wi := severityWeight(out[i].Severity) * out[i].Confidence
		wj := severityWeight(out[j].Severity) * out[j].Confidence
		if wi != wj {
			return wi > wj
		}
		return out[i].Title < out[j].Title
	})
	for _, ins := range out {
		o.recordInsightLocked(ins)
	}
	return out
}

func (o *Optimizer) newInsight(t models.InsightType, sev models.Severity, conf float64, title string) models.LearningInsight {
	return models.LearningInsight{
		ID:         uuid.New().String(),
		Type:       t,
		Title:      title,
		Severity:   sev,
		Confidence: clamp01(conf),
		CreatedAt:  o.now(),
	}
}

func (o *Optimizer) behaviorInsightsLocked(scope models.InsightScope) []models.LearningInsight {
	users := make([]string, 0, len(o.usage))
	if scope.UserID != "" {
		users = append(users, scope.UserID)
	} else {
		for u := range o.usage {
			users = append(users, u)
		}
		sort.Strings(users)
	}

	var out []models.LearningInsight
	for _, u := range users {
		for _, p := range sortedPatterns(o.usage[u]) {
			if p.Frequency < recurringFrequency {
				continue
			}
			conf := p.Confidence
			if conf == 0 {
				conf = math.Min(float64(p.Frequency)/10, 1)
			}
			ins := o.newInsight(models.InsightBehavior, models.SeverityInfo, conf,
				fmt.Sprintf("Recurring %s: %s", p.Type, p.Value))
			ins.UserID = u
			ins.Description = fmt.Sprintf("Seen %d times, last on %s", p.Frequency, p.LastSeen.Format(time.DateOnly))
			ins.Recommendation = "Adapt default suggestions to this habit"
			out = append(out, ins)
		}
	}
	return out
}

func (o *Optimizer) effectivenessComponents() []models.ComponentType {
	var cs []models.ComponentType
	for key := range o.series {
		if key.metric == MetricEffectiveness {
			cs = append(cs, key.component)
		}
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i] < cs[j] })
	return cs
}

func (o *Optimizer) scopedPerformanceLocked(_ models.InsightScope) []models.LearningInsight {
	var out []models.LearningInsight
	for _, c := range o.effectivenessComponents() {
		out = append(out, o.performanceInsightsLocked(c)...)
	}
	return out
}

// performanceInsightsLocked flags a component whose recent mean
// effectiveness is low
func (o *Optimizer) performanceInsightsLocked(c models.ComponentType) []models.LearningInsight {
	values := o.series[seriesKey{component: c, metric: MetricEffectiveness}]
	if len(values) < minPerformanceSamples {
		return nil
	}
	recent := values[max(0, len(values)-healthWindow):]
	m := mean(recent)

	var sev models.Severity
	switch {
	case m < criticalEffectiveness:
		sev = models.SeverityCritical
	case m < lowEffectiveness:
		sev = models.SeverityWarning
	default:
		return nil
	}
	ins := o.newInsight(models.InsightPerformance, sev, float64(len(values))/trendWindow,
		fmt.Sprintf("Low %s effectiveness", c))
	ins.Component = c
	ins.Description = fmt.Sprintf("Mean effectiveness over the last %d measurements is %.2f", len(recent), m)
	ins.Recommendation = "Review recent changes to this component and consider an A/B test of alternatives"
	ins.Evidence = map[string]any{"mean": m, "samples": len(recent)}
	return []models.LearningInsight{ins}
}

func (o *Optimizer) contentInsightsLocked(_ models.InsightScope) []models.LearningInsight {
	keys := make([]seriesKey, 0, len(o.byItem))
	for k := range o.byItem {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].component != keys[j].component {
			return keys[i].component < keys[j].component
		}
		return keys[i].metric < keys[j].metric
	})

	var out []models.LearningInsight
	for _, k := range keys {
		values := o.byItem[k]
		if len(values) < minPerformanceSamples {
			continue
		}
		m := mean(values)
		conf := math.Min(float64(len(values))/trendWindow, 1)
		var ins models.LearningInsight
		switch {
		case m >= strongItemMean:
			ins = o.newInsight(models.InsightContentEffectiveness, models.SeverityInfo, conf,
				fmt.Sprintf("%s is highly effective", k.metric))
			ins.Recommendation = "Prefer this item when selecting content"
		case m < weakItemMean:
			ins = o.newInsight(models.InsightContentEffectiveness, models.SeverityWarning, conf,
				fmt.Sprintf("%s is underperforming", k.metric))
			ins.Recommendation = "Revise or retire this item"
		default:
			continue
		}
		ins.Component = k.component
		ins.Description = fmt.Sprintf("Mean effectiveness %.2f over %d measurements", m, len(values))
		ins.Evidence = map[string]any{"component_id": k.metric, "mean": m}
		out = append(out, ins)
	}
	return out
}

// predictiveInsightsLocked extrapolates the recent effectiveness slope
func (o *Optimizer) predictiveInsightsLocked(_ models.InsightScope) []models.LearningInsight {
	var out []models.LearningInsight
	for _, c := range o.effectivenessComponents() {
		values := o.series[seriesKey{component: c, metric: MetricEffectiveness}]
		if len(values) < minPerformanceSamples {
			continue
		}
		window := values[max(0, len(values)-trendWindow):]
		s := slope(window)
		if s >= decliningSlope {
			continue
		}
		ins := o.newInsight(models.InsightPredictive, models.SeverityWarning, math.Abs(s)*10,
			fmt.Sprintf("Declining %s effectiveness", c))
		ins.Component = c
		ins.Description = fmt.Sprintf("Effectiveness is falling by %.3f per measurement", -s)
		ins.Recommendation = "Investigate before the decline reaches users broadly"
		ins.Evidence = map[string]any{"slope": s, "projected_next": window[len(window)-1] + s}
		out = append(out, ins)
	}
	return out
}

func (o *Optimizer) anomalyInsightsLocked(scope models.InsightScope) []models.LearningInsight {
	var out []models.LearningInsight
	for _, a := range o.anomalies {
		if !scope.Since.IsZero() && a.At.Before(scope.Since) {
			continue
		}
		out = append(out, anomalyInsight(a, o.now()))
	}
	return out
}

func anomalyInsight(a Anomaly, now time.Time) models.LearningInsight {
	conf := 0.7
	if a.Severity == models.SeverityCritical {
		conf = 0.9
	}
	return models.LearningInsight{
		ID:             uuid.New().String(),
		Type:           models.InsightAnomaly,
		Title:          fmt.Sprintf("Anomalous %s in %s", a.Metric, a.Component),
		Description:    fmt.Sprintf("Value %.3f is %.1f standard deviations from the mean %.3f", a.Value, a.ZScore, a.Mean),
		Severity:       a.Severity,
		Confidence:     conf,
		Component:      a.Component,
		Recommendation: "Check recent deployments and backend health",
		Evidence:       map[string]any{"z_score": a.ZScore, "value": a.Value},
		CreatedAt:      now,
	}
}
