package learning

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/benvon/smart-coach/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	weightTolerance       = 0.01
	defaultConfidence     = 0.95
	defaultMDE            = 0.05
	interimMinParticipant = 100
	interimMinDuration    = 7 * 24 * time.Hour
	autoStopPValue        = 0.01
)

// ErrNotEligible is returned by GetVariant for users outside the target audience
var ErrNotEligible = errors.New("user is not eligible for this test")

type abTest struct {
	config      models.ABTestConfiguration
	assignments map[string]string // userID -> variantID
	events      []models.ABTestEvent
	results     *models.ABTestResults
}

// CreateABTest validates cfg and stores it as a draft. Variant weights must
// sum to 100, a primary success metric must be declared and MinSampleSize
// must cover the power requirement for the minimum detectable effect; a zero
// MinSampleSize is filled in from that requirement.
func (o *Optimizer) CreateABTest(cfg models.ABTestConfiguration) (*models.ABTestConfiguration, error) {
	if err := validation.Struct(&cfg); err != nil {
		return nil, err
	}
	if len(cfg.Variants) < 2 {
		return nil, models.NewValidationError("Variants", "at least two variants are required")
	}
	seen := make(map[string]bool, len(cfg.Variants))
	var total float64
	for _, v := range cfg.Variants {
		if seen[v.ID] {
			return nil, models.NewValidationError("Variants", "duplicate variant id "+v.ID)
		}
		seen[v.ID] = true
		total += v.Weight
	}
	if math.Abs(total-100) > weightTolerance {
		return nil, models.NewValidationError("Variants", fmt.Sprintf("weights sum to %.2f, want 100", total))
	}
	if _, ok := cfg.PrimaryMetric(); !ok {
		return nil, models.NewValidationError("SuccessMetrics", "a primary success metric is required")
	}

	if cfg.ConfidenceLevel == 0 {
		cfg.ConfidenceLevel = defaultConfidence
	}
	if cfg.ConfidenceLevel <= 0.5 || cfg.ConfidenceLevel >= 1 {
		return nil, models.NewValidationError("ConfidenceLevel", "must be between 0.5 and 1")
	}
	if cfg.MinimumDetectableEffect == 0 {
		cfg.MinimumDetectableEffect = defaultMDE
	}
	if cfg.MinimumDetectableEffect < 0 || cfg.MinimumDetectableEffect >= 1-defaultBaselineRate {
		return nil, models.NewValidationError("MinimumDetectableEffect", "must be between 0 and 0.5")
	}
	required := RequiredSampleSize(defaultBaselineRate, cfg.MinimumDetectableEffect, cfg.ConfidenceLevel)
	switch {
	case cfg.MinSampleSize == 0:
		cfg.MinSampleSize = required
	case cfg.MinSampleSize < required:
		return nil, models.NewValidationError("MinSampleSize",
			fmt.Sprintf("%d per variant is underpowered; at least %d needed to detect %.3f", cfg.MinSampleSize, required, cfg.MinimumDetectableEffect))
	}

	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	cfg.Status = models.ABTestDraft
	cfg.StartedAt, cfg.EndedAt = nil, nil

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.tests[cfg.ID]; exists {
		return nil, models.NewValidationError("ID", "test already exists: "+cfg.ID)
	}
	cfg.CreatedAt = o.now()
	cfg.Variants = append([]models.ABVariant(nil), cfg.Variants...)
	o.tests[cfg.ID] = &abTest{config: cfg, assignments: make(map[string]string)}

	o.logger.Info("ab_test_created",
		zap.String("test_id", cfg.ID),
		zap.Int("variants", len(cfg.Variants)),
		zap.Int("min_sample_size", cfg.MinSampleSize),
	)
	out := cfg
	return &out, nil
}

// GetABTest returns a copy of a test's configuration
func (o *Optimizer) GetABTest(id string) (*models.ABTestConfiguration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tests[id]
	if !ok {
		return nil, models.NewNotFoundError("ab_test", id)
	}
	cfg := t.config
	return &cfg, nil
}

func (o *Optimizer) transition(id string, from []models.ABTestStatus, to models.ABTestStatus) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tests[id]
	if !ok {
		return models.NewNotFoundError("ab_test", id)
	}
	if !slices.Contains(from, t.config.Status) {
		return models.NewValidationError("Status", fmt.Sprintf("cannot move test from %s to %s", t.config.Status, to))
	}
	now := o.now()
	if to == models.ABTestActive && t.config.StartedAt == nil {
		t.config.StartedAt = &now
	}
	if to == models.ABTestCancelled {
		t.config.EndedAt = &now
	}
	t.config.Status = to
	o.logger.Info("ab_test_status_changed", zap.String("test_id", id), zap.String("status", string(to)))
	return nil
}

// StartABTest activates a draft test and stamps its start time
func (o *Optimizer) StartABTest(id string) error {
	return o.transition(id, []models.ABTestStatus{models.ABTestDraft}, models.ABTestActive)
}

// PauseABTest stops assignment and event collection on an active test
func (o *Optimizer) PauseABTest(id string) error {
	return o.transition(id, []models.ABTestStatus{models.ABTestActive}, models.ABTestPaused)
}

// ResumeABTest reactivates a paused test
func (o *Optimizer) ResumeABTest(id string) error {
	return o.transition(id, []models.ABTestStatus{models.ABTestPaused}, models.ABTestActive)
}

// CancelABTest abandons a test without computing a verdict
func (o *Optimizer) CancelABTest(id string) error {
	return o.transition(id,
		[]models.ABTestStatus{models.ABTestDraft, models.ABTestActive, models.ABTestPaused},
		models.ABTestCancelled)
}

// GetVariant assigns userID to a variant of an active test. Repeat calls
// return the same variant. Assignment hashes testID:userID into [0,100) and
// walks the cumulative variant weights.
func (o *Optimizer) GetVariant(testID, userID string, uc *models.UserContext) (*models.ABVariant, error) {
	if userID == "" {
		return nil, models.NewValidationError("UserID", "is required")
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	t, ok := o.tests[testID]
	if !ok {
		return nil, models.NewNotFoundError("ab_test", testID)
	}
	if id, assigned := t.assignments[userID]; assigned {
		return t.variant(id), nil
	}
	if t.config.Status != models.ABTestActive {
		return nil, models.NewValidationError("Status", "test is not active")
	}
	if !eligible(t.config, userID, uc) {
		return nil, ErrNotEligible
	}

	v := assign(t.config, userID)
	t.assignments[userID] = v.ID
	return t.variant(v.ID), nil
}

func (t *abTest) variant(id string) *models.ABVariant {
	for i := range t.config.Variants {
		if t.config.Variants[i].ID == id {
			v := t.config.Variants[i]
			return &v
		}
	}
	return nil
}

func assign(cfg models.ABTestConfiguration, userID string) models.ABVariant {
	b := bucket(cfg.ID + ":" + userID)
	var cumulative float64
	for _, v := range cfg.Variants {
		cumulative += v.Weight
		if b < cumulative {
			return v
		}
	}
	return cfg.Variants[len(cfg.Variants)-1]
}

func eligible(cfg models.ABTestConfiguration, userID string, uc *models.UserContext) bool {
	aud := cfg.TargetAudience
	if aud == nil {
		return true
	}
	if len(aud.UserIDs) > 0 && !slices.Contains(aud.UserIDs, userID) {
		return false
	}
	if len(aud.ExpertiseLevels) > 0 {
		if uc == nil || !slices.Contains(aud.ExpertiseLevels, uc.Preferences.ExpertiseLevel) {
			return false
		}
	}
	if aud.Percentage > 0 && aud.Percentage < 100 {
		return bucket("audience:"+cfg.ID+":"+userID) < aud.Percentage
	}
	return true
}

// RecordEvent appends an event for an assigned participant of an active
// test. Past 100 participants and 7 days an interim check runs and, with
// AutoStop, completes the test once p < 0.01.
func (o *Optimizer) RecordEvent(ev models.ABTestEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	t, ok := o.tests[ev.TestID]
	if !ok {
		return models.NewNotFoundError("ab_test", ev.TestID)
	}
	if t.config.Status != models.ABTestActive {
		return models.NewValidationError("Status", "test is not active")
	}
	variantID, assigned := t.assignments[ev.UserID]
	if !assigned {
		return models.NewNotFoundError("ab_participant", ev.UserID)
	}
	ev.VariantID = variantID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = o.now()
	}
	if ev.Metric == "" {
		primary, _ := t.config.PrimaryMetric()
		ev.Metric = primary.Name
	}
	t.events = append(t.events, ev)

	if len(t.assignments) <= interimMinParticipant || t.config.StartedAt == nil ||
		o.now().Sub(*t.config.StartedAt) <= interimMinDuration {
		return nil
	}
	interim := computeResults(t, o.now())
	t.results = &interim
	o.logger.Debug("ab_test_interim_check",
		zap.String("test_id", t.config.ID),
		zap.Float64("p_value", interim.PValue),
	)
	if t.config.AutoStop && interim.PValue < autoStopPValue {
		o.logger.Info("ab_test_auto_stopped", zap.String("test_id", t.config.ID), zap.Float64("p_value", interim.PValue))
		o.completeLocked(t)
	}
	return nil
}

// CompleteABTest finalizes an active or paused test, derives a
// recommendation and spawns an improvement plan when a treatment wins
func (o *Optimizer) CompleteABTest(id string) (*models.ABTestResults, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tests[id]
	if !ok {
		return nil, models.NewNotFoundError("ab_test", id)
	}
	if t.config.Status != models.ABTestActive && t.config.Status != models.ABTestPaused {
		return nil, models.NewValidationError("Status", fmt.Sprintf("cannot complete a %s test", t.config.Status))
	}
	res := o.completeLocked(t)
	return &res, nil
}

// ABTestResults returns the current statistics of a test without changing it
func (o *Optimizer) ABTestResults(id string) (*models.ABTestResults, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tests[id]
	if !ok {
		return nil, models.NewNotFoundError("ab_test", id)
	}
	if t.config.Status == models.ABTestCompleted && t.results != nil {
		res := *t.results
		return &res, nil
	}
	res := computeResults(t, o.now())
	return &res, nil
}

func (o *Optimizer) completeLocked(t *abTest) models.ABTestResults {
	now := o.now()
	res := computeResults(t, now)
	res.Status = models.ABTestCompleted
	t.config.Status = models.ABTestCompleted
	t.config.EndedAt = &now

	ins := o.newInsight(models.InsightABTest, models.SeverityInfo, 1-res.PValue,
		fmt.Sprintf("A/B test %s: %s", t.config.Name, res.Recommendation))
	ins.Component = t.config.Component
	ins.Description = fmt.Sprintf("%d participants, p=%.4f", res.TotalParticipants, res.PValue)
	ins.Recommendation = string(res.Recommendation)
	ins.Evidence = map[string]any{"test_id": t.config.ID, "winner": res.WinnerVariantID}
	o.recordInsightLocked(ins)
	res.Insight = &ins

	if res.Recommendation == models.RecommendDeployWinner {
		plan := o.planFor(t.config, res)
		o.plans = append(o.plans, plan)
		res.ImprovementPlanID = plan.ID
	}
	t.results = &res

	o.logger.Info("ab_test_completed",
		zap.String("test_id", t.config.ID),
		zap.String("recommendation", string(res.Recommendation)),
		zap.String("winner", res.WinnerVariantID),
	)
	return res
}

func (o *Optimizer) planFor(cfg models.ABTestConfiguration, res models.ABTestResults) models.ContinuousImprovementPlan {
	var lift float64
	for _, v := range res.Variants {
		if v.VariantID == res.WinnerVariantID {
			lift = v.Lift
		}
	}
	return models.ContinuousImprovementPlan{
		ID:           uuid.New().String(),
		SourceTestID: cfg.ID,
		Component:    cfg.Component,
		Objective:    fmt.Sprintf("Roll out variant %s of %s", res.WinnerVariantID, cfg.Name),
		ExpectedLift: lift,
		Actions: []models.ImprovementAction{
			{Description: "Make variant " + res.WinnerVariantID + " the default", Owner: string(cfg.Component)},
			{Description: "Monitor effectiveness for regressions over the next 14 days", Owner: "learning"},
			{Description: "Archive the losing variants", Owner: string(cfg.Component)},
		},
		SuccessCriteria: []string{
			fmt.Sprintf("Conversion lift stays above %.1f%%", lift*100/2),
			"No critical effectiveness anomalies after rollout",
		},
		CreatedAt: o.now(),
	}
}

// computeResults runs a two-proportion z-test of each treatment against the
// control (first variant) on per-participant conversion of the primary metric
func computeResults(t *abTest, now time.Time) models.ABTestResults {
	cfg := t.config
	primary, _ := cfg.PrimaryMetric()

	converted := make(map[string]bool)
	values := make(map[string][]float64)
	for _, ev := range t.events {
		if ev.Metric != primary.Name {
			continue
		}
		values[ev.VariantID] = append(values[ev.VariantID], ev.Value)
		if ev.Converted {
			converted[ev.UserID] = true
		}
	}
	participants := make(map[string]int)
	conversions := make(map[string]int)
	for user, variant := range t.assignments {
		participants[variant]++
		if converted[user] {
			conversions[variant]++
		}
	}

	res := models.ABTestResults{
		TestID:            cfg.ID,
		Status:            cfg.Status,
		TotalParticipants: len(t.assignments),
		PValue:            1,
		ConfidenceLevel:   cfg.ConfidenceLevel,
		ComputedAt:        now,
	}

	control := cfg.Variants[0].ID
	n1, x1 := participants[control], conversions[control]
	controlRate := rate(x1, n1)
	best := -1
	for i, v := range cfg.Variants {
		n, x := participants[v.ID], conversions[v.ID]
		vs := models.VariantStatistics{
			VariantID:      v.ID,
			Participants:   n,
			Conversions:    x,
			ConversionRate: rate(x, n),
			MeanValue:      mean(values[v.ID]),
			StdDev:         stddev(values[v.ID]),
			PValue:         1,
		}
		if i > 0 {
			vs.ZScore, vs.PValue = TwoProportionZTest(x1, n1, x, n)
			if controlRate > 0 {
				vs.Lift = (vs.ConversionRate - controlRate) / controlRate
			}
			if vs.PValue < res.PValue {
				res.PValue = vs.PValue
				best = i
			}
		}
		res.Variants = append(res.Variants, vs)
	}

	res.Significant = res.PValue < 1-cfg.ConfidenceLevel
	switch {
	case res.Significant && res.Variants[best].ZScore > 0:
		res.WinnerVariantID = res.Variants[best].VariantID
		res.Recommendation = models.RecommendDeployWinner
	case res.Significant:
		res.WinnerVariantID = control
		res.Recommendation = models.RecommendKeepControl
	case res.TotalParticipants < cfg.MinSampleSize*len(cfg.Variants):
		res.Recommendation = models.RecommendContinueTesting
	default:
		res.Recommendation = models.RecommendRedesignTest
	}
	return res
}

func rate(x, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(x) / float64(n)
}
