package learning

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benvon/smart-coach/internal/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig(weights ...float64) models.ABTestConfiguration {
	cfg := models.ABTestConfiguration{
		Name:           "tone test",
		Component:      models.ComponentPromptGeneration,
		SuccessMetrics: []models.SuccessMetric{{Name: "completed", Primary: true}},
	}
	ids := []string{"control", "treatment", "third"}
	for i, w := range weights {
		cfg.Variants = append(cfg.Variants, models.ABVariant{ID: ids[i], Name: ids[i], Weight: w})
	}
	return cfg
}

func TestCreateABTest_Validation(t *testing.T) {
	t.Parallel()

	noPrimary := testConfig(50, 50)
	noPrimary.SuccessMetrics[0].Primary = false
	underpowered := testConfig(50, 50)
	underpowered.MinSampleSize = 100
	// enough at 95% confidence, short at 99%
	strict := testConfig(50, 50)
	strict.ConfidenceLevel = 0.99
	strict.MinSampleSize = 2000

	tests := []struct {
		name    string
		cfg     models.ABTestConfiguration
		wantErr bool
	}{
		{name: "valid", cfg: testConfig(50, 50)},
		{name: "within tolerance", cfg: testConfig(50, 50.005)},
		{name: "three variants", cfg: testConfig(34, 33, 33)},
		{name: "weights short of 100", cfg: testConfig(50, 40), wantErr: true},
		{name: "weights just outside tolerance", cfg: testConfig(50, 50.02), wantErr: true},
		{name: "single variant", cfg: testConfig(100), wantErr: true},
		{name: "no primary metric", cfg: noPrimary, wantErr: true},
		{name: "underpowered", cfg: underpowered, wantErr: true},
		{name: "underpowered at stricter confidence", cfg: strict, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := New(nil)
			got, err := o.CreateABTest(tt.cfg)
			if tt.wantErr {
				if !models.IsValidationError(err) {
					t.Errorf("CreateABTest() error = %v, want ValidationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateABTest() error = %v", err)
			}
			if got.Status != models.ABTestDraft || got.ID == "" {
				t.Errorf("status=%s id=%q", got.Status, got.ID)
			}
		})
	}
}

func TestCreateABTest_FillsPoweredSampleSize(t *testing.T) {
	t.Parallel()

	o := New(nil)
	got, err := o.CreateABTest(testConfig(50, 50))
	if err != nil {
		t.Fatal(err)
	}
	if got.MinSampleSize != RequiredSampleSize(0.5, 0.05, 0.95) {
		t.Errorf("MinSampleSize = %d", got.MinSampleSize)
	}
	if got.MinSampleSize < 1500 || got.MinSampleSize > 1600 {
		t.Errorf("MinSampleSize = %d, want about 1565", got.MinSampleSize)
	}
	if got.ConfidenceLevel != 0.95 {
		t.Errorf("ConfidenceLevel = %v", got.ConfidenceLevel)
	}
}

func TestABTest_Lifecycle(t *testing.T) {
	t.Parallel()

	o := New(nil)
	cfg, err := o.CreateABTest(testConfig(50, 50))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := o.GetVariant(cfg.ID, "u1", nil); !models.IsValidationError(err) {
		t.Errorf("GetVariant on draft error = %v, want ValidationError", err)
	}
	if err := o.PauseABTest(cfg.ID); !models.IsValidationError(err) {
		t.Errorf("PauseABTest on draft error = %v", err)
	}
	if err := o.StartABTest(cfg.ID); err != nil {
		t.Fatal(err)
	}
	if err := o.StartABTest(cfg.ID); !models.IsValidationError(err) {
		t.Errorf("second StartABTest error = %v", err)
	}
	started, _ := o.GetABTest(cfg.ID)
	if started.StartedAt == nil || started.Status != models.ABTestActive {
		t.Errorf("started test = %+v", started)
	}

	if err := o.PauseABTest(cfg.ID); err != nil {
		t.Fatal(err)
	}
	if err := o.RecordEvent(models.ABTestEvent{TestID: cfg.ID, UserID: "u1"}); !models.IsValidationError(err) {
		t.Errorf("RecordEvent on paused test error = %v", err)
	}
	if err := o.ResumeABTest(cfg.ID); err != nil {
		t.Fatal(err)
	}
	if err := o.RecordEvent(models.ABTestEvent{TestID: cfg.ID, UserID: "stranger"}); !models.IsNotFoundError(err) {
		t.Errorf("RecordEvent for unassigned user error = %v, want NotFoundError", err)
	}
	if err := o.CancelABTest(cfg.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := o.CompleteABTest(cfg.ID); !models.IsValidationError(err) {
		t.Errorf("CompleteABTest on cancelled test error = %v", err)
	}
	if err := o.StartABTest("missing"); !models.IsNotFoundError(err) {
		t.Errorf("StartABTest(missing) error = %v", err)
	}
}

func TestGetVariant_StableAndWeighted(t *testing.T) {
	t.Parallel()

	o := New(nil)
	cfg, err := o.CreateABTest(testConfig(80, 20))
	if err != nil {
		t.Fatal(err)
	}
	if err := o.StartABTest(cfg.ID); err != nil {
		t.Fatal(err)
	}

	control := 0
	const users = 2000
	for i := 0; i < users; i++ {
		user := fmt.Sprintf("user-%d", i)
		first, err := o.GetVariant(cfg.ID, user, nil)
		if err != nil {
			t.Fatal(err)
		}
		second, _ := o.GetVariant(cfg.ID, user, nil)
		if first.ID != second.ID {
			t.Fatalf("user %s got %s then %s", user, first.ID, second.ID)
		}
		if first.ID == "control" {
			control++
		}
	}
	share := float64(control) / users
	if share < 0.75 || share > 0.85 {
		t.Errorf("control share = %.3f, want about 0.8", share)
	}
}

func TestGetVariant_TargetAudience(t *testing.T) {
	t.Parallel()

	o := New(nil)
	c := testConfig(50, 50)
	c.TargetAudience = &models.TargetAudience{
		UserIDs:         []string{"alice", "bob"},
		ExpertiseLevels: []models.ExpertiseLevel{models.ExpertiseAdvanced},
	}
	cfg, _ := o.CreateABTest(c)
	_ = o.StartABTest(cfg.ID)

	advanced := &models.UserContext{Preferences: models.Preferences{ExpertiseLevel: models.ExpertiseAdvanced}}
	beginner := &models.UserContext{Preferences: models.Preferences{ExpertiseLevel: models.ExpertiseBeginner}}

	if _, err := o.GetVariant(cfg.ID, "alice", advanced); err != nil {
		t.Errorf("eligible user error = %v", err)
	}
	if _, err := o.GetVariant(cfg.ID, "bob", beginner); !errors.Is(err, ErrNotEligible) {
		t.Errorf("wrong expertise error = %v, want ErrNotEligible", err)
	}
	if _, err := o.GetVariant(cfg.ID, "carol", advanced); !errors.Is(err, ErrNotEligible) {
		t.Errorf("unlisted user error = %v, want ErrNotEligible", err)
	}
}

// enroll assigns n users and returns each user's variant
func enroll(t *testing.T, o *Optimizer, testID string, n int) map[string]string {
	t.Helper()
	out := make(map[string]string, n)
	for i := 0; i < n; i++ {
		user := fmt.Sprintf("user-%d", i)
		v, err := o.GetVariant(testID, user, nil)
		if err != nil {
			t.Fatal(err)
		}
		out[user] = v.ID
	}
	return out
}

func TestCompleteABTest_DeploysClearWinner(t *testing.T) {
	t.Parallel()

	o := New(nil)
	cfg, _ := o.CreateABTest(testConfig(50, 50))
	_ = o.StartABTest(cfg.ID)

	i := 0
	for user, variant := range enroll(t, o, cfg.ID, 400) {
		i++
		converted := variant == "treatment" && i%2 == 0 || variant == "control" && i%10 == 0
		if err := o.RecordEvent(models.ABTestEvent{TestID: cfg.ID, UserID: user, Value: 1, Converted: converted}); err != nil {
			t.Fatal(err)
		}
	}

	res, err := o.CompleteABTest(cfg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Significant || res.Recommendation != models.RecommendDeployWinner || res.WinnerVariantID != "treatment" {
		t.Fatalf("results = %+v", res)
	}
	if res.ImprovementPlanID == "" || res.Insight == nil {
		t.Error("a clear winner should spawn an insight and an improvement plan")
	}
	plans := o.ImprovementPlans()
	if len(plans) != 1 || plans[0].SourceTestID != cfg.ID {
		t.Errorf("ImprovementPlans() = %+v", plans)
	}
	final, _ := o.GetABTest(cfg.ID)
	if final.Status != models.ABTestCompleted || final.EndedAt == nil {
		t.Errorf("final status = %s", final.Status)
	}
}

func TestCompleteABTest_ContinueWhenInconclusive(t *testing.T) {
	t.Parallel()

	o := New(nil)
	cfg, _ := o.CreateABTest(testConfig(50, 50))
	_ = o.StartABTest(cfg.ID)
	for user := range enroll(t, o, cfg.ID, 20) {
		_ = o.RecordEvent(models.ABTestEvent{TestID: cfg.ID, UserID: user, Converted: true})
	}
	res, err := o.CompleteABTest(cfg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Significant || res.Recommendation != models.RecommendContinueTesting {
		t.Errorf("results = %+v", res)
	}
	if len(o.ImprovementPlans()) != 0 {
		t.Error("no plan expected without a winner")
	}
}

func TestRecordEvent_InterimAutoStop(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	o := New(nil, WithClock(clock.Now))
	c := testConfig(50, 50)
	c.AutoStop = true
	cfg, _ := o.CreateABTest(c)
	_ = o.StartABTest(cfg.ID)
	assigned := enroll(t, o, cfg.ID, 300)

	clock.Advance(8 * 24 * time.Hour)
	for user, variant := range assigned {
		err := o.RecordEvent(models.ABTestEvent{TestID: cfg.ID, UserID: user, Converted: variant == "treatment"})
		if err != nil {
			if !models.IsValidationError(err) {
				t.Fatalf("RecordEvent() error = %v", err)
			}
			break
		}
	}

	got, _ := o.GetABTest(cfg.ID)
	if got.Status != models.ABTestCompleted {
		t.Errorf("status = %s, want auto-stopped completed test", got.Status)
	}
}

func TestRecordEvent_NoInterimBeforeSevenDays(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	o := New(nil, WithClock(clock.Now))
	c := testConfig(50, 50)
	c.AutoStop = true
	cfg, _ := o.CreateABTest(c)
	_ = o.StartABTest(cfg.ID)

	clock.Advance(6 * 24 * time.Hour)
	for user, variant := range enroll(t, o, cfg.ID, 300) {
		if err := o.RecordEvent(models.ABTestEvent{TestID: cfg.ID, UserID: user, Converted: variant == "treatment"}); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := o.GetABTest(cfg.ID)
	if got.Status != models.ABTestActive {
		t.Errorf("status = %s, want active", got.Status)
	}
}
