package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/benvon/smart-coach/internal/models"
)

type mockProfileStore struct {
	getProfileFunc  func(ctx context.Context, userID string) (*models.Profile, error)
	saveProfileFunc func(ctx context.Context, profile *models.Profile) error
	saved           []*models.Profile
}

var _ ProfileStore = (*mockProfileStore)(nil)

func (m *mockProfileStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if m.getProfileFunc != nil {
		return m.getProfileFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockProfileStore) SaveProfile(ctx context.Context, profile *models.Profile) error {
	m.saved = append(m.saved, profile)
	if m.saveProfileFunc != nil {
		return m.saveProfileFunc(ctx, profile)
	}
	return nil
}

func TestInitializeUser(t *testing.T) {
	t.Parallel()

	advanced := func(_ context.Context, userID string) (*models.Profile, error) {
		return &models.Profile{UserID: userID, Expertise: models.ExpertiseAdvanced, Equipment: []string{"barbell", "rack"}}, nil
	}

	tests := []struct {
		name          string
		store         *mockProfileStore
		wantErr       bool
		wantExpertise models.ExpertiseLevel
		wantEquipment int
		wantSaved     int
	}{
		{
			name:          "no profile store",
			wantExpertise: models.ExpertiseBeginner,
		},
		{
			name:          "creates missing profile",
			store:         &mockProfileStore{},
			wantExpertise: models.ExpertiseBeginner,
			wantSaved:     1,
		},
		{
			name: "not found is treated as missing",
			store: &mockProfileStore{getProfileFunc: func(_ context.Context, userID string) (*models.Profile, error) {
				return nil, models.NewNotFoundError("profile", userID)
			}},
			wantExpertise: models.ExpertiseBeginner,
			wantSaved:     1,
		},
		{
			name:          "existing profile seeds context",
			store:         &mockProfileStore{getProfileFunc: advanced},
			wantExpertise: models.ExpertiseAdvanced,
			wantEquipment: 2,
		},
		{
			name: "lookup failure",
			store: &mockProfileStore{getProfileFunc: func(context.Context, string) (*models.Profile, error) {
				return nil, errors.New("connection refused")
			}},
			wantErr: true,
		},
		{
			name: "save failure",
			store: &mockProfileStore{saveProfileFunc: func(context.Context, *models.Profile) error {
				return errors.New("disk full")
			}},
			wantErr:   true,
			wantSaved: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var opts []Option
			if tt.store != nil {
				opts = append(opts, WithProfileStore(tt.store))
			}
			o := newTestOrchestrator(t, nil, opts...)

			uc, err := o.InitializeUser(context.Background(), "athlete-1")
			if tt.store != nil && len(tt.store.saved) != tt.wantSaved {
				t.Errorf("saved profiles = %d, want %d", len(tt.store.saved), tt.wantSaved)
			}
			if tt.wantErr {
				if err == nil {
					t.Fatal("InitializeUser() error = nil")
				}
				if _, ok := o.Contexts().GetContext("athlete-1"); ok {
					t.Error("context stored despite error")
				}
				return
			}
			if err != nil {
				t.Fatalf("InitializeUser() error = %v", err)
			}
			if uc.SessionID == "" || uc.EmotionalState.Mood != models.MoodNeutral {
				t.Errorf("context = %+v", uc)
			}
			if uc.Preferences.ExpertiseLevel != tt.wantExpertise {
				t.Errorf("ExpertiseLevel = %s, want %s", uc.Preferences.ExpertiseLevel, tt.wantExpertise)
			}
			if len(uc.Environment.Equipment) != tt.wantEquipment {
				t.Errorf("Equipment = %v", uc.Environment.Equipment)
			}
		})
	}
}

func TestInitializeUser_KeepsExistingContext(t *testing.T) {
	t.Parallel()

	store := &mockProfileStore{getProfileFunc: func(_ context.Context, userID string) (*models.Profile, error) {
		return &models.Profile{UserID: userID, Expertise: models.ExpertiseAdvanced, Equipment: []string{"kettlebell"}}, nil
	}}
	o := newTestOrchestrator(t, nil, WithProfileStore(store))

	uc := DefaultContext("athlete-1")
	uc.EmotionalState.Mood = models.MoodGood
	uc.Environment.Equipment = []string{"dumbbells"}
	if err := o.Contexts().SetContext("athlete-1", uc); err != nil {
		t.Fatal(err)
	}

	got, err := o.InitializeUser(context.Background(), "athlete-1")
	if err != nil {
		t.Fatalf("InitializeUser() error = %v", err)
	}
	if got.SessionID != uc.SessionID || got.EmotionalState.Mood != models.MoodGood {
		t.Errorf("existing context replaced: %+v", got)
	}
	if got.Preferences.ExpertiseLevel != models.ExpertiseAdvanced {
		t.Errorf("ExpertiseLevel = %s", got.Preferences.ExpertiseLevel)
	}
	if len(got.Environment.Equipment) != 1 || got.Environment.Equipment[0] != "dumbbells" {
		t.Errorf("Equipment = %v, context equipment should win", got.Environment.Equipment)
	}
}

func TestInitializeUser_RequiresUserID(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, nil)
	if _, err := o.InitializeUser(context.Background(), ""); !models.IsValidationError(err) {
		t.Errorf("error = %v, want ValidationError", err)
	}
}
