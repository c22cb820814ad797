package orchestrator

import (
	"context"
	"fmt"

	"github.com/benvon/smart-coach/internal/logger"
	"github.com/benvon/smart-coach/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProfileStore persists user profiles. GetProfile returns (nil, nil) for an
// unknown user.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	SaveProfile(ctx context.Context, profile *models.Profile) error
}

// DefaultContext is the neutral starting context for a new user
func DefaultContext(userID string) *models.UserContext {
	return &models.UserContext{
		UserID:    userID,
		SessionID: uuid.New().String(),
		EmotionalState: models.EmotionalState{
			Mood:       models.MoodNeutral,
			Energy:     models.LevelMedium,
			Confidence: models.LevelMedium,
			Motivation: models.MotivationMedium,
			Stress:     models.StressModerate,
		},
		Environment: models.Environment{
			Space: models.SpaceModerate,
		},
		Preferences: models.Preferences{
			ExpertiseLevel:   models.ExpertiseBeginner,
			PromptComplexity: models.ComplexityModerate,
		},
	}
}

// InitializeUser prepares a user's context. It is the only operation that
// consults the profile store: an existing profile seeds expertise and
// equipment, and a missing one is created. An existing context is kept and
// only takes the profile's preferences.
func (o *Orchestrator) InitializeUser(ctx context.Context, userID string) (*models.UserContext, error) {
	if userID == "" {
		return nil, models.NewValidationError("UserID", "is required")
	}

	profile, err := o.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if existing, ok := o.contexts.GetContext(userID); ok {
		if profile == nil {
			return existing, nil
		}
		update := models.ContextUpdate{Preferences: &models.PreferencesUpdate{}}
		if profile.Expertise != "" {
			update.Preferences.ExpertiseLevel = &profile.Expertise
		}
		if len(profile.Equipment) > 0 && len(existing.Environment.Equipment) == 0 {
			update.Environment = &models.EnvironmentUpdate{Equipment: profile.Equipment}
		}
		if err := o.contexts.UpdateContext(userID, update); err != nil {
			return nil, fmt.Errorf("apply profile to context: %w", err)
		}
		uc, _ := o.contexts.GetContext(userID)
		return uc, nil
	}

	uc := DefaultContext(userID)
	if profile != nil {
		if profile.Expertise != "" {
			uc.Preferences.ExpertiseLevel = profile.Expertise
		}
		uc.Environment.Equipment = append([]string(nil), profile.Equipment...)
	}
	if err := o.contexts.SetContext(userID, uc); err != nil {
		return nil, fmt.Errorf("store initial context: %w", err)
	}
	o.logger.Info("user_initialized",
		zap.String("user_id", logger.SanitizeUserID(userID)),
		zap.Bool("has_profile", profile != nil),
	)
	stored, _ := o.contexts.GetContext(userID)
	return stored, nil
}

// loadProfile fetches the profile, creating it when absent. It returns nil
// when no profile store is configured.
func (o *Orchestrator) loadProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if o.profiles == nil {
		return nil, nil
	}
	profile, err := o.profiles.GetProfile(ctx, userID)
	if err != nil && !models.IsNotFoundError(err) {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile != nil {
		return profile, nil
	}

	now := o.now()
	profile = &models.Profile{
		UserID:    userID,
		Expertise: models.ExpertiseBeginner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.profiles.SaveProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	o.logger.Info("profile_created", zap.String("user_id", logger.SanitizeUserID(userID)))
	return profile, nil
}
