package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/benvon/smart-coach/internal/config"
	"github.com/benvon/smart-coach/internal/database"
	"github.com/benvon/smart-coach/internal/models"
	"github.com/spf13/cobra"
)

// withDB opens the configured database for the duration of fn
func withDB(fn func(db *database.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()
	return fn(db)
}

// NewMigrateCmd creates the tables the server and worker use
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the profile and learning-event tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(func(db *database.DB) error {
				if err := db.Migrate(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

// NewProfileCmd manages stored user profiles
func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage stored user profiles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <user-id>",
		Short: "Show a stored profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *database.DB) error {
				profile, err := database.NewProfileRepository(db).GetProfile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if profile == nil {
					return models.NewNotFoundError("profile", args[0])
				}
				return writeJSON(cmd.OutOrStdout(), profile)
			})
		},
	})

	var (
		displayName string
		expertise   string
		goals       []string
		equipment   []string
	)
	set := &cobra.Command{
		Use:   "set <user-id>",
		Short: "Create or replace a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile := &models.Profile{
				UserID:      args[0],
				DisplayName: displayName,
				Expertise:   models.ExpertiseLevel(expertise),
				Goals:       goals,
				Equipment:   equipment,
			}
			if err := validateProfile(profile); err != nil {
				return err
			}
			return withDB(func(db *database.DB) error {
				if err := database.NewProfileRepository(db).SaveProfile(cmd.Context(), profile); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), profile)
			})
		},
	}
	set.Flags().StringVar(&displayName, "name", "", "Display name")
	set.Flags().StringVar(&expertise, "expertise", string(models.ExpertiseBeginner), "Expertise level")
	set.Flags().StringSliceVar(&goals, "goal", nil, "Training goal (repeatable)")
	set.Flags().StringSliceVar(&equipment, "equipment", nil, "Available equipment (repeatable)")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a stored profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *database.DB) error {
				if err := database.NewProfileRepository(db).DeleteProfile(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "profile %s deleted\n", args[0])
				return nil
			})
		},
	})

	var since time.Duration
	events := &cobra.Command{
		Use:   "events <event-type>",
		Short: "Count learning events of a type recorded by the worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventType := models.LearningEventType(args[0])
			return withDB(func(db *database.DB) error {
				n, err := database.NewLearningEventRepository(db).CountSince(cmd.Context(), eventType, time.Now().Add(-since))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s events in the last %s: %d\n", eventType, since, n)
				return nil
			})
		},
	}
	events.Flags().DurationVar(&since, "since", 24*time.Hour, "Look-back window")
	cmd.AddCommand(events)

	return cmd
}

// validateProfile rejects an unknown expertise level before touching the database
func validateProfile(p *models.Profile) error {
	switch p.Expertise {
	case models.ExpertiseBeginner, models.ExpertiseIntermediate, models.ExpertiseAdvanced, models.ExpertiseExpert:
		return nil
	}
	return models.NewValidationError("Expertise", fmt.Sprintf("unknown level %q", p.Expertise))
}
