package commands

import (
	"fmt"
	"os"

	"github.com/benvon/smart-coach/internal/config"
	"github.com/benvon/smart-coach/internal/models"
	"github.com/benvon/smart-coach/internal/orchestrator"
	"github.com/benvon/smart-coach/internal/prompts"
	"github.com/benvon/smart-coach/internal/router"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRunCmd executes one coaching request through an in-process orchestrator
func NewRunCmd(newLogger func() *zap.Logger) *cobra.Command {
	var (
		file        string
		userID      string
		requestType string
		text        string
		imagePath   string
		readiness   float64
		budget      float64
		service     string
		personalize bool
		simulated   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process a coaching request locally and print the response",
		Long: "Builds an orchestrator in this process from the catalog and runs one request through it. " +
			"With --simulated only the simulated backend is registered, so no external service is called.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := newLogger()

			catalog := config.DefaultCatalog(nil)
			if !simulated {
				var err error
				if catalog, err = resolveCatalog(file); err != nil {
					return err
				}
			}

			rt := router.New(log)
			generator := prompts.New(log)
			if err := catalog.Register(rt, generator); err != nil {
				return err
			}
			coach, err := orchestrator.New(orchestrator.Components{Router: rt, Prompts: generator}, log)
			if err != nil {
				return err
			}
			if _, err := coach.InitializeUser(cmd.Context(), userID); err != nil {
				return err
			}

			req := &models.CoachingRequest{
				UserID: userID,
				Type:   models.RequestType(requestType),
				Input:  models.RequestInput{Text: text},
				Options: models.RequestOptions{
					EnableLearning:        true,
					EnablePersonalization: personalize,
					PreferredService:      service,
				},
			}
			if imagePath != "" {
				img, err := os.ReadFile(imagePath) // #nosec G304 -- operator-supplied path
				if err != nil {
					return fmt.Errorf("failed to read image: %w", err)
				}
				req.Input.Image = img
			}
			if cmd.Flags().Changed("readiness") {
				req.Context.ReadinessScore = &readiness
			}
			if cmd.Flags().Changed("budget") {
				req.Context.Budget = &budget
			}

			resp := coach.ProcessRequest(cmd.Context(), req)
			if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("request failed: %s", resp.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Catalog YAML (defaults to CATALOG_PATH or the built-in catalog)")
	cmd.Flags().StringVarP(&userID, "user", "u", "local-user", "User ID")
	cmd.Flags().StringVarP(&requestType, "type", "t", string(models.RequestGeneral), "Request type")
	cmd.Flags().StringVar(&text, "text", "", "Request text")
	cmd.Flags().StringVar(&imagePath, "image", "", "Path to an image to import")
	cmd.Flags().Float64Var(&readiness, "readiness", 0, "Readiness score override in [0,1]")
	cmd.Flags().Float64Var(&budget, "budget", 0, "Per-request budget in USD")
	cmd.Flags().StringVar(&service, "service", "", "Preferred service")
	cmd.Flags().BoolVar(&personalize, "personalize", true, "Attach personalization to the response")
	cmd.Flags().BoolVar(&simulated, "simulated", false, "Use only the simulated backend")
	return cmd
}
