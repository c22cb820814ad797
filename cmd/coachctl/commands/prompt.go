package commands

import (
	"fmt"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/benvon/smart-coach/internal/orchestrator"
	"github.com/benvon/smart-coach/internal/prompts"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewPromptCmd groups the prompt subcommands
func NewPromptCmd(newLogger func() *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Work with prompt templates",
	}
	cmd.AddCommand(newPromptPreviewCmd(newLogger))
	return cmd
}

func newPromptPreviewCmd(newLogger func() *zap.Logger) *cobra.Command {
	var (
		file        string
		requestType string
		complexity  string
		expertise   string
		mood        string
		service     string
		kind        string
		input       string
		hasImage    bool
		vars        map[string]string
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render the prompt the generator would send for a request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := models.RequestType(requestType)
			if !models.IsValidRequestType(rt) {
				return fmt.Errorf("unknown request type %q", requestType)
			}

			generator := prompts.New(newLogger())
			if file != "" {
				catalog, err := resolveCatalog(file)
				if err != nil {
					return err
				}
				if err := catalog.Register(nil, generator); err != nil {
					return err
				}
			}

			uc := orchestrator.DefaultContext("preview")
			uc.Preferences.ExpertiseLevel = models.ExpertiseLevel(expertise)
			uc.EmotionalState.Mood = models.Mood(mood)

			prompt, err := generator.Generate(cmd.Context(), prompts.GenerationRequest{
				Context:       uc,
				Category:      prompts.CategoryForRequest(rt),
				Complexity:    models.Complexity(complexity),
				TargetService: service,
				TargetKind:    kind,
				UserInput:     input,
				HasImage:      hasImage,
				Variables:     vars,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), prompt)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Catalog YAML whose templates are added to the defaults")
	cmd.Flags().StringVarP(&requestType, "type", "t", string(models.RequestTrainingGuidance), "Request type")
	cmd.Flags().StringVar(&complexity, "complexity", "", "Prompt complexity: simple, moderate or detailed")
	cmd.Flags().StringVar(&expertise, "expertise", string(models.ExpertiseBeginner), "User expertise level")
	cmd.Flags().StringVar(&mood, "mood", string(models.MoodNeutral), "User mood")
	cmd.Flags().StringVar(&service, "service", "", "Target service name")
	cmd.Flags().StringVar(&kind, "kind", "", "Target backend kind, which selects the phrasing style")
	cmd.Flags().StringVarP(&input, "input", "i", "", "User input text")
	cmd.Flags().BoolVar(&hasImage, "image", false, "Render as if an image accompanies the request")
	cmd.Flags().StringToStringVar(&vars, "var", nil, "Template variable override, key=value (repeatable)")
	return cmd
}
