package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewCatalogCmd groups the catalog subcommands
func NewCatalogCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the AI service and prompt template catalog",
	}
	cmd.PersistentFlags().StringVarP(&file, "file", "f", "", "Catalog YAML file (defaults to CATALOG_PATH or the built-in catalog)")

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate a catalog file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := resolveCatalog(file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog ok: %d services, %d templates\n", len(catalog.Services), len(catalog.Templates))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List catalog services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := resolveCatalog(file)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, svc := range catalog.Services {
				caps := make([]string, 0, len(svc.Capabilities))
				for _, c := range svc.Capabilities {
					caps = append(caps, fmt.Sprintf("%s=%.2f", c.Name, c.Proficiency))
				}
				fmt.Fprintf(out, "%s\tkind=%s", svc.Name, svc.Kind)
				if svc.Model != "" {
					fmt.Fprintf(out, "\tmodel=%s", svc.Model)
				}
				fmt.Fprintf(out, "\treliability=%.2f\tcapabilities=%s", svc.Reliability, strings.Join(caps, ","))
				if len(svc.Fallbacks) > 0 {
					fmt.Fprintf(out, "\tfallbacks=%s", strings.Join(svc.Fallbacks, ","))
				}
				fmt.Fprintln(out)
			}
			for _, tpl := range catalog.Templates {
				fmt.Fprintf(out, "template %s\tcategory=%s\n", tpl.ID, tpl.Category)
			}
			return nil
		},
	})

	return cmd
}
