package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/capitalize-ai/persona-dialogue/internal/config"
)

func newPersonasCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "Show the configured personas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Decode(a.v)
			if err != nil {
				return err
			}
			personas, err := cfg.Registry()
			if err != nil {
				return &config.ConfigurationError{Err: err}
			}

			name := lipgloss.NewStyle().Bold(true)
			body := lipgloss.NewStyle().PaddingLeft(2)

			out := cmd.OutOrStdout()
			for i, p := range personas.All() {
				order := "speaks first"
				if i > 0 {
					order = "replies"
				}
				fmt.Fprintf(out, "%s (%s)\n%s\n\n", name.Render(p.Name), order, body.Render(p.Instructions))
			}
			return nil
		},
	}
}
