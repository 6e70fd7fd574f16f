package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"edubot/internal/domain"
	"edubot/internal/service"
)

func newAskCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Ask a question about the indexed papers",
		Long: `Answer a question from the indexed papers and list the sources used.

Examples:
  edubot ask "What problem does the Transformer solve?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ans, err := a.session.Ask(cmd.Context(), strings.Join(args, " "))
			if errors.Is(err, domain.ErrNoIndex) {
				cmd.Println(service.NoIndexNotice)
				return nil
			}
			if err != nil {
				return err
			}

			cmd.Println(ans.Text)
			cmd.Println()
			if len(ans.Sources) == 0 {
				cmd.Println(service.NoSourcesNotice)
				return nil
			}
			cmd.Println("Sources Used:")
			for _, src := range ans.Sources {
				cmd.Printf("  - %s\n", src)
			}
			return nil
		},
	}
}
