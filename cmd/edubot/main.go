// Command edubot ingests research papers and answers questions about them
// from a terminal UI, the command line or an HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"edubot/internal/tui"
)

var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	indexPath  string
	embedder   string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "edubot",
		Short: "Academic research assistant",
		Long: `edubot loads research papers from URLs or .pdf/.txt files, indexes them and
answers questions about them with the sources it used.

Run without arguments to open the terminal UI.

Examples:
  # Open the terminal UI
  edubot

  # Index two papers and ask about them
  edubot ingest urls https://arxiv.org/abs/1706.03762 https://arxiv.org/abs/1810.04805
  edubot ask "How does multi-head attention work?"

  # Serve the HTTP API
  edubot serve`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to YAML config file (uses ./config.yaml or ~/.config/edubot/config.yaml if not provided)")
	pf.StringVar(&flags.indexPath, "index", "", "Override the index file path")
	pf.StringVar(&flags.embedder, "embedder", "", "Override the embedder (openai|hashing)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Override the log level (debug|info|warn|error)")

	root.AddCommand(newIngestCmd(flags))
	root.AddCommand(newAskCmd(flags))
	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newConfigCmd(flags))
	return root
}

func runTUI(cmd *cobra.Command, flags *globalFlags) error {
	a, err := newApp(flags, true)
	if err != nil {
		return err
	}
	defer a.Close()

	m := tui.New(cmd.Context(), a.session)
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
