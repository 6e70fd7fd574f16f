package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"edubot/internal/domain"
	"edubot/internal/service"
)

func newIngestCmd(flags *globalFlags) *cobra.Command {
	ingest := &cobra.Command{
		Use:   "ingest",
		Short: "Index papers from URLs or files",
		Long: `Index papers from URLs or local .pdf/.txt files.

Every run rebuilds the index from scratch; papers from earlier runs are dropped.`,
	}
	ingest.AddCommand(&cobra.Command{
		Use:   "urls URL...",
		Short: "Index up to three paper URLs",
		Long: `Fetch each URL and index its text. HTML pages, PDFs and plain text are supported.

Examples:
  edubot ingest urls https://arxiv.org/abs/1706.03762`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.session.IngestURLs(cmd.Context(), args, printStage(cmd))
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	})
	ingest.AddCommand(&cobra.Command{
		Use:   "files PATH...",
		Short: "Index local .pdf and .txt files",
		Long: `Read each file and index its text. Files with other extensions are skipped.

Examples:
  edubot ingest files attention.pdf notes.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploads, err := readFiles(args)
			if err != nil {
				return err
			}
			a, err := newApp(flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.session.IngestUploads(cmd.Context(), uploads, printStage(cmd))
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	})
	return ingest
}

func readFiles(paths []string) ([]domain.Upload, error) {
	uploads := make([]domain.Upload, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", domain.ErrLoad, p, err)
		}
		uploads = append(uploads, domain.Upload{Name: filepath.Base(p), Content: data})
	}
	return uploads, nil
}

func printStage(cmd *cobra.Command) service.ProgressFunc {
	return func(s service.Stage) {
		cmd.Printf("[%3.0f%%] %s\n", s.Percent()*100, s.Label())
	}
}

func printReport(cmd *cobra.Command, r *domain.IngestReport) {
	cmd.Printf("Indexed %d chunks from %d document(s) into %s\n", r.Chunks, r.Documents, r.IndexPath)
	for _, src := range r.Sources {
		cmd.Printf("  - %s\n", src)
	}
	if r.Summary != "" {
		cmd.Println()
		cmd.Println("Summary:")
		cmd.Println(strings.TrimSpace(r.Summary))
	}
}
