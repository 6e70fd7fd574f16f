package main

import (
	"github.com/spf13/cobra"

	"edubot/internal/httpapi"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve ingestion and question answering over HTTP until interrupted.

Endpoints:
  GET  /health
  GET  /metrics
  GET  /api/v1/session
  POST /api/v1/ingest/urls
  POST /api/v1/ingest/files
  POST /api/v1/query`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := &httpapi.Config{
				Host:           a.cfg.Server.Host,
				Port:           a.cfg.Server.Port,
				MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			srv, err := httpapi.NewServer(a.session, a.logger, cfg)
			if err != nil {
				return err
			}
			return srv.Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Override the listen host")
	cmd.Flags().IntVar(&port, "port", 0, "Override the listen port")
	return cmd
}
