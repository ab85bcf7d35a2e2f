package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coursekit/coursekit/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts the REST API. Transcript files in the docs folder are ingested
at startup; already-indexed courses are skipped.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if _, err := os.Stat(a.Config.DocsDir); err == nil {
			courses, chunks, err := a.System.AddCourseFolder(ctx, a.Config.DocsDir)
			if err != nil {
				return err
			}
			a.Logger.Info("startup ingestion complete",
				"folder", a.Config.DocsDir, "new_courses", courses, "new_chunks", chunks)
		} else {
			a.Logger.Warn("docs folder not found, serving existing index", "folder", a.Config.DocsDir)
		}

		addr := serveAddr
		if addr == "" {
			addr = a.Config.Addr
		}

		server := api.NewServer(a.System, api.Config{
			RequestTimeout: a.Config.RequestTimeout,
			CORSOrigins:    a.Config.CORSOrigins,
			Logger:         a.Logger,
		})
		return server.Run(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
