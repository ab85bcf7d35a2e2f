package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [folder]",
	Short: "Index transcript files without serving",
	Long: `Parses and indexes every transcript file in the folder (default: the
configured docs folder). Courses already in the catalog are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		folder := a.Config.DocsDir
		if len(args) == 1 {
			folder = args[0]
		}

		courses, chunks, err := a.System.AddCourseFolder(ctx, folder)
		if err != nil {
			return err
		}

		analytics := a.System.Analytics()
		fmt.Fprintf(cmd.OutOrStdout(), "Added %d courses (%d chunks); catalog now holds %d courses.\n",
			courses, chunks, analytics.TotalCourses)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
