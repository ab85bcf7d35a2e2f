package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var askSession string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question from the terminal",
	Long: `Answers one question and prints the answer with its sources. Pass
--session to continue an earlier conversation.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if _, _, err := a.System.AddCourseFolder(ctx, a.Config.DocsDir); err != nil {
			a.Logger.Warn("ingestion skipped", "error", err)
		}

		queryCtx, cancelQuery := queryContext(ctx, a.Config.RequestTimeout)
		defer cancelQuery()

		answer, err := a.System.AnswerQuery(queryCtx, strings.Join(args, " "), askSession)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, answer.Answer)
		if len(answer.Sources) > 0 {
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Sources:")
			for _, s := range answer.Sources {
				if s.URL != "" {
					fmt.Fprintf(out, "  - %s (%s)\n", s.Text, s.URL)
				} else {
					fmt.Fprintf(out, "  - %s\n", s.Text)
				}
			}
		}
		fmt.Fprintf(out, "\nSession: %s\n", answer.SessionID)
		return nil
	},
}

// queryContext bounds one query's end-to-end handling the same way the HTTP
// handler does. Zero disables the bound.
func queryContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "", "session ID to continue a conversation")
	rootCmd.AddCommand(askCmd)
}
