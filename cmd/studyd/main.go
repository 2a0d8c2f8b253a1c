package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/studyrag/internal/cli"
	"github.com/cloo-solutions/studyrag/internal/cli/admin"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "studyd",
		Short: "Study assistant server and tools",
		Long: `studyd serves the study assistant API: PDF ingestion, grounded chat with
page citations, quiz generation and progress tracking.

Environment variables use the STUDY_ prefix, e.g.
  STUDY_DATABASE_URL   Postgres connection string (required for serve)
  STUDY_S3_ENDPOINT    S3 compatible object storage for uploaded PDFs
  STUDY_OPENAI_API_KEY Key for any OpenAI compatible chat API`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.InspectCmd())
	rootCmd.AddCommand(admin.AskCmd())
	rootCmd.AddCommand(admin.GradeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
