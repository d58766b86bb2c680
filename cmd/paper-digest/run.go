package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily pipeline end to end",
	Long: `Run discovers new papers, stores them in the catalog, asks the ranking
model to pick the most interesting unread ones (three when new papers were
found, one otherwise), and processes each selected paper: download, convert,
rehost images, summarize, and rewrite image links. The day's summaries are
collected into paper_digest_<date>.md.

A paper that fails at any stage is reported and skipped; the run continues
with the next one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := metrics.New()
		defer pushMetrics(m)

		p, store, err := buildPipeline(cmd.Context(), cfg, m)
		if err != nil {
			return err
		}
		defer store.Close()

		result, err := p.Run(cmd.Context())
		if err != nil {
			return err
		}
		if result.Stopped {
			fmt.Println("No new papers and nothing unread.")
			return nil
		}
		if result.DigestPath != "" {
			fmt.Printf("Digest: %s\n", result.DigestPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
