package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/acquire"
	"github.com/pdiddy/paper-digest/internal/logging"
	"github.com/pdiddy/paper-digest/internal/metrics"
	"github.com/pdiddy/paper-digest/pkg/types"
)

var acquireCmd = &cobra.Command{
	Use:   "acquire [urls...]",
	Short: "Download papers from listing pages, arXiv links, or PDF URLs",
	Long: `Acquire resolves each URL to a PDF and downloads it with the retry
schedule used by the pipeline: the first attempt goes through the
configured proxy, later attempts connect directly, and each timed-out
attempt gets 1.5 times the previous timeout.

Files are written to <papers-dir>/raw/<n>/ where n is the argument's
position, starting at 1.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAcquire,
}

func init() {
	acquireCmd.Flags().Duration("timeout", 0, "timeout of the first attempt (default from config)")
	acquireCmd.Flags().Int("attempts", 0, "maximum attempts per paper (default from config)")
	acquireCmd.Flags().String("papers-dir", "", "base directory for papers (default from config)")

	rootCmd.AddCommand(acquireCmd)
}

func runAcquire(cmd *cobra.Command, args []string) error {
	rcfg := cfg.Retrieval
	if d, _ := cmd.Flags().GetDuration("timeout"); d > 0 {
		rcfg.InitialTimeout = d
	}
	if n, _ := cmd.Flags().GetInt("attempts"); n > 0 {
		rcfg.MaxAttempts = n
	}
	if dir, _ := cmd.Flags().GetString("papers-dir"); dir != "" {
		rcfg.PapersDir = dir
	}

	m := metrics.New()
	defer pushMetrics(m)
	r := acquire.NewRetriever(rcfg, logging.Component(logger, "acquire"), m)

	failed := 0
	for i, u := range args {
		dir := filepath.Join(rcfg.PapersDir, "raw", strconv.Itoa(i+1))
		res, err := r.Retrieve(cmd.Context(), u, dir)
		if err != nil {
			failed++
			var exhausted *acquire.ExhaustedError
			switch {
			case errors.Is(err, types.ErrNoLink):
				fmt.Printf("skipped:    %s (no PDF link)\n", u)
			case errors.As(err, &exhausted) && exhausted.CanonicalURL != "":
				fmt.Printf("failed:     %s (%v; canonical %s)\n", u, err, exhausted.CanonicalURL)
			default:
				fmt.Printf("failed:     %s (%v)\n", u, err)
			}
			continue
		}
		fmt.Printf("downloaded: %s -> %s\n", u, res.LocalPath)
	}

	fmt.Printf("\nBatch summary: %d downloaded, %d failed (total: %d)\n", len(args)-failed, failed, len(args))
	if failed > 0 {
		return fmt.Errorf("%d paper(s) failed acquisition", failed)
	}
	return nil
}
