package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/metrics"
	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/pkg/types"
)

var processCmd = &cobra.Command{
	Use:   "process [paper-ids...]",
	Short: "Summarize specific catalog papers",
	Long: `Process runs the per-paper stages (download, convert, rehost, summarize,
rewrite) for the given catalog ids, skipping discovery and ranking. The
papers are marked read. Use --digest to also write the day's digest.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().Bool("digest", false, "write paper_digest_<date>.md from the summaries")

	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	m := metrics.New()
	defer pushMetrics(m)

	p, store, err := buildPipeline(cmd.Context(), cfg, m)
	if err != nil {
		return err
	}
	defer store.Close()

	papers := make([]types.Paper, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid paper id %q", a)
		}
		paper, err := store.Get(ctx, id)
		if err != nil {
			return err
		}
		papers = append(papers, paper)
	}

	ids := make([]int64, len(papers))
	for i, paper := range papers {
		ids[i] = paper.ID
	}
	if err := store.MarkRead(ctx, ids...); err != nil {
		return err
	}

	result := p.ProcessBatch(ctx, papers)
	if digest, _ := cmd.Flags().GetBool("digest"); digest && len(result.Summaries) > 0 {
		path, err := pipeline.WriteDigest(cfg.SummariesDir, result.Summaries[0].Date, result.Summaries)
		if err != nil {
			return err
		}
		fmt.Printf("Digest: %s\n", path)
	}
	if result.HasFailures() {
		return fmt.Errorf("%d paper(s) failed", result.Failed)
	}
	return nil
}
