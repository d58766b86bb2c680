package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-digest/internal/catalog"
	"github.com/pdiddy/paper-digest/internal/discover"
	"github.com/pdiddy/paper-digest/internal/logging"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scrape the listing and store new papers",
	Long: `Discover pages through the latest-papers listing until the target count,
the page limit, or an empty page is reached, and upserts every paper into
the catalog. With --dry-run the papers are printed as YAML instead.`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().Int("target", 0, "stop after this many papers (default from config)")
	discoverCmd.Flags().Int("max-pages", 0, "maximum listing pages (default from config)")
	discoverCmd.Flags().Bool("dry-run", false, "print papers as YAML without storing them")

	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dcfg := cfg.Discovery
	if n, _ := cmd.Flags().GetInt("target"); n > 0 {
		dcfg.TargetCount = n
	}
	if n, _ := cmd.Flags().GetInt("max-pages"); n > 0 {
		dcfg.MaxPages = n
	}

	s := discover.New(dcfg, cfg.Retrieval.Proxy, logging.Component(logger, "discover"))
	papers, err := s.Scrape(ctx)
	if err != nil && len(papers) == 0 {
		return err
	}

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(papers)
	}

	store, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		return err
	}
	defer store.Close()

	sum, err := store.Upsert(ctx, papers)
	if err != nil {
		return err
	}
	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Discovered %d papers: %d new, %d updated (catalog: %d)\n", len(papers), sum.New, sum.Updated, total)
	return nil
}
