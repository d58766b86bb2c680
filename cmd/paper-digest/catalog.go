package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the paper catalog",
	Long: `Catalog lists and exports the SQLite paper catalog that discovery fills
and the run command selects from.`,
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog papers",
	RunE: func(cmd *cobra.Command, args []string) error {
		unread, _ := cmd.Flags().GetBool("unread")
		store, err := catalog.Open(cfg.CatalogPath)
		if err != nil {
			return err
		}
		defer store.Close()

		papers, err := store.List(cmd.Context(), unread)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tREAD\tSTARS\tTITLE")
		for _, p := range papers {
			fmt.Fprintf(tw, "%d\t%v\t%d\t%s\n", p.ID, p.Read, p.Stars, p.Title)
		}
		return tw.Flush()
	},
}

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export catalog papers as YAML or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		unread, _ := cmd.Flags().GetBool("unread")
		format, _ := cmd.Flags().GetString("format")
		store, err := catalog.Open(cfg.CatalogPath)
		if err != nil {
			return err
		}
		defer store.Close()

		switch format {
		case "yaml", "yml":
			return store.ExportYAML(cmd.Context(), os.Stdout, unread)
		case "json":
			return store.ExportJSON(cmd.Context(), os.Stdout, unread)
		default:
			return fmt.Errorf("unknown format %q: use yaml or json", format)
		}
	},
}

func init() {
	catalogListCmd.Flags().Bool("unread", false, "only unread papers")
	catalogExportCmd.Flags().Bool("unread", false, "only unread papers")
	catalogExportCmd.Flags().String("format", "yaml", "output format: yaml or json")

	catalogCmd.AddCommand(catalogListCmd, catalogExportCmd)
	rootCmd.AddCommand(catalogCmd)
}
