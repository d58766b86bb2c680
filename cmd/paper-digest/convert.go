package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/convert"
	"github.com/pdiddy/paper-digest/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [pdfs...]",
	Short: "Convert PDF files to Markdown",
	Long: `Convert sends PDF files through the configured conversion backend (doc2x,
mistral_ocr, or markitdown) and writes normalized Markdown with page
markers to <papers-dir>/markdown/. Existing output is skipped.`,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("backend", "", "conversion backend: doc2x, mistral_ocr, or markitdown (default from config)")
	convertCmd.Flags().String("papers-dir", "", "base directory for papers (default from config)")
	convertCmd.Flags().Bool("batch", false, "convert every PDF under <papers-dir>/raw")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ccfg := cfg.Conversion
	if b, _ := cmd.Flags().GetString("backend"); b != "" {
		ccfg.Backend = types.ConversionBackend(b)
		// Re-apply secrets for a backend other than the configured one.
		ccfg.APIKey = ""
		c := cfg
		c.Conversion = ccfg
		applySecrets(&c)
		ccfg = c.Conversion
	}
	papersDir := cfg.Retrieval.PapersDir
	if dir, _ := cmd.Flags().GetString("papers-dir"); dir != "" {
		papersDir = dir
	}

	paths := args
	if batch, _ := cmd.Flags().GetBool("batch"); batch {
		found, err := findPDFs(filepath.Join(papersDir, "raw"))
		if err != nil {
			return err
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("provide PDF paths or use --batch")
	}

	backend, err := convert.New(cmd.Context(), ccfg)
	if err != nil {
		return err
	}

	result := convert.ConvertPaths(cmd.Context(), backend, paths, papersDir, os.Stdout)
	if result.HasFailures() {
		return fmt.Errorf("%d file(s) failed conversion", result.Failed)
	}
	return nil
}

// findPDFs lists .pdf files under dir, recursively.
func findPDFs(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	return paths, nil
}
