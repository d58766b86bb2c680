// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rehost writes a document's embedded images to disk, uploads them
// to a public image host, and records every spelling of each local path in
// a PathAliasMap so generated text can later be rewritten to remote URLs.
// Image failures are logged and never abort the document.
package rehost

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/pdiddy/paper-digest/internal/metrics"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// ImageHost uploads a local image and returns its public URL.
type ImageHost interface {
	Upload(ctx context.Context, path string) (string, error)
}

// Rehoster materializes and uploads document images.
type Rehoster struct {
	host    ImageHost
	log     zerolog.Logger
	metrics *metrics.Metrics
	md      goldmark.Markdown
}

// New creates a Rehoster. m may be nil.
func New(host ImageHost, log zerolog.Logger, m *metrics.Metrics) *Rehoster {
	return &Rehoster{host: host, log: log, metrics: m, md: goldmark.New()}
}

// Rehost processes the unique images of doc in document order. Each image
// is written to imageDir/<id>, uploaded, and registered in the returned
// alias map when the upload succeeds. Markdown image references to an id
// are rewritten to the materialized local path on every page.
//
// An image whose payload cannot be decoded or whose source file is missing
// is skipped with a warning. A failed upload keeps the asset with an empty
// RemoteURL and adds no aliases.
func (r *Rehoster) Rehost(ctx context.Context, doc types.CanonicalDocument, imageDir string) (types.CanonicalDocument, types.PathAliasMap, []types.RehostedAsset) {
	var (
		assets  []types.RehostedAsset
		aliases []types.AliasEntry
		seen    = make(map[string]bool)
		local   = make(map[string]string)
	)

	for _, page := range doc.Pages {
		for _, img := range page.Images {
			if seen[img.ID] {
				continue
			}
			seen[img.ID] = true

			log := r.log.With().Str("image", img.ID).Int("page", page.Index).Logger()

			path, err := materialize(img, imageDir)
			if err != nil {
				log.Warn().Err(err).Msg("skipping image")
				r.metrics.ObserveUpload(metrics.OutcomeSkipped)
				continue
			}
			local[img.ID] = path

			asset := types.RehostedAsset{ImageID: img.ID, LocalPath: path}
			url, err := r.host.Upload(ctx, path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("image upload failed")
				r.metrics.ObserveUpload(metrics.OutcomeFailure)
			} else {
				asset.RemoteURL = url
				aliases = append(aliases, Aliases(path, url)...)
				r.metrics.ObserveUpload(metrics.OutcomeSuccess)
				log.Debug().Str("url", url).Msg("image uploaded")
			}
			assets = append(assets, asset)
		}
	}

	out := types.CanonicalDocument{Pages: make([]types.Page, len(doc.Pages))}
	for i, page := range doc.Pages {
		page.Markdown = r.pointAtLocal(page.Markdown, local)
		out.Pages[i] = page
	}

	return out, types.NewPathAliasMap(aliases...), assets
}

// Aliases returns the spellings registered for a local path: the path as
// given and, for relative paths, the forms with and without a leading "./".
func Aliases(localPath, url string) []types.AliasEntry {
	p := filepath.ToSlash(localPath)
	entries := []types.AliasEntry{{Path: p, URL: url}}
	if strings.HasPrefix(p, "/") || filepath.IsAbs(localPath) {
		return entries
	}
	bare := strings.TrimPrefix(p, "./")
	return append(entries,
		types.AliasEntry{Path: bare, URL: url},
		types.AliasEntry{Path: "./" + bare, URL: url},
	)
}

// materialize writes img to imageDir/<id> and returns the path.
func materialize(img types.EmbeddedImage, imageDir string) (string, error) {
	if img.ID == "" || strings.ContainsAny(img.ID, `/\`) || img.ID == "." || img.ID == ".." {
		return "", fmt.Errorf("invalid image id %q", img.ID)
	}
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		return "", fmt.Errorf("creating image directory: %w", err)
	}
	dest := filepath.Join(imageDir, img.ID)

	if img.Inline() {
		data, err := decodeBase64(img.Base64)
		if err != nil {
			return "", fmt.Errorf("decoding image %s: %w", img.ID, err)
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return "", fmt.Errorf("writing image: %w", err)
		}
		return dest, nil
	}

	if err := copyFile(img.SourcePath, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); rawErr == nil {
		return raw, nil
	}
	return nil, err
}

func copyFile(src, dest string) error {
	if src == "" {
		return fmt.Errorf("no payload or source path: %w", types.ErrAssetMissing)
	}
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", src, types.ErrAssetMissing)
		}
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	if samePath(src, dest) {
		return nil
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}

// pointAtLocal rewrites image destinations that name a materialized id so
// they point at its local path. Destinations are located from the image
// nodes goldmark parses, so a plain link such as [text](img-1) is left as
// written.
func (r *Rehoster) pointAtLocal(markdown string, local map[string]string) string {
	if len(local) == 0 || markdown == "" {
		return markdown
	}
	src := []byte(markdown)
	edits := make(map[int]destEdit)

	doc := r.md.Parser().Parse(text.NewReader(src))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		img, ok := n.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}
		dest := string(img.Destination)
		p, ok := local[strings.TrimPrefix(dest, "./")]
		if !ok {
			return ast.WalkContinue, nil
		}
		repl := filepath.ToSlash(p)

		if from, ok := altEnd(img); ok {
			if start, found := findDestination(src, from, len(src), "](", dest); found {
				edits[start] = destEdit{end: start + len(dest), repl: repl}
			}
			return ast.WalkSkipChildren, nil
		}

		// Empty alt text leaves no segment to anchor on; every "![](dest"
		// in the enclosing block is an image.
		lo, hi, ok := blockRange(img)
		if !ok {
			return ast.WalkContinue, nil
		}
		for from := lo; ; {
			start, found := findDestination(src, from, hi, "![](", dest)
			if !found {
				break
			}
			edits[start] = destEdit{end: start + len(dest), repl: repl}
			from = start + len(dest)
		}
		return ast.WalkSkipChildren, nil
	})

	if len(edits) == 0 {
		return markdown
	}
	starts := make([]int, 0, len(edits))
	for start := range edits {
		starts = append(starts, start)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(starts)))
	for _, start := range starts {
		e := edits[start]
		src = append(src[:start:start], append([]byte(e.repl), src[e.end:]...)...)
	}
	return string(src)
}

type destEdit struct {
	end  int
	repl string
}

// altEnd returns the offset just past the last text segment of an image's
// alt text.
func altEnd(img *ast.Image) (int, bool) {
	end, found := 0, false
	_ = ast.Walk(img, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering && t.Segment.Stop > end {
			end, found = t.Segment.Stop, true
		}
		return ast.WalkContinue, nil
	})
	return end, found
}

// blockRange returns the source span of the block that contains n.
func blockRange(n ast.Node) (int, int, bool) {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() != ast.TypeBlock {
			continue
		}
		lines := p.Lines()
		if lines == nil || lines.Len() == 0 {
			return 0, 0, false
		}
		return lines.At(0).Start, lines.At(lines.Len() - 1).Stop, true
	}
	return 0, 0, false
}

// findDestination finds the first opener+dest in src[from:to] followed by
// ")" or " ", or its angle-bracketed form, and returns the offset of dest.
func findDestination(src []byte, from, to int, opener, dest string) (int, bool) {
	if to > len(src) {
		to = len(src)
	}
	best := -1
	for _, form := range []struct{ prefix, suffixes string }{
		{opener, ") "},
		{opener + "<", ">"},
	} {
		needle := []byte(form.prefix + dest)
		for off := from; off < to; {
			i := bytes.Index(src[off:to], needle)
			if i < 0 {
				break
			}
			at := off + i
			next := at + len(needle)
			if next < to && strings.IndexByte(form.suffixes, src[next]) >= 0 {
				if best < 0 || at+len(form.prefix) < best {
					best = at + len(form.prefix)
				}
				break
			}
			off = at + 1
		}
	}
	return best, best >= 0
}
