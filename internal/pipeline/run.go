// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/paper-digest/pkg/types"
)

const (
	defaultCandidatePool = 20
	defaultLimit         = 3
	defaultFallbackLimit = 1
)

// ErrNotConfigured is returned by Run when a collaborator it needs is nil.
var ErrNotConfigured = errors.New("pipeline dependency not configured")

// RunResult describes one daily run.
type RunResult struct {
	// New and Updated count catalog rows touched by discovery.
	New     int
	Updated int

	// Stopped is set when there was nothing new and nothing unread.
	Stopped bool

	Selected   []types.Paper
	Batch      BatchResult
	DigestPath string
}

// Run performs a full daily run: discover, catalog, select, process, and
// write the digest.
//
// Discovery errors are logged and the run continues with what is already in
// the catalog. Selected papers are marked read before processing so a paper
// that fails is not offered again on the next run.
func (p *Pipeline) Run(ctx context.Context) (RunResult, error) {
	var result RunResult
	if p.deps.Catalog == nil || p.deps.Ranker == nil {
		return result, ErrNotConfigured
	}

	fresh := 0
	if p.deps.Discoverer != nil {
		papers, err := p.deps.Discoverer.Scrape(ctx)
		if err != nil {
			p.log.Warn().Err(err).Msg("discovery failed; using catalog as is")
		}
		if len(papers) > 0 {
			sum, err := p.deps.Catalog.Upsert(ctx, papers)
			if err != nil {
				return result, fmt.Errorf("storing discovered papers: %w", err)
			}
			result.New, result.Updated = sum.New, sum.Updated
			fresh = sum.Total()
		}
	}
	total, err := p.deps.Catalog.Count(ctx)
	if err != nil {
		return result, fmt.Errorf("counting catalog: %w", err)
	}
	p.log.Info().Int("new", result.New).Int("updated", result.Updated).Int("catalog", total).Msg("discovery done")

	hasUnread, err := p.deps.Catalog.HasUnread(ctx)
	if err != nil {
		return result, fmt.Errorf("checking unread papers: %w", err)
	}
	if fresh == 0 && !hasUnread {
		p.log.Info().Msg("no new papers and nothing unread; stopping")
		result.Stopped = true
		return result, nil
	}

	limit := orDefault(p.cfg.Selection.Limit, defaultLimit)
	if fresh == 0 {
		limit = orDefault(p.cfg.Selection.FallbackLimit, defaultFallbackLimit)
	}
	candidates, err := p.deps.Catalog.Unread(ctx, orDefault(p.cfg.Selection.CandidatePool, defaultCandidatePool))
	if err != nil {
		return result, fmt.Errorf("loading candidates: %w", err)
	}
	selected, err := p.deps.Ranker.Rank(ctx, candidates, limit)
	if err != nil {
		return result, fmt.Errorf("ranking candidates: %w", err)
	}
	result.Selected = selected
	if len(selected) == 0 {
		p.log.Info().Int("candidates", len(candidates)).Msg("ranker selected nothing")
		return result, nil
	}

	ids := make([]int64, len(selected))
	for i, s := range selected {
		ids[i] = s.ID
	}
	if err := p.deps.Catalog.MarkRead(ctx, ids...); err != nil {
		return result, fmt.Errorf("marking selection read: %w", err)
	}
	p.log.Info().Int("selected", len(selected)).Int("limit", limit).Msg("papers selected")

	result.Batch = p.ProcessBatch(ctx, selected)
	if len(result.Batch.Summaries) == 0 {
		return result, nil
	}
	path, err := WriteDigest(p.cfg.SummariesDir, p.date(), result.Batch.Summaries)
	if err != nil {
		return result, fmt.Errorf("writing digest: %w", err)
	}
	result.DigestPath = path
	p.log.Info().Str("path", path).Int("summaries", len(result.Batch.Summaries)).Msg("digest written")
	return result, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
