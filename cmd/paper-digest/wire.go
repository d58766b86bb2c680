// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pdiddy/paper-digest/internal/acquire"
	"github.com/pdiddy/paper-digest/internal/catalog"
	"github.com/pdiddy/paper-digest/internal/convert"
	"github.com/pdiddy/paper-digest/internal/discover"
	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/internal/logging"
	"github.com/pdiddy/paper-digest/internal/metrics"
	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/internal/rank"
	"github.com/pdiddy/paper-digest/internal/rehost"
	"github.com/pdiddy/paper-digest/internal/summarize"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// buildPipeline constructs every collaborator from cfg. Credential
// problems surface here, before any network traffic. The returned store
// must be closed by the caller.
func buildPipeline(ctx context.Context, cfg types.Config, m *metrics.Metrics) (*pipeline.Pipeline, *catalog.Store, error) {
	backend, err := convert.New(ctx, cfg.Conversion)
	if err != nil {
		return nil, nil, fmt.Errorf("conversion backend: %w", err)
	}
	if cfg.ImageHost.APIKey == "" {
		return nil, nil, fmt.Errorf("sm.ms token: %w", types.ErrMissingCredential)
	}
	summaryLLM, err := llm.New(cfg.Summary)
	if err != nil {
		return nil, nil, fmt.Errorf("summary model: %w", err)
	}
	rankingLLM, err := llm.New(cfg.Ranking)
	if err != nil {
		return nil, nil, fmt.Errorf("ranking model: %w", err)
	}

	store, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		return nil, nil, err
	}

	deps := pipeline.Deps{
		Retriever:  acquire.NewRetriever(cfg.Retrieval, logging.Component(logger, "acquire"), m),
		Backend:    backend,
		Rehoster:   rehost.New(rehost.NewSMMSHost(cfg.ImageHost), logging.Component(logger, "rehost"), m),
		Summarizer: summarize.New(summaryLLM, logging.Component(logger, "summarize")),
		Discoverer: discover.New(cfg.Discovery, cfg.Retrieval.Proxy, logging.Component(logger, "discover")),
		Ranker:     rank.New(rankingLLM, logging.Component(logger, "rank")),
		Catalog:    store,
	}
	p := pipeline.New(cfg, deps, logging.Component(logger, "pipeline"), m, os.Stdout)
	return p, store, nil
}

// pushMetrics pushes m and logs, rather than returns, a failure.
func pushMetrics(m *metrics.Metrics) {
	if err := m.Push(cfg.Metrics); err != nil {
		logger.Warn().Err(err).Msg("metrics push failed")
	}
}
