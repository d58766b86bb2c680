// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank asks a chat model to pick the most interesting papers from
// a pool of unread candidates.
package rank

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/pkg/types"
)

const (
	systemPrompt = "You are a research paper analyst. Respond only with a JSON array of paper IDs."

	// fallbackIDs is how many integers are taken from a reply that is not JSON.
	fallbackIDs = 3

	replyMaxTokens = 100
)

var intPattern = regexp.MustCompile(`\d+`)

// Ranker selects papers with an LLM.
type Ranker struct {
	client llm.Client
	log    zerolog.Logger
}

// New creates a Ranker backed by client.
func New(client llm.Client, log zerolog.Logger) *Ranker {
	return &Ranker{client: client, log: log}
}

// Prompt lists the candidates and asks for the n most interesting ids.
func Prompt(candidates []types.Paper, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Below are %d research papers. Please analyze them and select the %d most interesting "+
		"papers based on their potential impact, innovation, and practical applications. "+
		"Return only a JSON array containing the IDs of the %d selected papers in order of "+
		"preference. Example format: [123, 456, 789]\n\n", len(candidates), n, n)
	for i, p := range candidates {
		fmt.Fprintf(&b, "Paper %d:\nID: %d\nTitle: %s\nAbstract: %s\n\n", i+1, p.ID, p.Title, p.Abstract)
	}
	return b.String()
}

// Rank returns up to n candidates in the model's order of preference. Ids
// the model returns that are not among the candidates are discarded.
func (r *Ranker) Rank(ctx context.Context, candidates []types.Paper, n int) ([]types.Paper, error) {
	if len(candidates) == 0 || n <= 0 {
		return nil, nil
	}

	reply, err := r.client.Complete(ctx,
		[]llm.Message{llm.System(systemPrompt), llm.User(Prompt(candidates, n))},
		llm.WithMaxTokens(replyMaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("ranking papers: %w", err)
	}
	r.log.Info().Str("reply", reply).Msg("ranking reply")

	ids, ok := ParseIDs(reply)
	if !ok {
		r.log.Warn().Interface("ids", ids).Msg("ranking reply is not a JSON array, using the first integers")
	}

	byID := make(map[int64]types.Paper, len(candidates))
	for _, p := range candidates {
		byID[p.ID] = p
	}

	var out []types.Paper
	picked := make(map[int64]bool)
	for _, id := range ids {
		p, found := byID[id]
		if !found {
			r.log.Warn().Int64("paper_id", id).Msg("ranker returned unknown id")
			continue
		}
		if picked[id] {
			continue
		}
		picked[id] = true
		out = append(out, p)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

// ParseIDs reads a JSON array of ids from reply, tolerating a surrounding
// code fence. When the reply is not a JSON array, the first three integers
// in the text are returned and ok is false.
func ParseIDs(reply string) (ids []int64, ok bool) {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var raw []json.Number
	if err := json.Unmarshal([]byte(s), &raw); err == nil {
		for _, n := range raw {
			if id, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
				ids = append(ids, id)
			}
		}
		return ids, true
	}

	for _, m := range intPattern.FindAllString(reply, fallbackIDs) {
		if id, err := strconv.ParseInt(m, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, false
}
