// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package summarize turns a normalized paper into a speed-reading brief
// with a chat model.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// SystemPrompt instructs the model to produce the brief.
const SystemPrompt = "You are a research paper analyst. Please summarize the following paper and generate a speed-reading brief in Chinese. " +
	"Keep image links from the paper that illustrate key results, using their paths exactly as written."

// Summarizer produces paper summaries.
type Summarizer struct {
	client llm.Client
	log    zerolog.Logger
}

// New creates a Summarizer backed by client.
func New(client llm.Client, log zerolog.Logger) *Summarizer {
	return &Summarizer{client: client, log: log}
}

// Input renders the model input: a metadata header followed by the
// concatenated page markdown.
func Input(p types.Paper, doc types.CanonicalDocument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n# %s\n\n", p.Title)
	b.WriteString("## Metadata\n")
	fmt.Fprintf(&b, "- **GitHub**: %s\n", p.GithubLink)
	fmt.Fprintf(&b, "- **Paper**: %s\n", p.PaperLink)
	fmt.Fprintf(&b, "- **Code**: %s\n", p.CodeLink)
	fmt.Fprintf(&b, "- **Stars**: %d\n\n", p.Stars)
	b.WriteString(doc.Text())
	return b.String()
}

// Summarize returns the brief for p. An empty reply is an error.
func (s *Summarizer) Summarize(ctx context.Context, p types.Paper, doc types.CanonicalDocument) (string, error) {
	input := Input(p, doc)
	s.log.Info().
		Int64("paper_id", p.ID).
		Str("model", s.client.Model()).
		Int("input_chars", len(input)).
		Msg("summarizing")

	reply, err := s.client.Complete(ctx, []llm.Message{llm.System(SystemPrompt), llm.User(input)})
	if err != nil {
		return "", fmt.Errorf("summarizing paper %d: %w", p.ID, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("summarizing paper %d: empty reply: %w", p.ID, types.ErrRemoteService)
	}
	return reply, nil
}
