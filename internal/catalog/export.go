// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"
)

// ExportYAML writes the catalog to w as a YAML list.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, unreadOnly bool) error {
	papers, err := s.List(ctx, unreadOnly)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(papers); err != nil {
		return fmt.Errorf("encoding YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes the catalog to w as an indented JSON array.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, unreadOnly bool) error {
	papers, err := s.List(ctx, unreadOnly)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(papers); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}
