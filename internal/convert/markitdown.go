// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pdiddy/paper-digest/internal/container"
	"github.com/pdiddy/paper-digest/pkg/types"
)

const defaultMarkitdownImage = "markitdown:latest"

// MarkitdownBackend converts PDFs by piping them through the markitdown
// container image. The whole document comes back as a single page with no
// image descriptors.
type MarkitdownBackend struct {
	runtime container.Runtime
	image   string
}

// NewMarkitdownBackend creates a backend that uses rt to run image, or
// markitdown:latest when image is empty. It verifies that the image exists
// locally before returning.
func NewMarkitdownBackend(ctx context.Context, rt container.Runtime, image string) (*MarkitdownBackend, error) {
	if image == "" {
		image = defaultMarkitdownImage
	}
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &MarkitdownBackend{runtime: rt, image: image}, nil
}

func (m *MarkitdownBackend) Kind() types.ConversionBackend { return types.BackendMarkitdown }

// Convert pipes the PDF at pdfPath through the markitdown container.
func (m *MarkitdownBackend) Convert(ctx context.Context, pdfPath string) (types.CanonicalDocument, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return types.CanonicalDocument{}, fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := m.runtime.Run(ctx, m.image, f, &out); err != nil {
		return types.CanonicalDocument{}, fmt.Errorf("%w: %w", types.ErrRemoteService, err)
	}

	if out.Len() == 0 {
		return types.CanonicalDocument{}, fmt.Errorf("markitdown produced empty output for %s: %w", pdfPath, types.ErrSchemaMismatch)
	}

	return types.CanonicalDocument{Pages: []types.Page{{Index: 0, Markdown: out.String()}}}, nil
}
