package extract

import (
	"context"

	"github.com/helixir/paper-digest-service/internal/pdf"
)

// PDFExtractor extracts normalized text from PDF bytes.
type PDFExtractor struct {
	// MaxPages limits how many pages are read. Zero reads all of them.
	MaxPages int
}

// Extract returns the normalized plain text of content.
func (e PDFExtractor) Extract(ctx context.Context, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := pdf.ExtractText(content, e.MaxPages)
	if err != nil {
		return "", err
	}
	return Normalize(text), nil
}
