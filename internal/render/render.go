// Package render turns a Report into a document artifact. Renderers are thin
// adapters; layout fidelity is out of their scope.
package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/helixir/paper-digest-service/internal/domain"
)

// Supported formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// Renderer serializes a report.
type Renderer interface {
	Render(r *domain.Report) ([]byte, error)
	// Extension is the file extension without the dot.
	Extension() string
	// ContentType is the MIME type of the output.
	ContentType() string
}

// New returns the renderer for format. Matching is case-insensitive and
// accepts "md" and "yml".
func New(format string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatMarkdown, "md", "":
		return Markdown{}, nil
	case FormatJSON:
		return JSON{}, nil
	case FormatYAML, "yml":
		return YAML{}, nil
	default:
		return nil, domain.NewConfigurationError("format", format, "must be one of markdown, json, yaml")
	}
}

// JSON renders the report as indented JSON.
type JSON struct{}

// Render implements Renderer.
func (JSON) Render(r *domain.Report) ([]byte, error) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}
	return append(out, '\n'), nil
}

func (JSON) Extension() string   { return "json" }
func (JSON) ContentType() string { return "application/json" }

const maxTitleLen = 80

// OutputPath returns where a rendered report is written below base:
// <base>/<ISO year>/week_<ISO week>/<title>_<LANG>_<mode>.<ext>, using the
// report's creation time.
func OutputPath(base string, r *domain.Report, ext string) string {
	year, week := r.CreatedAt.ISOWeek()
	name := fmt.Sprintf("%s_%s_%s.%s",
		safeTitle(r.Paper.Title, r.Paper.ID),
		strings.ToUpper(string(r.Summary.Language)),
		r.Summary.Mode,
		ext,
	)
	return filepath.Join(base, fmt.Sprintf("%04d", year), fmt.Sprintf("week_%02d", week), name)
}

// WriteFile renders r and writes it to its OutputPath below base, creating
// directories as needed. An existing file is replaced. Returns the path.
func WriteFile(base string, r *domain.Report, renderer Renderer) (string, error) {
	out, err := renderer.Render(r)
	if err != nil {
		return "", err
	}
	path := OutputPath(base, r, renderer.Extension())
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// safeTitle keeps letters, digits, '-' and '_', turns spaces into '_' and
// truncates to maxTitleLen runes. An empty result falls back to fallback.
func safeTitle(title, fallback string) string {
	var b strings.Builder
	n := 0
	for _, r := range strings.TrimSpace(title) {
		if n == maxTitleLen {
			break
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		default:
			continue
		}
		n++
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return strings.ReplaceAll(fallback, "/", "_")
	}
	return out
}
