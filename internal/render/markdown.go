package render

import (
	"fmt"
	"strings"

	"github.com/helixir/paper-digest-service/internal/domain"
)

// Markdown renders a human-readable report.
type Markdown struct{}

func (Markdown) Extension() string   { return "md" }
func (Markdown) ContentType() string { return "text/markdown; charset=utf-8" }

// Render implements Renderer.
func (Markdown) Render(r *domain.Report) ([]byte, error) {
	var b strings.Builder
	h := headingsFor(r.Summary.Language)

	fmt.Fprintf(&b, "# %s ([arXiv](%s))\n\n", r.Paper.Title, r.Paper.CanonicalURL)

	fmt.Fprintf(&b, "- **%s:** %s\n", h.authors, strings.Join(r.Paper.Authors, ", "))
	if !r.Paper.Published.IsZero() {
		fmt.Fprintf(&b, "- **%s:** %s\n", h.published, r.Paper.Published.Format("2006-01-02"))
	}
	if r.Paper.PrimaryCategory != "" {
		fmt.Fprintf(&b, "- **%s:** %s\n", h.category, r.Paper.PrimaryCategory)
	}
	if r.Paper.JournalRef != "" {
		fmt.Fprintf(&b, "- **%s:** %s\n", h.journal, r.Paper.JournalRef)
	}
	id := r.Paper.ID + r.Version
	fmt.Fprintf(&b, "- **arXiv:** %s\n", id)
	fmt.Fprintf(&b, "- **%s:** %s, %s\n\n", h.summary, r.Summary.Mode, r.Summary.Language.NativeName())

	fmt.Fprintf(&b, "## %s\n\n", h.highlights)
	b.WriteString(strings.TrimSpace(r.Summary.Text))
	b.WriteString("\n\n")

	if len(r.Summary.Sections) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", h.analysis)
		for _, s := range r.Summary.Sections {
			fmt.Fprintf(&b, "### %s\n\n", h.section(s.Label))
			if s.Text == "" {
				b.WriteString(h.notCovered + "\n\n")
				continue
			}
			b.WriteString(s.Text)
			b.WriteString("\n\n")
		}
	}

	if len(r.Summary.Quotes) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", h.quotes)
		for _, q := range r.Summary.Quotes {
			fmt.Fprintf(&b, "> %s\n", q.Text)
			if q.Translation != "" {
				fmt.Fprintf(&b, ">\n> %s\n", q.Translation)
			}
			b.WriteString("\n")
		}
	}

	if len(r.References) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", h.references)
		for _, ref := range r.References {
			fmt.Fprintf(&b, "- [%s](https://arxiv.org/abs/%s)\n", ref, ref)
		}
		b.WriteString("\n")
	}

	return []byte(strings.TrimRight(b.String(), "\n") + "\n"), nil
}

// Compile-time interface checks.
var (
	_ Renderer = Markdown{}
	_ Renderer = JSON{}
	_ Renderer = YAML{}
)
