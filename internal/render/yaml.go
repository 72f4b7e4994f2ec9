package render

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/helixir/paper-digest-service/internal/domain"
)

// YAML renders the report as YAML with two-space indentation.
type YAML struct{}

func (YAML) Extension() string   { return "yaml" }
func (YAML) ContentType() string { return "application/yaml" }

// Render implements Renderer.
func (YAML) Render(r *domain.Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("render yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("render yaml: %w", err)
	}
	return buf.Bytes(), nil
}
