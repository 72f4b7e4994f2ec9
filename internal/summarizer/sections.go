package summarizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/helixir/paper-digest-service/internal/domain"
)

// errMalformedSections marks a section pass answer that holds no JSON object.
// It is retried like an empty completion.
var errMalformedSections = errors.New("malformed section response")

var fencedJSON = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?\\})\\s*```")

// extractJSONObject finds the JSON object in a model answer: the first fenced
// block if there is one, otherwise the outermost braces.
func extractJSONObject(text string) (string, bool) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// escapeBareNewlines replaces raw line breaks inside JSON strings with
// spaces. Models often emit them and encoding/json rejects them.
func escapeBareNewlines(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case inString && r == '\\':
			escaped = true
		case r == '"':
			inString = !inString
		case inString && (r == '\n' || r == '\r'):
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseSections decodes a section pass answer into the given labels, in
// order. Labels the answer omits get an empty text. Keys match case
// insensitively.
func parseSections(answer string, labels []string) ([]domain.Section, error) {
	raw, ok := extractJSONObject(answer)
	if !ok {
		return nil, errMalformedSections
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(escapeBareNewlines(raw)), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedSections, err)
	}

	byKey := make(map[string]any, len(obj))
	for k, v := range obj {
		byKey[strings.ToLower(strings.TrimSpace(k))] = v
	}

	sections := make([]domain.Section, 0, len(labels))
	for _, label := range labels {
		sections = append(sections, domain.Section{
			Label: label,
			Text:  sectionText(byKey[strings.ToLower(label)]),
		})
	}
	return sections, nil
}

func sectionText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		lines := make([]string, 0, len(t))
		for _, item := range t {
			if s := sectionText(item); s != "" {
				lines = append(lines, "- "+s)
			}
		}
		return strings.Join(lines, "\n")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

var (
	bulletPrefix = regexp.MustCompile(`(?m)^[ \t]*[*•·][ \t]+`)
	extraBlank   = regexp.MustCompile(`\n{3,}`)
)

// lightFormat tidies a single partial summary without a remote call:
// uniform "- " bullets, no trailing spaces, at most one blank line in a row.
func lightFormat(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = bulletPrefix.ReplaceAllString(text, "- ")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	text = strings.Join(lines, "\n")
	text = extraBlank.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
