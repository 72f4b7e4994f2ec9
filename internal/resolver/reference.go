package resolver

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/helixir/paper-digest-service/internal/domain"
)

var (
	newStyleID = regexp.MustCompile(`^(\d{4}\.\d{4,5})(v\d+)?$`)
	oldStyleID = regexp.MustCompile(`^([a-z][a-z\-]*(?:\.[A-Za-z]{2})?/\d{7})(v\d+)?$`)

	// citedIDPattern finds arXiv identifiers mentioned in running text.
	citedIDPattern = regexp.MustCompile(`(?i)(?:arxiv\.org/(?:abs|pdf)/|arxiv:\s?)(\d{4}\.\d{4,5})(v\d+)?`)
)

// supportedHosts maps a host to the leading path segments that precede the
// identifier on that host. Other hosts fall back to matching the trailing
// path segments.
var supportedHosts = map[string][]string{
	"arxiv.org":        {"abs", "pdf", "html", "format"},
	"export.arxiv.org": {"abs", "pdf", "html", "format"},
	"alphaxiv.org":     {"abs", "overview", "pdf"},
	"huggingface.co":   {"papers"},
}

// Resolve parses a user-supplied reference into a canonical identifier.
//
// Accepted forms: "arXiv:" prefixed and bare identifiers, and any http(s)
// URL whose path carries an identifier, each with an optional version suffix
// and an optional trailing ".pdf". URLs on arxiv.org, alphaxiv and Hugging
// Face are read by route; on other hosts, such as ar5iv or Semantic Scholar,
// the last path segment is tried, then the last two for old-style
// identifiers.
func Resolve(reference string) (domain.PaperReference, error) {
	raw := strings.TrimSpace(reference)
	if raw == "" {
		return domain.PaperReference{}, domain.NewInvalidReferenceError(reference, "empty reference")
	}

	candidate := raw
	if len(candidate) > 6 && strings.EqualFold(candidate[:6], "arxiv:") {
		candidate = strings.TrimSpace(candidate[6:])
	}
	if id, version, ok := matchIdentifier(trimCandidate(candidate)); ok {
		return domain.PaperReference{Raw: raw, ID: id, Version: version}, nil
	}

	if !looksLikeURL(raw) {
		return domain.PaperReference{}, domain.NewInvalidReferenceError(reference, "no arXiv identifier found")
	}
	id, version, err := identifierFromURL(raw)
	if err != nil {
		return domain.PaperReference{}, err
	}
	return domain.PaperReference{Raw: raw, ID: id, Version: version}, nil
}

// looksLikeURL reports whether s has a scheme, or starts with something
// shaped like a host followed by a path, e.g. "ar5iv.org/abs/1706.03762".
func looksLikeURL(s string) bool {
	if strings.Contains(s, "://") {
		return true
	}
	host, _, found := strings.Cut(s, "/")
	return found && strings.Contains(host, ".") && !strings.ContainsAny(host, " \t")
}

func identifierFromURL(raw string) (id, version string, err error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, perr := url.Parse(raw)
	if perr != nil || u.Host == "" {
		return "", "", domain.NewInvalidReferenceError(raw, "malformed URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", domain.NewInvalidReferenceError(raw, "unsupported scheme "+u.Scheme)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.Trim(u.Path, "/")

	if routes, ok := supportedHosts[host]; ok {
		first, rest, _ := strings.Cut(path, "/")
		for _, route := range routes {
			if first != route {
				continue
			}
			if id, version, ok := matchIdentifier(trimCandidate(rest)); ok {
				return id, version, nil
			}
		}
	}

	segments := strings.Split(path, "/")
	for n := 1; n <= 2 && n <= len(segments); n++ {
		tail := strings.Join(segments[len(segments)-n:], "/")
		if id, version, ok := matchIdentifier(trimCandidate(tail)); ok {
			return id, version, nil
		}
	}
	return "", "", domain.NewInvalidReferenceError(raw, "no arXiv identifier in path "+u.Path)
}

// trimCandidate drops a trailing slash and ".pdf" suffix.
func trimCandidate(s string) string {
	s = strings.TrimSuffix(s, "/")
	if strings.HasSuffix(strings.ToLower(s), ".pdf") {
		s = s[:len(s)-4]
	}
	return s
}

func matchIdentifier(candidate string) (id, version string, ok bool) {
	if m := newStyleID.FindStringSubmatch(candidate); m != nil {
		return m[1], m[2], true
	}
	if m := oldStyleID.FindStringSubmatch(candidate); m != nil {
		return m[1], m[2], true
	}
	return "", "", false
}

// FindReferences returns the distinct new-style arXiv identifiers cited in
// text, in order of first appearance, excluding self.
func FindReferences(text, self string) []string {
	matches := citedIDPattern.FindAllStringSubmatch(text, -1)
	seen := map[string]bool{self: true}
	var refs []string
	for _, m := range matches {
		id := m[1]
		if seen[id] {
			continue
		}
		seen[id] = true
		refs = append(refs, id)
	}
	return refs
}
