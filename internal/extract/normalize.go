// Package extract turns raw paper renditions into normalized plain text.
//
// Normalized text is UTF-8 with runs of spaces collapsed, line-wrap hyphens
// removed and paragraph breaks kept as a single blank line. The chunker relies
// on this shape: "\n\n" is the only newline sequence that survives.
package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	paragraphBreak = regexp.MustCompile(`\n[ \t\f\v]*\n\s*`)
	// "inter-\nnational" -> "international"; hyphenated compounds broken
	// before an uppercase letter or digit are kept.
	wrapHyphen = regexp.MustCompile(`(\p{L})-[ \t]*\n[ \t]*(\p{Ll})`)
)

// Normalize cleans extracted text. It is idempotent.
func Normalize(text string) string {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.Map(dropControl, text)
	text = wrapHyphen.ReplaceAllString(text, "$1$2")

	paragraphs := paragraphBreak.Split(text, -1)
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p = collapseSpaces(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

// dropControl removes control and format runes other than whitespace.
func dropControl(r rune) rune {
	switch {
	case r == '\n' || r == '\t':
		return r
	case r == '\u00ad' || r == '\ufeff' || r == '\u200b':
		return -1
	case unicode.IsControl(r):
		return -1
	}
	return r
}

// collapseSpaces folds every whitespace run (single newlines included) into
// one space and trims the ends.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// RuneCount returns the number of non-space runes in text.
func RuneCount(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
