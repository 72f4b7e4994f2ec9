package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// abbreviations never end a sentence when followed by a period. Stored
// lowercase without the final period.
var abbreviations = map[string]bool{
	"al": true, "approx": true, "cf": true, "dr": true, "e.g": true,
	"eq": true, "eqs": true, "fig": true, "figs": true, "i.e": true,
	"inc": true, "mr": true, "mrs": true, "ms": true, "no": true,
	"pp": true, "prof": true, "ref": true, "refs": true, "resp": true,
	"sec": true, "sect": true, "st": true, "tab": true, "vol": true,
	"vs": true, "w.r.t": true, "viz": true,
}

// Sentences splits text into sentences. The returned pieces tile text
// exactly: concatenating them yields text. Whitespace after a terminator
// belongs to the sentence it ends, and a blank line always ends a sentence.
func Sentences(text string) []string {
	var out []string
	start := 0

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		next := i + size

		switch {
		case r == '\n':
			end := skipSpace(text, i)
			if strings.Count(text[i:end], "\n") >= 2 && end < len(text) {
				out = append(out, text[start:end])
				start = end
			}
			i = end
			continue

		case isFullWidthTerminator(r):
			end := skipSpace(text, skipClosers(text, next))
			if end < len(text) {
				out = append(out, text[start:end])
				start = end
			}
			i = end
			continue

		case r == '.' || r == '!' || r == '?':
			end := skipClosers(text, next)
			ws := skipSpace(text, end)
			if ws > end && ws < len(text) && startsSentence(text[ws:]) &&
				!(r == '.' && endsWithAbbreviation(text[start:i])) {
				out = append(out, text[start:ws])
				start = ws
				i = ws
				continue
			}
			i = end
			continue
		}
		i = next
	}

	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func isFullWidthTerminator(r rune) bool {
	switch r {
	case '。', '！', '？', '．':
		return true
	}
	return false
}

// skipClosers advances past repeated terminators and closing quotes or
// brackets.
func skipClosers(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch r {
		case '.', '!', '?', '"', '\'', ')', ']', '}', '”', '’', '»', '」', '』', '）', '。', '！', '？':
			i += size
		default:
			return i
		}
	}
	return i
}

func skipSpace(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) {
			return i
		}
		i += size
	}
	return i
}

// startsSentence reports whether s can open a new sentence: anything but a
// lowercase letter.
func startsSentence(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return !unicode.IsLower(r)
}

// endsWithAbbreviation reports whether the word before a period is a known
// abbreviation or a single-letter initial.
func endsWithAbbreviation(prefix string) bool {
	end := len(prefix)
	begin := end
	for begin > 0 {
		r, size := utf8.DecodeLastRuneInString(prefix[:begin])
		if !unicode.IsLetter(r) && r != '.' {
			break
		}
		begin -= size
	}
	word := strings.TrimLeft(prefix[begin:end], ".")
	if word == "" {
		return false
	}
	if utf8.RuneCountInString(word) == 1 {
		r, _ := utf8.DecodeRuneInString(word)
		return unicode.IsUpper(r)
	}
	return abbreviations[strings.ToLower(word)]
}
