package extract

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// detectSampleRunes bounds the text handed to the detector.
const detectSampleRunes = 4000

// LanguageDetector guesses the language a paper is written in. Only the
// languages a report can be produced in are considered.
type LanguageDetector struct {
	detector lingua.LanguageDetector
}

// NewLanguageDetector builds a detector over English, Chinese, Japanese,
// Korean, German, French and Spanish.
func NewLanguageDetector() *LanguageDetector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(
			lingua.English,
			lingua.Chinese,
			lingua.Japanese,
			lingua.Korean,
			lingua.German,
			lingua.French,
			lingua.Spanish,
		).
		WithMinimumRelativeDistance(0.1).
		Build()
	return &LanguageDetector{detector: detector}
}

// Detect returns the lowercase ISO 639-1 code of text's language, or "" when
// the text is empty or the detector is not confident.
func (d *LanguageDetector) Detect(text string) string {
	if d == nil {
		return ""
	}
	sample := sampleRunes(text, detectSampleRunes)
	if strings.TrimSpace(sample) == "" {
		return ""
	}
	lang, ok := d.detector.DetectLanguageOf(sample)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}

func sampleRunes(text string, n int) string {
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}
