package textclean

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// DetectLanguage returns the ISO 639-1 code of text, or UndeterminedLanguage
// when the sample is too short or ambiguous.
func DetectLanguage(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return UndeterminedLanguage
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < 12 {
		return UndeterminedLanguage
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return UndeterminedLanguage
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return UndeterminedLanguage
	}
	return code
}

// Models load lazily per language on first use; the full set is too large
// to preload for a short batch job.
func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			WithMinimumRelativeDistance(0.1).
			Build()
	})
	return detector
}
