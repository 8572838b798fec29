package textclean

import "strings"

// UndeterminedLanguage is stored when detection has too little text to go on.
const UndeterminedLanguage = "und"

// NormalizeCode returns the lowercase primary subtag of a language tag
// ("en" from "en_US"), or "" when the tag is blank or malformed.
func NormalizeCode(raw string) string {
	tag := strings.ToLower(strings.TrimSpace(raw))
	tag = strings.ReplaceAll(tag, "_", "-")
	primary, _, _ := strings.Cut(strings.TrimLeft(tag, "-"), "-")
	if primary == "" {
		return ""
	}
	for _, r := range primary {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return primary
}

// LanguageSet decides which detected languages get scored.
type LanguageSet map[string]struct{}

func NewLanguageSet(codes []string) LanguageSet {
	set := make(LanguageSet, len(codes))
	for _, code := range codes {
		if normalized := NormalizeCode(code); normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	return set
}

// Allows reports whether code may be scored. An empty set allows every
// language, and undetermined text is given the benefit of the doubt since
// the providers are already asked for the configured language.
func (s LanguageSet) Allows(code string) bool {
	if len(s) == 0 {
		return true
	}
	normalized := NormalizeCode(code)
	if normalized == "" || normalized == UndeterminedLanguage {
		return true
	}
	_, ok := s[normalized]
	return ok
}
