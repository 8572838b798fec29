package source

import (
	"strings"
)

// MaxQueryLength is the longest q parameter NewsAPI accepts.
const MaxQueryLength = 500

// BuildQuery turns a startup name and its keywords into a provider query:
// each term quoted, duplicates removed case-insensitively, joined with OR.
// Terms that would push the query past MaxQueryLength are left out whole.
func BuildQuery(name string, keywords []string) string {
	terms := make([]string, 0, len(keywords)+1)
	seen := make(map[string]struct{}, len(keywords)+1)
	for _, raw := range append([]string{name}, keywords...) {
		term := strings.Join(strings.Fields(strings.ReplaceAll(raw, `"`, " ")), " ")
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		terms = append(terms, term)
	}

	var b strings.Builder
	for _, term := range terms {
		quoted := `"` + term + `"`
		extra := len(quoted)
		if b.Len() > 0 {
			extra += len(" OR ")
		}
		if b.Len()+extra > MaxQueryLength {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" OR ")
		}
		b.WriteString(quoted)
	}
	return b.String()
}
