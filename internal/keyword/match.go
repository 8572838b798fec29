package keyword

import "sort"

// Match returns the sorted, de-duplicated ids of every entity with at least
// one keyword occurring in text. Matching is case-insensitive substring
// matching: "pay" hits inside "payment".
func (idx *Index) Match(text string) []string {
	hits := idx.scan(text)
	if len(hits) == 0 {
		return []string{}
	}

	seen := make(map[string]struct{})
	out := make([]string, 0, 4)
	for kw := range hits {
		for _, owner := range idx.owners[kw] {
			if _, ok := seen[owner]; ok {
				continue
			}
			seen[owner] = struct{}{}
			out = append(out, owner)
		}
	}
	sort.Strings(out)
	return out
}

// MatchKeywords returns, per matched entity id, the sorted folded keywords
// that hit.
func (idx *Index) MatchKeywords(text string) map[string][]string {
	hits := idx.scan(text)
	out := make(map[string][]string)
	for kw := range hits {
		for _, owner := range idx.owners[kw] {
			out[owner] = append(out[owner], idx.keywords[kw])
		}
	}
	for owner := range out {
		sort.Strings(out[owner])
	}
	return out
}

// scan walks text once and returns the set of keyword ids found.
func (idx *Index) scan(text string) map[int32]struct{} {
	if idx == nil || len(idx.keywords) == 0 || text == "" {
		return nil
	}

	hits := make(map[int32]struct{})
	cur := int32(0)
	for _, r := range fold(text) {
		for {
			if nxt, ok := idx.nodes[cur].next[r]; ok {
				cur = nxt
				break
			}
			if cur == 0 {
				break
			}
			cur = idx.nodes[cur].fail
		}

		for _, kw := range idx.nodes[cur].out {
			hits[kw] = struct{}{}
		}
		for d := idx.nodes[cur].dict; d >= 0; d = idx.nodes[d].dict {
			for _, kw := range idx.nodes[d].out {
				hits[kw] = struct{}{}
			}
		}
	}
	return hits
}
