// Package dedup drops articles whose URL was already seen.
package dedup

// Candidate is anything carrying an article URL.
type Candidate interface {
	DedupURL() string
}

// Set holds canonical URLs. The zero value is not usable; use NewSet.
type Set map[string]struct{}

func NewSet(keys ...string) Set {
	s := make(Set, len(keys))
	s.Add(keys...)
	return s
}

func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

func (s Set) Add(keys ...string) {
	for _, key := range keys {
		s[key] = struct{}{}
	}
}

// Filter returns the candidates whose canonical URL is neither in seen nor
// repeated earlier in the batch, along with their canonical URLs
// (newKeys[i] belongs to fresh[i]). Candidates without a usable URL are
// dropped. seen is never modified; callers merge newKeys themselves.
func Filter[T Candidate](candidates []T, seen Set) (fresh []T, newKeys []string) {
	fresh = make([]T, 0, len(candidates))
	newKeys = make([]string, 0, len(candidates))
	batch := make(map[string]struct{}, len(candidates))

	for _, candidate := range candidates {
		key, ok := CanonicalURL(candidate.DedupURL())
		if !ok {
			continue
		}
		if seen.Has(key) {
			continue
		}
		if _, dup := batch[key]; dup {
			continue
		}
		batch[key] = struct{}{}
		fresh = append(fresh, candidate)
		newKeys = append(newKeys, key)
	}
	return fresh, newKeys
}
