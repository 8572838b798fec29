// Package keyword finds which tracked startups a piece of text mentions.
//
// Build compiles every startup's keywords into one Aho-Corasick automaton so
// an article is scanned once no matter how many startups are tracked.
package keyword

import (
	"sort"
	"strings"
)

type node struct {
	next map[rune]int32
	fail int32
	// dict is the nearest node on the failure chain that ends a keyword, or -1.
	dict int32
	// out lists the keywords ending exactly at this node.
	out []int32
}

// Index is an immutable keyword automaton. It is safe for concurrent use.
type Index struct {
	nodes    []node
	keywords []string
	// owners[i] lists the entity ids that registered keywords[i], sorted.
	owners [][]string
}

// Build compiles keywords grouped by entity id. Keywords are case folded,
// blank keywords are ignored, and a keyword shared by several entities is
// reported for all of them.
func Build(keywordsByEntity map[string][]string) *Index {
	idx := &Index{nodes: []node{newNode()}}
	keywordIDs := make(map[string]int32)

	entityIDs := make([]string, 0, len(keywordsByEntity))
	for id := range keywordsByEntity {
		entityIDs = append(entityIDs, id)
	}
	sort.Strings(entityIDs)

	for _, entityID := range entityIDs {
		for _, raw := range keywordsByEntity[entityID] {
			folded := fold(raw)
			if strings.TrimSpace(folded) == "" {
				continue
			}
			id, ok := keywordIDs[folded]
			if !ok {
				id = int32(len(idx.keywords))
				keywordIDs[folded] = id
				idx.keywords = append(idx.keywords, folded)
				idx.owners = append(idx.owners, nil)
				idx.insert(folded, id)
			}
			idx.owners[id] = appendOwner(idx.owners[id], entityID)
		}
	}

	idx.link()
	return idx
}

func newNode() node {
	return node{next: map[rune]int32{}, dict: -1}
}

func (idx *Index) insert(keyword string, id int32) {
	cur := int32(0)
	for _, r := range keyword {
		nxt, ok := idx.nodes[cur].next[r]
		if !ok {
			nxt = int32(len(idx.nodes))
			idx.nodes = append(idx.nodes, newNode())
			idx.nodes[cur].next[r] = nxt
		}
		cur = nxt
	}
	idx.nodes[cur].out = append(idx.nodes[cur].out, id)
}

// link computes failure and dictionary-suffix links breadth first.
func (idx *Index) link() {
	queue := make([]int32, 0, len(idx.nodes))
	for _, child := range idx.nodes[0].next {
		idx.nodes[child].fail = 0
		queue = append(queue, child)
	}

	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		for r, child := range idx.nodes[cur].next {
			f := idx.nodes[cur].fail
			for {
				if nxt, ok := idx.nodes[f].next[r]; ok && nxt != child {
					idx.nodes[child].fail = nxt
					break
				}
				if f == 0 {
					idx.nodes[child].fail = 0
					break
				}
				f = idx.nodes[f].fail
			}

			target := idx.nodes[child].fail
			if len(idx.nodes[target].out) > 0 {
				idx.nodes[child].dict = target
			} else {
				idx.nodes[child].dict = idx.nodes[target].dict
			}
			queue = append(queue, child)
		}
	}
}

// Len returns the number of distinct folded keywords.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.keywords)
}

func fold(s string) string {
	return strings.ToLower(s)
}

func appendOwner(owners []string, id string) []string {
	i := sort.SearchStrings(owners, id)
	if i < len(owners) && owners[i] == id {
		return owners
	}
	owners = append(owners, "")
	copy(owners[i+1:], owners[i:])
	owners[i] = id
	return owners
}
