package dispatch

import (
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"

	"popfill/pkg/candidate"
)

// Cache remembers the candidates of the last completed (non-incomplete)
// batch, keyed by row and boundary. While the user keeps narrowing the
// same word, the cached set is re-filtered locally instead of being
// re-requested; any other movement invalidates it.
type Cache struct {
	valid    bool
	row      int
	boundary int
	prefix   string
	cands    []candidate.Candidate
	trie     *patricia.Trie
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Put stores a completed batch. Incomplete batches must not be cached:
// the provider expects a follow-up query instead of local filtering.
func (c *Cache) Put(row, boundary int, prefix string, cands []candidate.Candidate) {
	c.valid = true
	c.row = row
	c.boundary = boundary
	c.prefix = prefix
	c.cands = cands

	c.trie = patricia.NewTrie()
	for i := range cands {
		key := patricia.Prefix(strings.ToLower(cands[i].Word))
		if existing := c.trie.Get(key); existing != nil {
			c.trie.Set(key, append(existing.([]int), i))
		} else {
			c.trie.Insert(key, []int{i})
		}
	}
}

// Invalidate drops the cached batch.
func (c *Cache) Invalidate() {
	c.valid = false
	c.cands = nil
	c.trie = nil
}

// Get re-filters the cached batch for a narrowed prefix at the same
// boundary. ok=false means the caller must dispatch.
func (c *Cache) Get(row, boundary int, prefix string, m candidate.Matcher) ([]candidate.Candidate, bool) {
	if !c.valid || row != c.row || boundary != c.boundary {
		return nil, false
	}
	if !strings.HasPrefix(prefix, c.prefix) {
		return nil, false
	}

	// Fuzzy words need not share the literal prefix, so the trie walk
	// only narrows for the prefix-shaped modes.
	if m.Mode() == candidate.ModeFuzzy {
		out := make([]candidate.Candidate, 0, len(c.cands))
		for _, cand := range c.cands {
			if m.Match(prefix, cand.Word) {
				out = append(out, cand)
			}
		}
		return out, true
	}

	var idx []int
	err := c.trie.VisitSubtree(patricia.Prefix(strings.ToLower(prefix)), func(p patricia.Prefix, item patricia.Item) error {
		idx = append(idx, item.([]int)...)
		return nil
	})
	if err != nil {
		log.Errorf("Error visiting cache subtree: %v", err)
		return nil, false
	}

	// Preserve the stored sort order and re-check the exact predicate
	// (the trie is case folded, the active mode may not be).
	sort.Ints(idx)
	out := make([]candidate.Candidate, 0, len(idx))
	for _, i := range idx {
		if m.Match(prefix, c.cands[i].Word) {
			out = append(out, c.cands[i])
		}
	}
	return out, true
}
