package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

var (
	ErrDuplicateTopic = errors.New("duplicate topic id")
	ErrInvalidTopic   = errors.New("invalid topic")
)

// Catalog is the read-only topic table. Iteration order is definition order.
type Catalog struct {
	topics []Topic
	index  map[string]int
}

func New(topics ...Topic) (*Catalog, error) {
	c := &Catalog{
		topics: make([]Topic, 0, len(topics)),
		index:  make(map[string]int, len(topics)),
	}

	for _, t := range topics {
		if strings.TrimSpace(t.ID) == "" || strings.TrimSpace(t.Title) == "" {
			return nil, fmt.Errorf("%w: id and title are required", ErrInvalidTopic)
		}
		if _, exists := c.index[t.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTopic, t.ID)
		}
		c.index[t.ID] = len(c.topics)
		c.topics = append(c.topics, t.clone())
	}

	return c, nil
}

// Merge returns a new catalog holding c's topics followed by extra.
func (c *Catalog) Merge(extra ...Topic) (*Catalog, error) {
	all := make([]Topic, 0, len(c.topics)+len(extra))
	all = append(all, c.topics...)
	all = append(all, extra...)
	return New(all...)
}

// Lookup finds the single best topic for query: a topic whose identifier
// appears in the query wins, then the first topic with a keyword in the
// query, then the first topic with a broad term in it. Every pass walks the
// catalog in definition order.
func (c *Catalog) Lookup(query string) (Topic, bool) {
	folded := strings.ToLower(query)

	for _, t := range c.topics {
		if t.MentionedIn(folded) {
			return t.clone(), true
		}
	}

	for _, t := range c.topics {
		if t.KeywordHits(folded) > 0 {
			return t.clone(), true
		}
	}

	for _, t := range c.topics {
		if t.TermHits(folded) > 0 {
			return t.clone(), true
		}
	}

	return Topic{}, false
}

func (c *Catalog) Get(id string) (Topic, bool) {
	i, ok := c.index[id]
	if !ok {
		return Topic{}, false
	}
	return c.topics[i].clone(), true
}

func (c *Catalog) Topics() []Topic {
	out := make([]Topic, len(c.topics))
	for i, t := range c.topics {
		out[i] = t.clone()
	}
	return out
}

func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.topics))
	for i, t := range c.topics {
		ids[i] = t.ID
	}
	return ids
}

func (c *Catalog) Len() int {
	return len(c.topics)
}

// Position returns the definition index of id, or -1.
func (c *Catalog) Position(id string) int {
	if i, ok := c.index[id]; ok {
		return i
	}
	return -1
}

// Search is a typo-tolerant lookup over titles, identifiers and keywords for
// browsing the catalog. Results are ordered by best match distance, then by
// definition order.
func (c *Catalog) Search(query string, limit int) []Topic {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	type hit struct {
		pos      int
		distance int
	}
	best := make(map[int]int)

	for i, t := range c.topics {
		targets := append([]string{t.Title, t.spokenID()}, t.Keywords...)
		targets = append(targets, t.Terms...)
		for _, r := range fuzzy.RankFindFold(query, targets) {
			if d, seen := best[i]; !seen || r.Distance < d {
				best[i] = r.Distance
			}
		}
	}

	hits := make([]hit, 0, len(best))
	for pos, d := range best {
		hits = append(hits, hit{pos: pos, distance: d})
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].distance != hits[b].distance {
			return hits[a].distance < hits[b].distance
		}
		return hits[a].pos < hits[b].pos
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]Topic, len(hits))
	for i, h := range hits {
		out[i] = c.topics[h.pos].clone()
	}
	return out
}
