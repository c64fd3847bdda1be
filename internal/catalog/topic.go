package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

type Difficulty int

const (
	Beginner Difficulty = iota
	Intermediate
	Advanced
)

func (d Difficulty) String() string {
	switch d {
	case Beginner:
		return "beginner"
	case Intermediate:
		return "intermediate"
	case Advanced:
		return "advanced"
	default:
		return "unknown"
	}
}

func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "beginner":
		return Beginner, nil
	case "intermediate":
		return Intermediate, nil
	case "advanced":
		return Advanced, nil
	default:
		return Beginner, fmt.Errorf("unknown difficulty %q", s)
	}
}

func (d Difficulty) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Difficulty) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDifficulty(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Topic is one subject-matter entry. Terms are broad single words such as
// "dna" that match only as whole words and only when no keyword matched.
// Topics are immutable once a Catalog holds them.
type Topic struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Keywords      []string   `json:"keywords"`
	Difficulty    Difficulty `json:"difficulty"`
	RelatedTopics []string   `json:"relatedTopics"`
	Examples      []string   `json:"examples,omitempty"`
	Terms         []string   `json:"terms,omitempty"`
}

// spokenID is the identifier as it would appear in prose.
func (t Topic) spokenID() string {
	return strings.ReplaceAll(t.ID, "_", " ")
}

// MentionedIn reports whether the case-folded query names the topic
// identifier, verbatim or with underscores read as spaces.
func (t Topic) MentionedIn(foldedQuery string) bool {
	id := strings.ToLower(t.ID)
	return strings.Contains(foldedQuery, id) || strings.Contains(foldedQuery, strings.ReplaceAll(id, "_", " "))
}

// KeywordHits counts the topic keywords contained in the case-folded query.
func (t Topic) KeywordHits(foldedQuery string) int {
	hits := 0
	for _, kw := range t.Keywords {
		if kw != "" && strings.Contains(foldedQuery, strings.ToLower(kw)) {
			hits++
		}
	}
	return hits
}

// TermHits counts the topic terms appearing as whole words in the
// case-folded query.
func (t Topic) TermHits(foldedQuery string) int {
	if len(t.Terms) == 0 {
		return 0
	}
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(foldedQuery, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = struct{}{}
	}

	hits := 0
	for _, term := range t.Terms {
		if _, ok := words[strings.ToLower(term)]; ok {
			hits++
		}
	}
	return hits
}

func (t Topic) clone() Topic {
	out := t
	out.Keywords = append([]string(nil), t.Keywords...)
	out.Terms = append([]string(nil), t.Terms...)
	out.RelatedTopics = append([]string(nil), t.RelatedTopics...)
	out.Examples = append([]string(nil), t.Examples...)
	return out
}
