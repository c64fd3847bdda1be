package response

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/genetics-tutor/backend/internal/catalog"
)

// FallbackText is returned when no topic matches the message.
const FallbackText = "I'm not sure I understand your question. Could you please rephrase it or ask about a specific molecular genetics topic, such as DNA structure, transcription or mutations?"

type Mode string

const (
	ModeLookup Mode = "lookup"
	ModeRanked Mode = "ranked"
)

const (
	DefaultSimplifyBelow = 2.5
	DefaultAdvancedAbove = 4.0

	rankedLimit = 3
)

// Tier is the coarse knowledge band a level falls into.
type Tier int

const (
	TierBeginner Tier = iota
	TierIntermediate
	TierAdvanced
)

func (t Tier) String() string {
	switch t {
	case TierBeginner:
		return "beginner"
	case TierAdvanced:
		return "advanced"
	default:
		return "intermediate"
	}
}

type Options struct {
	Mode          Mode
	SimplifyBelow float64
	AdvancedAbove float64
}

// Selection is the rendered answer. TopicsUsed is never nil.
type Selection struct {
	Text       string
	TopicsUsed []string
	Reasoning  []string
}

// Matched reports whether any topic was used.
func (s Selection) Matched() bool {
	return len(s.TopicsUsed) > 0
}

type Selector struct {
	catalog *catalog.Catalog
	opts    Options
}

func NewSelector(c *catalog.Catalog, opts Options) *Selector {
	if opts.Mode == "" {
		opts.Mode = ModeLookup
	}
	if opts.SimplifyBelow == 0 {
		opts.SimplifyBelow = DefaultSimplifyBelow
	}
	if opts.AdvancedAbove == 0 {
		opts.AdvancedAbove = DefaultAdvancedAbove
	}
	return &Selector{catalog: c, opts: opts}
}

func (s *Selector) Catalog() *catalog.Catalog {
	return s.catalog
}

func (s *Selector) Tier(level float64) Tier {
	switch {
	case level < s.opts.SimplifyBelow:
		return TierBeginner
	case level > s.opts.AdvancedAbove:
		return TierAdvanced
	default:
		return TierIntermediate
	}
}

// Match picks topics for message without rendering them.
func (s *Selector) Match(message string) ([]catalog.Topic, []string) {
	if s.opts.Mode == ModeRanked {
		return s.rank(message)
	}

	topic, ok := s.catalog.Lookup(message)
	if !ok {
		return nil, []string{"no topic identifier or keyword found in the message"}
	}

	folded := strings.ToLower(message)
	how := "term"
	switch {
	case topic.MentionedIn(folded):
		how = "identifier"
	case topic.KeywordHits(folded) > 0:
		how = "keyword"
	}
	return []catalog.Topic{topic}, []string{fmt.Sprintf("matched %s by %s", topic.ID, how)}
}

// Select picks topics for message and renders them for level.
func (s *Selector) Select(message string, level float64) Selection {
	topics, reasoning := s.Match(message)
	if len(topics) == 0 {
		return Selection{
			Text:       FallbackText,
			TopicsUsed: []string{},
			Reasoning:  reasoning,
		}
	}

	tier := s.Tier(level)
	reasoning = append(reasoning, fmt.Sprintf("rendered for %s level %.1f", tier, level))

	blocks := make([]string, 0, len(topics))
	for _, t := range topics {
		blocks = append(blocks, s.Render(t, tier))
	}

	return Selection{
		Text:       strings.Join(blocks, "\n\n"),
		TopicsUsed: lo.Map(topics, func(t catalog.Topic, _ int) string { return t.ID }),
		Reasoning:  reasoning,
	}
}

// Render formats one topic: title, body tailored to tier, examples, then
// related topics.
func (s *Selector) Render(t catalog.Topic, tier Tier) string {
	body := t.Content
	switch tier {
	case TierBeginner:
		body = firstSentences(body, 2)
	case TierAdvanced:
		if suffix, ok := advancedDetail[t.ID]; ok {
			body += " " + suffix
		}
	}

	var b strings.Builder
	b.WriteString(t.Title)
	b.WriteString("\n\n")
	b.WriteString(body)

	for _, ex := range t.Examples {
		b.WriteString("\n\nExample: ")
		b.WriteString(ex)
	}

	if len(t.RelatedTopics) > 0 {
		titles := lo.Map(t.RelatedTopics, func(id string, _ int) string {
			if related, ok := s.catalog.Get(id); ok {
				return related.Title
			}
			return id
		})
		b.WriteString("\n\nRelated topics: ")
		b.WriteString(strings.Join(titles, ", "))
	}

	return b.String()
}

type scored struct {
	topic catalog.Topic
	pos   int
	score int
}

// rank scores every topic by 2 per keyword contained in the message, 1 per
// broad term, 3 when the identifier is named, and 1 per message token found
// in the body.
func (s *Selector) rank(message string) ([]catalog.Topic, []string) {
	folded := strings.ToLower(message)
	tokens := queryTokens(message)

	var candidates []scored
	for i, t := range s.catalog.Topics() {
		score := 2*t.KeywordHits(folded) + t.TermHits(folded)
		if t.MentionedIn(folded) {
			score += 3
		}
		body := strings.ToLower(t.Content)
		for _, tok := range tokens {
			if strings.Contains(body, tok) {
				score++
			}
		}
		if score > 0 {
			candidates = append(candidates, scored{topic: t, pos: i, score: score})
		}
	}

	if len(candidates) == 0 {
		return nil, []string{"no topic scored above zero"}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})
	if len(candidates) > rankedLimit {
		candidates = candidates[:rankedLimit]
	}

	reasoning := lo.Map(candidates, func(c scored, _ int) string {
		return fmt.Sprintf("scored %s at %d", c.topic.ID, c.score)
	})
	return lo.Map(candidates, func(c scored, _ int) catalog.Topic { return c.topic }), reasoning
}

var advancedDetail = map[string]string{
	"dna_structure":         "Advanced detail: B-form DNA has about 10.5 base pairs per turn, and its major and minor grooves expose different hydrogen-bonding patterns that proteins read.",
	"dna_replication":       "Advanced detail: origin licensing by the MCM helicase restricts replication to once per cell cycle, and polymerase proofreading lowers the error rate to about one in a billion.",
	"transcription":         "Advanced detail: phosphorylation of the RNA polymerase II C-terminal domain coordinates initiation, capping, splicing and termination.",
	"translation":           "Advanced detail: initiation factors scan from the 5' cap to the start codon, and the Kozak context around AUG tunes how efficiently it is used.",
	"gene_regulation":       "Advanced detail: enhancers can act from tens of kilobases away by looping to the promoter through cohesin and the Mediator complex.",
	"mutations":             "Advanced detail: mismatch repair and nucleotide excision repair remove many lesions, and defects in these pathways raise mutation rates sharply.",
	"genetic_recombination": "Advanced detail: Spo11 makes programmed double-strand breaks in meiosis, and Holliday junction resolution decides between crossover and non-crossover products.",
	"gene_editing":          "Advanced detail: editing outcomes depend on the protospacer adjacent motif, guide design and whether the cell favors end joining or homology-directed repair.",
	"epigenetics":           "Advanced detail: DNMT1 copies methylation onto the new strand after replication, which is how methylation patterns are maintained.",
}
