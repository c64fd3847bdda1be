package knowledge

import (
	"strings"

	"github.com/genetics-tutor/backend/internal/storage/models"
)

type Complexity int

const (
	ComplexityLow Complexity = iota
	ComplexityMedium
	ComplexityHigh
)

func (c Complexity) String() string {
	switch c {
	case ComplexityLow:
		return "low"
	case ComplexityHigh:
		return "high"
	default:
		return "medium"
	}
}

// ComplexityClassifier rates how demanding a single message is.
type ComplexityClassifier interface {
	Classify(message string) Complexity
}

// UnderstandingScorer rates recent history in [0.1, 1.0].
type UnderstandingScorer interface {
	Score(history []models.ConversationTurn) float64
}

var (
	BeginnerMarkers      = []string{"what is", "basic", "simple", "define", "introduction"}
	AdvancedMarkers      = []string{"mechanism", "regulation", "detailed", "specific", "pathway", "molecular basis"}
	ConfusionMarkers     = []string{"confused", "don't understand", "explain again", "not sure", "lost"}
	UnderstandingMarkers = []string{"i see", "that makes sense", "understood", "got it", "makes sense now"}
)

// KeywordClassifier checks beginner markers before advanced ones.
type KeywordClassifier struct {
	Beginner []string
	Advanced []string
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{Beginner: BeginnerMarkers, Advanced: AdvancedMarkers}
}

func (k *KeywordClassifier) Classify(message string) Complexity {
	folded := strings.ToLower(message)
	switch {
	case containsAny(folded, k.Beginner):
		return ComplexityLow
	case containsAny(folded, k.Advanced):
		return ComplexityHigh
	default:
		return ComplexityMedium
	}
}

// MarkerScorer counts confusion and understanding phrases in the user turns
// of the last Lookback history entries.
type MarkerScorer struct {
	Confusion     []string
	Understanding []string
	Lookback      int
}

func NewMarkerScorer(lookback int) *MarkerScorer {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &MarkerScorer{
		Confusion:     ConfusionMarkers,
		Understanding: UnderstandingMarkers,
		Lookback:      lookback,
	}
}

func (m *MarkerScorer) Score(history []models.ConversationTurn) float64 {
	recent := history
	if len(recent) > m.Lookback {
		recent = recent[len(recent)-m.Lookback:]
	}

	understanding, confusion := 0, 0
	for _, turn := range recent {
		if turn.Role != models.RoleUser {
			continue
		}
		folded := strings.ToLower(turn.Content)
		understanding += countAny(folded, m.Understanding)
		confusion += countAny(folded, m.Confusion)
	}

	return clamp(0.5+0.1*float64(understanding-confusion), minScore, maxScore)
}

func containsAny(folded string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(folded, m) {
			return true
		}
	}
	return false
}

// countAny counts markers present in folded, one per marker.
func countAny(folded string, markers []string) int {
	n := 0
	for _, m := range markers {
		if strings.Contains(folded, m) {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
