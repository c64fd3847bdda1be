package knowledge

import (
	"math"

	"github.com/genetics-tutor/backend/internal/storage/models"
)

const (
	DefaultLookback = 10

	minScore = 0.1
	maxScore = 1.0

	raiseAbove = 0.8
	lowerBelow = 0.4
	step       = 0.1
)

// Estimator adjusts a session's knowledge level by one step per message.
// It is deterministic for a given history and message.
type Estimator struct {
	classifier ComplexityClassifier
	scorer     UnderstandingScorer
}

func NewEstimator(classifier ComplexityClassifier, scorer UnderstandingScorer) *Estimator {
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	if scorer == nil {
		scorer = NewMarkerScorer(DefaultLookback)
	}
	return &Estimator{classifier: classifier, scorer: scorer}
}

// Estimate returns the level after message, always within
// [models.MinKnowledgeLevel, models.MaxKnowledgeLevel].
func (e *Estimator) Estimate(session *models.UserSession, message string) float64 {
	if session == nil {
		return models.ClampLevel(0)
	}

	level := models.ClampLevel(session.KnowledgeLevel)
	if math.IsNaN(level) {
		level = models.MinKnowledgeLevel
	}

	score := e.scorer.Score(session.ConversationHistory)
	complexity := e.classifier.Classify(message)

	switch {
	case score > raiseAbove && complexity == ComplexityHigh:
		level += step
	case score < lowerBelow:
		level -= step
	}

	return models.ClampLevel(round(level))
}

// Breakdown exposes the intermediate values for diagnostics.
func (e *Estimator) Breakdown(session *models.UserSession, message string) (Complexity, float64) {
	var history []models.ConversationTurn
	if session != nil {
		history = session.ConversationHistory
	}
	return e.classifier.Classify(message), e.scorer.Score(history)
}

// round trims float drift from repeated 0.1 steps.
func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
