package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/genetics-tutor/backend/internal/storage/models"
)

const (
	DefaultHistoryCap   = 20
	DefaultContextLimit = 5
	// StrongConceptThreshold is the confidence above which a concept counts
	// as reinforced enough to tailor answers.
	StrongConceptThreshold = 0.7
)

var ErrSessionNotFound = errors.New("session not found")

// Store holds per-user conversation history, concept confidence and the
// session record. Implementations must keep history at or below their cap,
// evicting oldest turns first, and must never lower a concept's confidence
// through ReinforceConcept.
type Store interface {
	StoreTurn(ctx context.Context, userID, userMessage, assistantMessage string, at time.Time) error
	ReinforceConcept(ctx context.Context, userID, conceptID string, delta float64) (float64, error)
	RelevantContext(ctx context.Context, userID string, limit int) (models.RelevantContext, error)

	History(ctx context.Context, userID string) ([]models.ConversationTurn, error)
	Concepts(ctx context.Context, userID string) (map[string]float64, error)

	GetSession(ctx context.Context, id string) (*models.UserSession, error)
	SaveSession(ctx context.Context, session *models.UserSession) error
	DeleteSession(ctx context.Context, id string) error

	// Commit writes the session record with its history replaced by
	// commit.Session.ConversationHistory plus the new user/assistant pair,
	// then applies the concept deltas. Either all of it lands or none does.
	Commit(ctx context.Context, commit models.TurnCommit) error
}

// Reinforce applies one bounded confidence increment.
func Reinforce(previous, delta float64) float64 {
	if delta < 0 {
		delta = 0
	}
	next := previous + delta
	if next > 1 {
		return 1
	}
	return next
}

// AppendTurns appends a user/assistant pair and evicts the oldest turns
// beyond limit.
func AppendTurns(history []models.ConversationTurn, userMessage, assistantMessage string, at time.Time, limit int) []models.ConversationTurn {
	out := make([]models.ConversationTurn, 0, len(history)+2)
	out = append(out, history...)
	out = append(out,
		models.ConversationTurn{Role: models.RoleUser, Content: userMessage, Timestamp: at},
		models.ConversationTurn{Role: models.RoleAssistant, Content: assistantMessage, Timestamp: at},
	)
	return models.TruncateHistory(out, limit)
}

// BuildContext derives the relevant context from history and concept scores.
func BuildContext(history []models.ConversationTurn, concepts map[string]float64, limit int) models.RelevantContext {
	if limit <= 0 {
		limit = DefaultContextLimit
	}

	var userMessages []string
	for i := len(history) - 1; i >= 0 && len(userMessages) < limit; i-- {
		if history[i].Role == models.RoleUser {
			userMessages = append(userMessages, history[i].Content)
		}
	}
	for i, j := 0, len(userMessages)-1; i < j; i, j = i+1, j-1 {
		userMessages[i], userMessages[j] = userMessages[j], userMessages[i]
	}

	strong := []string{}
	for concept, confidence := range concepts {
		if confidence > StrongConceptThreshold {
			strong = append(strong, concept)
		}
	}
	sort.Strings(strong)

	if userMessages == nil {
		userMessages = []string{}
	}

	return models.RelevantContext{
		RecentUserMessages: userMessages,
		StrongConcepts:     strong,
	}
}
