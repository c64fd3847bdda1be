package models

import "time"

const (
	MinKnowledgeLevel = 1.0
	MaxKnowledgeLevel = 5.0
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ConversationTurn struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// UserSession is the per-user tutoring state. KnowledgeLevel stays within
// [MinKnowledgeLevel, MaxKnowledgeLevel].
type UserSession struct {
	ID                  string             `json:"id"`
	KnowledgeLevel      float64            `json:"knowledgeLevel"`
	Interests           []string           `json:"interests"`
	ConversationHistory []ConversationTurn `json:"conversationHistory"`
	CreatedAt           time.Time          `json:"createdAt"`
	LastInteraction     time.Time          `json:"lastInteraction"`
}

// Clone returns a deep copy so callers can mutate it without touching the
// stored record.
func (s *UserSession) Clone() *UserSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Interests = append([]string(nil), s.Interests...)
	out.ConversationHistory = append([]ConversationTurn(nil), s.ConversationHistory...)
	return &out
}

func ClampLevel(level float64) float64 {
	switch {
	case level < MinKnowledgeLevel:
		return MinKnowledgeLevel
	case level > MaxKnowledgeLevel:
		return MaxKnowledgeLevel
	default:
		return level
	}
}

// TruncateHistory keeps the most recent limit turns.
func TruncateHistory(turns []ConversationTurn, limit int) []ConversationTurn {
	if limit <= 0 || len(turns) <= limit {
		return turns
	}
	return append([]ConversationTurn(nil), turns[len(turns)-limit:]...)
}

type ConceptConfidence struct {
	UserID     string    `json:"userId"`
	ConceptID  string    `json:"conceptId"`
	Confidence float64   `json:"confidence"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// RelevantContext is the read-only view the orchestrator builds a reply from.
type RelevantContext struct {
	RecentUserMessages []string `json:"recentUserMessages"`
	StrongConcepts     []string `json:"strongConcepts"`
}

// TurnCommit is everything one chat exchange writes. Stores apply it
// all-or-nothing.
type TurnCommit struct {
	Session       *UserSession
	UserMessage   string
	Reply         string
	At            time.Time
	ConceptDeltas map[string]float64
}

// ChatRecord is the audit row kept for every answered chat request.
type ChatRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Message        string    `json:"message"`
	Response       string    `json:"response"`
	Source         string    `json:"source"`
	TopicsUsed     []string  `json:"topicsUsed"`
	Confidence     float64   `json:"confidence"`
	KnowledgeLevel float64   `json:"knowledgeLevel"`
	LatencyMS      int       `json:"latencyMs"`
	CreatedAt      time.Time `json:"createdAt"`
}
