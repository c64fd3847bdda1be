package tutor

import (
	"context"
	"errors"

	rediscache "github.com/genetics-tutor/backend/internal/cache/redis"
	"github.com/genetics-tutor/backend/internal/llm"
	"github.com/genetics-tutor/backend/internal/storage/models"
)

var (
	ErrInvalidInput       = errors.New("message must be non-empty text")
	ErrInternalFault      = errors.New("internal fault")
	ErrRecordsUnavailable = errors.New("chat records are not kept")
)

// InternalFallbackText is the answer shown when the pipeline fails.
const InternalFallbackText = "I'm sorry, I ran into a problem while preparing your answer. Please try asking your question again in a moment."

type Source string

const (
	// SourceCatalog is a rendered catalog topic.
	SourceCatalog Source = "catalog"
	// SourceFallback is the rephrase prompt used when nothing matched.
	SourceFallback Source = "fallback"
	SourceLLM      Source = "llm"
	SourceCache    Source = "cache"
	SourceError    Source = "error"
)

type ChatRequest struct {
	Message string
	Session *models.UserSession
}

type ChatResponse struct {
	Response           string              `json:"response"`
	UpdatedSession     *models.UserSession `json:"updatedSession"`
	SuggestedQuestions []string            `json:"suggestedQuestions"`
	TopicsUsed         []string            `json:"topicsUsed"`
	Confidence         float64             `json:"confidence"`
	Reasoning          []string            `json:"reasoning"`
	Source             Source              `json:"source"`
}

// Progress is a learner's stored state for the session endpoints.
type Progress struct {
	Session  *models.UserSession    `json:"session"`
	Concepts map[string]float64     `json:"concepts"`
	Context  models.RelevantContext `json:"context"`
}

// Completer is the external completion collaborator.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// AnswerCache stores completions keyed by level tier, system prompt and
// message.
type AnswerCache interface {
	GetAnswer(ctx context.Context, key string) (*rediscache.CachedAnswer, bool, error)
	SetAnswer(ctx context.Context, key string, answer *rediscache.CachedAnswer) error
}

// Recorder keeps an audit row per answered chat.
type Recorder interface {
	InsertChatRecord(ctx context.Context, record *models.ChatRecord) error
}

// RecordReader is implemented by recorders that can list what they kept.
type RecordReader interface {
	GetChatRecords(ctx context.Context, userID string, limit int) ([]models.ChatRecord, error)
}
