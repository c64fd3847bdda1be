package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genetics-tutor/backend/internal/storage/models"
)

var _ Store = (*InMemoryStore)(nil)

func TestStoreTurnCapsHistoryOldestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(20)
	at := time.Unix(1700000000, 0)

	for i := 0; i < 21; i++ {
		require.NoError(t, s.StoreTurn(ctx, "u1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), at))
		history, err := s.History(ctx, "u1")
		require.NoError(t, err)
		assert.LessOrEqual(t, len(history), 20)
	}

	history, err := s.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 20)

	assert.Equal(t, "q11", history[0].Content)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, "a20", history[19].Content)
	assert.Equal(t, models.RoleAssistant, history[19].Role)
	for _, turn := range history {
		assert.NotEqual(t, "q0", turn.Content)
	}
}

func TestReinforceConceptIsMonotoneAndBounded(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(20)

	prev := 0.0
	for i := 0; i < 50; i++ {
		got, err := s.ReinforceConcept(ctx, "u1", "mutations", 0.03)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, prev)
		assert.LessOrEqual(t, got, 1.0)
		prev = got
	}
	assert.Equal(t, 1.0, prev)

	got, err := s.ReinforceConcept(ctx, "u1", "mutations", -0.5)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func TestRelevantContext(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(20)
	at := time.Unix(1700000000, 0)

	for i := 0; i < 7; i++ {
		require.NoError(t, s.StoreTurn(ctx, "u1", fmt.Sprintf("q%d", i), "a", at))
	}
	for i := 0; i < 30; i++ {
		_, _ = s.ReinforceConcept(ctx, "u1", "transcription", 0.03)
	}
	_, _ = s.ReinforceConcept(ctx, "u1", "mutations", 0.03)

	got, err := s.RelevantContext(ctx, "u1", 5)
	require.NoError(t, err)

	assert.Equal(t, []string{"q2", "q3", "q4", "q5", "q6"}, got.RecentUserMessages)
	assert.Equal(t, []string{"transcription"}, got.StrongConcepts)

	again, err := s.RelevantContext(ctx, "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestRelevantContextForUnknownUser(t *testing.T) {
	got, err := NewInMemoryStore(20).RelevantContext(context.Background(), "nobody", 5)
	require.NoError(t, err)
	assert.Empty(t, got.RecentUserMessages)
	assert.Empty(t, got.StrongConcepts)
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(4)

	_, err := s.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	sess := &models.UserSession{ID: "s1", KnowledgeLevel: 3, Interests: []string{"mutations"}}
	require.NoError(t, s.SaveSession(ctx, sess))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.KnowledgeLevel)
	assert.False(t, got.CreatedAt.IsZero())

	got.Interests[0] = "mutated"
	again, _ := s.GetSession(ctx, "s1")
	assert.Equal(t, "mutations", again.Interests[0])

	require.NoError(t, s.DeleteSession(ctx, "s1"))
	_, err = s.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, s.DeleteSession(ctx, "s1"), ErrSessionNotFound)
}

func TestCommitAppliesEverything(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(4)
	at := time.Unix(1700000000, 0)

	base := []models.ConversationTurn{
		{Role: models.RoleUser, Content: "old-q"},
		{Role: models.RoleAssistant, Content: "old-a"},
		{Role: models.RoleUser, Content: "mid-q"},
		{Role: models.RoleAssistant, Content: "mid-a"},
	}

	err := s.Commit(ctx, models.TurnCommit{
		Session:       &models.UserSession{ID: "s1", KnowledgeLevel: 3.1, ConversationHistory: base},
		UserMessage:   "new-q",
		Reply:         "new-a",
		At:            at,
		ConceptDeltas: map[string]float64{"mutations": 0.03},
	})
	require.NoError(t, err)

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3.1, got.KnowledgeLevel)
	require.Len(t, got.ConversationHistory, 4)
	assert.Equal(t, "mid-q", got.ConversationHistory[0].Content)
	assert.Equal(t, "new-a", got.ConversationHistory[3].Content)

	concepts, err := s.Concepts(ctx, "s1")
	require.NoError(t, err)
	assert.InDelta(t, 0.03, concepts["mutations"], 1e-9)
}
