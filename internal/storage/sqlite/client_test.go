package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genetics-tutor/backend/internal/memory"
	"github.com/genetics-tutor/backend/internal/storage/models"
)

var _ memory.Store = (*Client)(nil)

func newTestClient(t *testing.T, historyCap int) *Client {
	t.Helper()

	c, err := NewClient(filepath.Join(t.TempDir(), "tutor.db"), historyCap)
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestStoreTurnEvictsOldest(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, 20)
	at := time.UnixMilli(1700000000000)

	for i := 0; i < 21; i++ {
		require.NoError(t, c.StoreTurn(ctx, "u1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), at))
	}

	history, err := c.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 20)
	assert.Equal(t, "q11", history[0].Content)
	assert.Equal(t, "a20", history[19].Content)
	assert.NotEmpty(t, history[0].ID)
}

func TestReinforceSaturates(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, 20)

	var got float64
	var err error
	for i := 0; i < 40; i++ {
		prev := got
		got, err = c.ReinforceConcept(ctx, "u1", "transcription", 0.03)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, prev)
	}
	assert.Equal(t, 1.0, got)

	concepts, err := c.Concepts(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, concepts["transcription"])

	rc, err := c.RelevantContext(ctx, "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"transcription"}, rc.StrongConcepts)
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, 20)

	_, err := c.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, memory.ErrSessionNotFound)

	created := time.UnixMilli(1700000000000)
	sess := &models.UserSession{
		ID:              "s1",
		KnowledgeLevel:  3.4,
		Interests:       []string{"dna_structure", "mutations"},
		CreatedAt:       created,
		LastInteraction: created,
		ConversationHistory: []models.ConversationTurn{
			{Role: models.RoleUser, Content: "hi", Timestamp: created},
			{Role: models.RoleAssistant, Content: "hello", Timestamp: created},
		},
	}
	require.NoError(t, c.SaveSession(ctx, sess))

	got, err := c.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3.4, got.KnowledgeLevel)
	assert.Equal(t, []string{"dna_structure", "mutations"}, got.Interests)
	assert.True(t, got.CreatedAt.Equal(created))
	require.Len(t, got.ConversationHistory, 2)
	assert.Equal(t, "hello", got.ConversationHistory[1].Content)

	require.NoError(t, c.DeleteSession(ctx, "s1"))
	_, err = c.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, memory.ErrSessionNotFound)
	assert.ErrorIs(t, c.DeleteSession(ctx, "s1"), memory.ErrSessionNotFound)
}

func TestCommitIsAtomic(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, 4)
	at := time.UnixMilli(1700000000000)

	base := &models.UserSession{ID: "s1", KnowledgeLevel: 3, CreatedAt: at, LastInteraction: at}
	require.NoError(t, c.SaveSession(ctx, base))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err := c.Commit(canceled, models.TurnCommit{
		Session:       &models.UserSession{ID: "s1", KnowledgeLevel: 4.9, LastInteraction: at},
		UserMessage:   "q",
		Reply:         "a",
		At:            at,
		ConceptDeltas: map[string]float64{"mutations": 0.03},
	})
	require.Error(t, err)

	got, err := c.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.KnowledgeLevel)
	assert.Empty(t, got.ConversationHistory)

	err = c.Commit(ctx, models.TurnCommit{
		Session:       &models.UserSession{ID: "s1", KnowledgeLevel: 3.1, LastInteraction: at},
		UserMessage:   "q",
		Reply:         "a",
		At:            at,
		ConceptDeltas: map[string]float64{"mutations": 0.03},
	})
	require.NoError(t, err)

	got, err = c.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3.1, got.KnowledgeLevel)
	require.Len(t, got.ConversationHistory, 2)

	concepts, err := c.Concepts(ctx, "s1")
	require.NoError(t, err)
	assert.InDelta(t, 0.03, concepts["mutations"], 1e-9)
}

func TestChatRecords(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, 20)

	rec := &models.ChatRecord{
		UserID:     "u1",
		Message:    "What is DNA structure?",
		Response:   "DNA Structure ...",
		Source:     "catalog",
		TopicsUsed: []string{"dna_structure"},
		Confidence: 0.7,
		CreatedAt:  time.UnixMilli(1700000000000),
	}
	require.NoError(t, c.InsertChatRecord(ctx, rec))
	assert.NotEmpty(t, rec.ID)

	records, err := c.GetChatRecords(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"dna_structure"}, records[0].TopicsUsed)
	assert.Equal(t, "catalog", records[0].Source)
}
