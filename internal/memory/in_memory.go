package memory

import (
	"context"
	"sync"
	"time"

	"github.com/genetics-tutor/backend/internal/storage/models"
)

// InMemoryStore keeps all state in process memory. It lives as long as the
// process does.
type InMemoryStore struct {
	mu         sync.RWMutex
	historyCap int
	sessions   map[string]*models.UserSession
	histories  map[string][]models.ConversationTurn
	concepts   map[string]map[string]float64
	now        func() time.Time
}

func NewInMemoryStore(historyCap int) *InMemoryStore {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &InMemoryStore{
		historyCap: historyCap,
		sessions:   make(map[string]*models.UserSession),
		histories:  make(map[string][]models.ConversationTurn),
		concepts:   make(map[string]map[string]float64),
		now:        time.Now,
	}
}

func (s *InMemoryStore) StoreTurn(_ context.Context, userID, userMessage, assistantMessage string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.histories[userID] = AppendTurns(s.histories[userID], userMessage, assistantMessage, at, s.historyCap)
	return nil
}

func (s *InMemoryStore) ReinforceConcept(_ context.Context, userID, conceptID string, delta float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reinforceLocked(userID, conceptID, delta), nil
}

func (s *InMemoryStore) reinforceLocked(userID, conceptID string, delta float64) float64 {
	scores, ok := s.concepts[userID]
	if !ok {
		scores = make(map[string]float64)
		s.concepts[userID] = scores
	}
	scores[conceptID] = Reinforce(scores[conceptID], delta)
	return scores[conceptID]
}

func (s *InMemoryStore) RelevantContext(_ context.Context, userID string, limit int) (models.RelevantContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return BuildContext(s.histories[userID], s.concepts[userID], limit), nil
}

func (s *InMemoryStore) History(_ context.Context, userID string) ([]models.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.ConversationTurn{}, s.histories[userID]...), nil
}

func (s *InMemoryStore) Concepts(_ context.Context, userID string) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]float64, len(s.concepts[userID]))
	for k, v := range s.concepts[userID] {
		out[k] = v
	}
	return out, nil
}

func (s *InMemoryStore) GetSession(_ context.Context, id string) (*models.UserSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	out := sess.Clone()
	out.ConversationHistory = append([]models.ConversationTurn{}, s.histories[id]...)
	return out, nil
}

func (s *InMemoryStore) SaveSession(_ context.Context, session *models.UserSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saveLocked(session, session.ConversationHistory)
	return nil
}

func (s *InMemoryStore) saveLocked(session *models.UserSession, history []models.ConversationTurn) {
	stored := session.Clone()
	stored.ConversationHistory = nil
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	s.sessions[session.ID] = stored
	s.histories[session.ID] = models.TruncateHistory(append([]models.ConversationTurn(nil), history...), s.historyCap)
}

func (s *InMemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}

	delete(s.sessions, id)
	delete(s.histories, id)
	delete(s.concepts, id)
	return nil
}

func (s *InMemoryStore) Commit(_ context.Context, commit models.TurnCommit) error {
	history := AppendTurns(commit.Session.ConversationHistory, commit.UserMessage, commit.Reply, commit.At, s.historyCap)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.saveLocked(commit.Session, history)
	for concept, delta := range commit.ConceptDeltas {
		s.reinforceLocked(commit.Session.ID, concept, delta)
	}
	return nil
}
