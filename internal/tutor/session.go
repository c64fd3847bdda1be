package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/genetics-tutor/backend/internal/memory"
	"github.com/genetics-tutor/backend/internal/storage/models"
	"github.com/genetics-tutor/backend/pkg/logger"
)

type StartRequest struct {
	ID             string
	KnowledgeLevel float64
	Interests      []string
}

// StartSession creates a session, or returns the stored one when the id is
// already known.
func (e *Engine) StartSession(ctx context.Context, req StartRequest) (*models.UserSession, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	existing, err := e.store.GetSession(ctx, id)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, memory.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	level := req.KnowledgeLevel
	if level == 0 {
		level = e.cfg.DefaultLevel
	}
	interests := lo.Uniq(lo.Compact(lo.Map(req.Interests, func(s string, _ int) string {
		return strings.TrimSpace(s)
	})))

	session := e.newSession(id, level, interests, e.now())
	if err := e.store.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	logger.Info("Session started", zap.String("user_id", id), zap.Float64("knowledge_level", session.KnowledgeLevel))
	return session, nil
}

func (e *Engine) GetSession(ctx context.Context, id string) (*models.UserSession, error) {
	return e.store.GetSession(ctx, id)
}

// ResetSession replaces the stored record with a fresh session under the
// same id, dropping history and concept scores.
func (e *Engine) ResetSession(ctx context.Context, id string) (*models.UserSession, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	if err := e.store.DeleteSession(ctx, id); err != nil {
		return nil, err
	}

	session := e.newSession(id, e.cfg.DefaultLevel, nil, e.now())
	if err := e.store.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	logger.Info("Session reset", zap.String("user_id", id))
	return session, nil
}

func (e *Engine) Progress(ctx context.Context, id string, limit int) (*Progress, error) {
	session, err := e.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	concepts, err := e.store.Concepts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load concepts: %w", err)
	}

	if limit <= 0 {
		limit = e.cfg.ContextLimit
	}
	rc, err := e.store.RelevantContext(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build context: %w", err)
	}

	return &Progress{Session: session, Concepts: concepts, Context: rc}, nil
}

// ChatRecords lists the newest audit rows for id, newest first.
func (e *Engine) ChatRecords(ctx context.Context, id string, limit int) ([]models.ChatRecord, error) {
	reader, ok := e.recorder.(RecordReader)
	if !ok {
		return nil, ErrRecordsUnavailable
	}
	if limit <= 0 {
		limit = 20
	}

	records, err := reader.GetChatRecords(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.ChatRecord{}
	}
	return records, nil
}
