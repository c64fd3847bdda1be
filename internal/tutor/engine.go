package tutor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	rediscache "github.com/genetics-tutor/backend/internal/cache/redis"
	"github.com/genetics-tutor/backend/internal/knowledge"
	"github.com/genetics-tutor/backend/internal/llm"
	"github.com/genetics-tutor/backend/internal/memory"
	"github.com/genetics-tutor/backend/internal/metrics"
	"github.com/genetics-tutor/backend/internal/response"
	"github.com/genetics-tutor/backend/internal/storage/models"
	"github.com/genetics-tutor/backend/pkg/keymutex"
	"github.com/genetics-tutor/backend/pkg/logger"
)

const (
	DefaultLevel        = 3.0
	DefaultConceptDelta = 0.03
	DefaultLLMTimeout   = 30 * time.Second

	minLLMTimeout = 30 * time.Second
	maxLLMTimeout = 45 * time.Second

	llmConfidence      = 0.85
	fallbackConfidence = 0.3
)

type Config struct {
	HistoryCap   int
	ContextLimit int
	ConceptDelta float64
	DefaultLevel float64
	// LLMTimeout bounds one completion call and is clamped to [30s, 45s].
	LLMTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.HistoryCap <= 0 {
		c.HistoryCap = memory.DefaultHistoryCap
	}
	if c.ContextLimit <= 0 {
		c.ContextLimit = memory.DefaultContextLimit
	}
	if c.ConceptDelta <= 0 {
		c.ConceptDelta = DefaultConceptDelta
	}
	if c.DefaultLevel == 0 {
		c.DefaultLevel = DefaultLevel
	}
	c.DefaultLevel = models.ClampLevel(c.DefaultLevel)

	switch {
	case c.LLMTimeout <= 0:
		c.LLMTimeout = DefaultLLMTimeout
	case c.LLMTimeout < minLLMTimeout:
		c.LLMTimeout = minLLMTimeout
	case c.LLMTimeout > maxLLMTimeout:
		c.LLMTimeout = maxLLMTimeout
	}
	return c
}

type Option func(*Engine)

func WithCompleter(c Completer) Option {
	return func(e *Engine) { e.completer = c }
}

func WithAnswerCache(c AnswerCache) Option {
	return func(e *Engine) { e.cache = c }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine runs one chat turn per request and serializes turns per user.
type Engine struct {
	store     memory.Store
	selector  *response.Selector
	estimator *knowledge.Estimator
	cfg       Config

	completer Completer
	cache     AnswerCache
	recorder  Recorder

	locks *keymutex.KeyMutex
	now   func() time.Time
	// llmTimeout is cfg.LLMTimeout unless a test shortens it.
	llmTimeout time.Duration
}

func NewEngine(store memory.Store, selector *response.Selector, estimator *knowledge.Estimator, cfg Config, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	if estimator == nil {
		estimator = knowledge.NewEstimator(nil, nil)
	}

	e := &Engine{
		store:      store,
		selector:   selector,
		estimator:  estimator,
		cfg:        cfg,
		locks:      keymutex.New(),
		now:        time.Now,
		llmTimeout: cfg.LLMTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleChat answers message and commits the turn. An empty message returns
// ErrInvalidInput without touching state. Any other failure, including a
// panic, returns ErrInternalFault with a response holding
// InternalFallbackText and the caller's session unchanged.
func (e *Engine) HandleChat(ctx context.Context, req ChatRequest) (resp *ChatResponse, err error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		metrics.ChatTotal.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidInput
	}

	userID := uuid.NewString()
	if req.Session != nil && strings.TrimSpace(req.Session.ID) != "" {
		userID = strings.TrimSpace(req.Session.ID)
	}

	unlock := e.locks.Lock(userID)
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Chat pipeline panicked",
				zap.String("user_id", userID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			resp, err = e.faultResponse(req.Session), fmt.Errorf("%w: panic: %v", ErrInternalFault, r)
		}
	}()

	resp, err = e.handle(ctx, userID, message, req.Session)
	if err != nil {
		logger.Error("Chat pipeline failed", zap.String("user_id", userID), zap.Error(err))
		return e.faultResponse(req.Session), fmt.Errorf("%w: %v", ErrInternalFault, err)
	}
	return resp, nil
}

func (e *Engine) handle(ctx context.Context, userID, message string, requested *models.UserSession) (*ChatResponse, error) {
	start := e.now()

	session, err := e.loadSession(ctx, userID, requested, start)
	if err != nil {
		return nil, err
	}

	rc, err := e.store.RelevantContext(ctx, userID, e.cfg.ContextLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to build context: %w", err)
	}

	ans := e.answer(ctx, message, session, rc)
	newLevel := e.estimator.Estimate(session, message)
	complexity, understanding := e.estimator.Breakdown(session, message)
	logger.Debug("Knowledge level estimated",
		zap.String("user_id", userID),
		zap.Stringer("complexity", complexity),
		zap.Float64("understanding", understanding),
		zap.Float64("from", session.KnowledgeLevel),
		zap.Float64("to", newLevel),
	)

	updated := session.Clone()
	updated.KnowledgeLevel = newLevel
	updated.LastInteraction = start
	updated.Interests = lo.Uniq(append(updated.Interests, ans.topicsUsed...))

	commit := models.TurnCommit{
		Session:       updated,
		UserMessage:   message,
		Reply:         ans.text,
		At:            start,
		ConceptDeltas: conceptDeltas(message, e.cfg.ConceptDelta),
	}
	if err := e.store.Commit(ctx, commit); err != nil {
		return nil, fmt.Errorf("failed to commit turn: %w", err)
	}

	turn := len(session.ConversationHistory) / 2
	updated = updated.Clone()
	updated.ConversationHistory = memory.AppendTurns(session.ConversationHistory, message, ans.text, start, e.cfg.HistoryCap)

	resp := &ChatResponse{
		Response:           ans.text,
		UpdatedSession:     updated,
		SuggestedQuestions: suggestQuestions(ans.topicsUsed, e.selector.Tier(newLevel), turn),
		TopicsUsed:         ans.topicsUsed,
		Confidence:         ans.confidence,
		Reasoning:          ans.reasoning,
		Source:             ans.source,
	}

	e.afterCommit(ctx, userID, message, resp, e.now().Sub(start))
	return resp, nil
}

// afterCommit reports a committed turn. The turn is already durable, so a
// failure here is logged and never turns the request into a fault.
func (e *Engine) afterCommit(ctx context.Context, userID, message string, resp *ChatResponse, elapsed time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Post-commit reporting panicked",
				zap.String("user_id", userID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()

	e.observe(resp, elapsed)
	e.record(ctx, userID, message, resp, elapsed)

	logger.Info("Chat answered",
		zap.String("user_id", userID),
		zap.String("source", string(resp.Source)),
		zap.Strings("topics", resp.TopicsUsed),
		zap.Float64("knowledge_level", resp.UpdatedSession.KnowledgeLevel),
		zap.Duration("latency", elapsed),
	)
}

// loadSession prefers the stored record. Otherwise it adopts the caller's
// session, clamped and truncated, or synthesizes a fresh one.
func (e *Engine) loadSession(ctx context.Context, userID string, requested *models.UserSession, now time.Time) (*models.UserSession, error) {
	stored, err := e.store.GetSession(ctx, userID)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, memory.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if requested == nil {
		return e.newSession(userID, e.cfg.DefaultLevel, nil, now), nil
	}

	s := requested.Clone()
	s.ID = userID
	if s.KnowledgeLevel == 0 {
		s.KnowledgeLevel = e.cfg.DefaultLevel
	}
	s.KnowledgeLevel = models.ClampLevel(s.KnowledgeLevel)
	s.ConversationHistory = models.TruncateHistory(s.ConversationHistory, e.cfg.HistoryCap)
	if s.ConversationHistory == nil {
		s.ConversationHistory = []models.ConversationTurn{}
	}
	if s.Interests == nil {
		s.Interests = []string{}
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	return s, nil
}

func (e *Engine) newSession(id string, level float64, interests []string, now time.Time) *models.UserSession {
	if interests == nil {
		interests = []string{}
	}
	return &models.UserSession{
		ID:                  id,
		KnowledgeLevel:      models.ClampLevel(level),
		Interests:           interests,
		ConversationHistory: []models.ConversationTurn{},
		CreatedAt:           now,
		LastInteraction:     now,
	}
}

type reply struct {
	text       string
	topicsUsed []string
	confidence float64
	reasoning  []string
	source     Source
}

// answer renders the catalog selection and, when a completer is set,
// replaces the text with a completion. Completion failures keep the catalog
// answer.
func (e *Engine) answer(ctx context.Context, message string, session *models.UserSession, rc models.RelevantContext) reply {
	sel := e.selector.Select(message, session.KnowledgeLevel)

	out := reply{
		text:       sel.Text,
		topicsUsed: sel.TopicsUsed,
		reasoning:  sel.Reasoning,
		source:     SourceCatalog,
		confidence: 0.6 + 0.1*float64(min(len(sel.TopicsUsed), 3)),
	}
	if !sel.Matched() {
		out.source = SourceFallback
		out.confidence = fallbackConfidence
	}

	if e.completer == nil {
		return out
	}

	prompt := llm.BuildTutorPrompt(llm.TutorContext{
		KnowledgeLevel:     session.KnowledgeLevel,
		Interests:          session.Interests,
		RecentUserMessages: rc.RecentUserMessages,
		StrongConcepts:     rc.StrongConcepts,
		CandidateTopics:    sel.TopicsUsed,
	})
	tier := e.selector.Tier(session.KnowledgeLevel)
	key := rediscache.AnswerKey(tier.String(), prompt, message)

	if text, ok := e.cachedAnswer(ctx, key); ok {
		out.text = text
		out.source = SourceCache
		out.confidence = llmConfidence
		out.reasoning = append(out.reasoning, "answer served from cache")
		return out
	}

	completion, err := e.complete(ctx, prompt, message)
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.LLMFallbacks.WithLabelValues(reason).Inc()
		logger.Warn("LLM unavailable, using topic catalog", zap.String("reason", reason), zap.Error(err))
		out.reasoning = append(out.reasoning, "completion unavailable ("+reason+"), answered from catalog")
		return out
	}

	e.storeAnswer(ctx, key, completion)

	out.text = completion.Content
	out.source = SourceLLM
	out.confidence = llmConfidence
	out.reasoning = append(out.reasoning, "answer generated by completion service")
	return out
}

func (e *Engine) complete(ctx context.Context, prompt, message string) (*llm.CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, e.llmTimeout)
	defer cancel()

	resp, err := e.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: prompt,
		UserPrompt:   message,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, llm.ErrEmptyCompletion
	}

	metrics.LLMTokensUsed.WithLabelValues(resp.Model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(resp.Model, "completion").Add(float64(resp.Usage.CompletionTokens))
	return resp, nil
}

func (e *Engine) cachedAnswer(ctx context.Context, key string) (string, bool) {
	if e.cache == nil {
		return "", false
	}

	cached, ok, err := e.cache.GetAnswer(ctx, key)
	if err != nil {
		logger.Warn("Answer cache read failed", zap.Error(err))
		return "", false
	}
	if !ok || cached == nil || cached.Text == "" {
		metrics.CacheMisses.WithLabelValues("answer").Inc()
		return "", false
	}

	metrics.CacheHits.WithLabelValues("answer").Inc()
	return cached.Text, true
}

func (e *Engine) storeAnswer(ctx context.Context, key string, completion *llm.CompletionResponse) {
	if e.cache == nil {
		return
	}
	answer := &rediscache.CachedAnswer{
		Text:      completion.Content,
		Model:     completion.Model,
		CreatedAt: e.now(),
	}
	if err := e.cache.SetAnswer(ctx, key, answer); err != nil {
		logger.Warn("Answer cache write failed", zap.Error(err))
	}
}

func (e *Engine) faultResponse(session *models.UserSession) *ChatResponse {
	metrics.ChatTotal.WithLabelValues("error").Inc()
	return &ChatResponse{
		Response:           InternalFallbackText,
		UpdatedSession:     session.Clone(),
		SuggestedQuestions: []string{},
		TopicsUsed:         []string{},
		Confidence:         0,
		Reasoning:          []string{"internal fault"},
		Source:             SourceError,
	}
}

func (e *Engine) observe(resp *ChatResponse, elapsed time.Duration) {
	metrics.ChatTotal.WithLabelValues("success").Inc()
	metrics.ChatDuration.WithLabelValues(string(resp.Source)).Observe(elapsed.Seconds())
	metrics.AnswerSource.WithLabelValues(string(resp.Source)).Inc()
	metrics.KnowledgeLevel.Observe(resp.UpdatedSession.KnowledgeLevel)
	metrics.ConfidenceScore.Observe(resp.Confidence)
	for _, id := range resp.TopicsUsed {
		metrics.TopicMatches.WithLabelValues(id).Inc()
	}
}

func (e *Engine) record(ctx context.Context, userID, message string, resp *ChatResponse, elapsed time.Duration) {
	if e.recorder == nil {
		return
	}

	err := e.recorder.InsertChatRecord(ctx, &models.ChatRecord{
		UserID:         userID,
		Message:        message,
		Response:       resp.Response,
		Source:         string(resp.Source),
		TopicsUsed:     resp.TopicsUsed,
		Confidence:     resp.Confidence,
		KnowledgeLevel: resp.UpdatedSession.KnowledgeLevel,
		LatencyMS:      int(elapsed.Milliseconds()),
		CreatedAt:      e.now(),
	})
	if err != nil {
		logger.Warn("Failed to record chat", zap.String("user_id", userID), zap.Error(err))
	}
}
