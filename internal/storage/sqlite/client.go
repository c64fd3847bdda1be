package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/genetics-tutor/backend/internal/memory"
	"github.com/genetics-tutor/backend/internal/storage/models"
	"github.com/genetics-tutor/backend/pkg/logger"
)

// Client is the durable memory store. Sessions, turns and concept scores
// survive restarts.
type Client struct {
	db         *sql.DB
	historyCap int
	now        func() time.Time
}

func NewClient(dbPath string, historyCap int) (*Client, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer keeps transactions from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if historyCap <= 0 {
		historyCap = memory.DefaultHistoryCap
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath), zap.Int("history_cap", historyCap))

	return &Client{db: db, historyCap: historyCap, now: time.Now}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		knowledge_level REAL NOT NULL,
		interests TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		last_interaction INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversation_turns (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_user_seq ON conversation_turns(user_id, seq);

	CREATE TABLE IF NOT EXISTS concept_confidence (
		user_id TEXT NOT NULL,
		concept_id TEXT NOT NULL,
		confidence REAL NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, concept_id)
	);

	CREATE TABLE IF NOT EXISTS chat_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		message TEXT NOT NULL,
		response TEXT NOT NULL,
		source TEXT NOT NULL,
		topics_used TEXT NOT NULL DEFAULT '[]',
		confidence REAL,
		knowledge_level REAL,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_records_user ON chat_records(user_id);
	CREATE INDEX IF NOT EXISTS idx_chat_records_created ON chat_records(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (c *Client) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (c *Client) StoreTurn(ctx context.Context, userID, userMessage, assistantMessage string, at time.Time) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		return c.appendTurns(ctx, tx, userID, at,
			models.ConversationTurn{Role: models.RoleUser, Content: userMessage},
			models.ConversationTurn{Role: models.RoleAssistant, Content: assistantMessage},
		)
	})
}

func (c *Client) appendTurns(ctx context.Context, q execer, userID string, at time.Time, turns ...models.ConversationTurn) error {
	var maxSeq sql.NullInt64
	err := q.QueryRowContext(ctx, `SELECT MAX(seq) FROM conversation_turns WHERE user_id = ?`, userID).Scan(&maxSeq)
	if err != nil {
		return fmt.Errorf("failed to read turn sequence: %w", err)
	}

	seq := maxSeq.Int64
	for _, turn := range turns {
		seq++
		ts := turn.Timestamp
		if ts.IsZero() {
			ts = at
		}
		_, err := q.ExecContext(ctx,
			`INSERT INTO conversation_turns (id, user_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			ulid.Make().String(), userID, seq, string(turn.Role), turn.Content, ts.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert turn: %w", err)
		}
	}

	_, err = q.ExecContext(ctx,
		`DELETE FROM conversation_turns WHERE user_id = ? AND seq <= ?`,
		userID, seq-int64(c.historyCap),
	)
	if err != nil {
		return fmt.Errorf("failed to evict old turns: %w", err)
	}

	return nil
}

func (c *Client) ReinforceConcept(ctx context.Context, userID, conceptID string, delta float64) (float64, error) {
	var confidence float64
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		confidence, err = c.reinforce(ctx, tx, userID, conceptID, delta)
		return err
	})
	return confidence, err
}

func (c *Client) reinforce(ctx context.Context, q execer, userID, conceptID string, delta float64) (float64, error) {
	var previous float64
	err := q.QueryRowContext(ctx,
		`SELECT confidence FROM concept_confidence WHERE user_id = ? AND concept_id = ?`,
		userID, conceptID,
	).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to read concept confidence: %w", err)
	}

	next := memory.Reinforce(previous, delta)

	_, err = q.ExecContext(ctx, `
		INSERT INTO concept_confidence (user_id, concept_id, confidence, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, concept_id) DO UPDATE SET
			confidence = excluded.confidence,
			updated_at = excluded.updated_at
	`, userID, conceptID, next, c.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to write concept confidence: %w", err)
	}

	return next, nil
}

func (c *Client) RelevantContext(ctx context.Context, userID string, limit int) (models.RelevantContext, error) {
	history, err := c.History(ctx, userID)
	if err != nil {
		return models.RelevantContext{}, err
	}

	concepts, err := c.Concepts(ctx, userID)
	if err != nil {
		return models.RelevantContext{}, err
	}

	return memory.BuildContext(history, concepts, limit), nil
}

func (c *Client) History(ctx context.Context, userID string) ([]models.ConversationTurn, error) {
	return c.history(ctx, c.db, userID)
}

func (c *Client) history(ctx context.Context, q execer, userID string) ([]models.ConversationTurn, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, role, content, created_at
		FROM conversation_turns
		WHERE user_id = ?
		ORDER BY seq ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	turns := []models.ConversationTurn{}
	for rows.Next() {
		var (
			turn      models.ConversationTurn
			role      string
			createdAt int64
		)
		if err := rows.Scan(&turn.ID, &role, &turn.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.Role = models.Role(role)
		turn.Timestamp = time.UnixMilli(createdAt)
		turns = append(turns, turn)
	}

	return turns, rows.Err()
}

func (c *Client) Concepts(ctx context.Context, userID string) (map[string]float64, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT concept_id, confidence FROM concept_confidence WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get concepts: %w", err)
	}
	defer rows.Close()

	concepts := make(map[string]float64)
	for rows.Next() {
		var (
			id         string
			confidence float64
		)
		if err := rows.Scan(&id, &confidence); err != nil {
			return nil, fmt.Errorf("failed to scan concept: %w", err)
		}
		concepts[id] = confidence
	}

	return concepts, rows.Err()
}

func (c *Client) GetSession(ctx context.Context, id string) (*models.UserSession, error) {
	var (
		sess            models.UserSession
		interestsJSON   string
		createdAt       int64
		lastInteraction int64
	)

	err := c.db.QueryRowContext(ctx, `
		SELECT id, knowledge_level, interests, created_at, last_interaction
		FROM sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.KnowledgeLevel, &interestsJSON, &createdAt, &lastInteraction)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memory.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if err := json.Unmarshal([]byte(interestsJSON), &sess.Interests); err != nil {
		return nil, fmt.Errorf("failed to decode interests: %w", err)
	}
	sess.CreatedAt = time.UnixMilli(createdAt)
	sess.LastInteraction = time.UnixMilli(lastInteraction)

	sess.ConversationHistory, err = c.History(ctx, id)
	if err != nil {
		return nil, err
	}

	return &sess, nil
}

func (c *Client) SaveSession(ctx context.Context, session *models.UserSession) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		return c.saveSession(ctx, tx, session, session.ConversationHistory)
	})
}

func (c *Client) saveSession(ctx context.Context, tx *sql.Tx, session *models.UserSession, history []models.ConversationTurn) error {
	interests := session.Interests
	if interests == nil {
		interests = []string{}
	}
	interestsJSON, err := json.Marshal(interests)
	if err != nil {
		return fmt.Errorf("failed to encode interests: %w", err)
	}

	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = c.now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, knowledge_level, interests, created_at, last_interaction)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			knowledge_level = excluded.knowledge_level,
			interests = excluded.interests,
			last_interaction = excluded.last_interaction
	`, session.ID, models.ClampLevel(session.KnowledgeLevel), string(interestsJSON),
		createdAt.UnixMilli(), session.LastInteraction.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_turns WHERE user_id = ?`, session.ID); err != nil {
		return fmt.Errorf("failed to reset history: %w", err)
	}

	history = models.TruncateHistory(history, c.historyCap)
	if len(history) == 0 {
		return nil
	}
	return c.appendTurns(ctx, tx, session.ID, c.now(), history...)
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return memory.ErrSessionNotFound
		}

		for _, stmt := range []string{
			`DELETE FROM conversation_turns WHERE user_id = ?`,
			`DELETE FROM concept_confidence WHERE user_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("failed to delete session data: %w", err)
			}
		}
		return nil
	})
}

func (c *Client) Commit(ctx context.Context, commit models.TurnCommit) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		if err := c.saveSession(ctx, tx, commit.Session, commit.Session.ConversationHistory); err != nil {
			return err
		}

		err := c.appendTurns(ctx, tx, commit.Session.ID, commit.At,
			models.ConversationTurn{Role: models.RoleUser, Content: commit.UserMessage},
			models.ConversationTurn{Role: models.RoleAssistant, Content: commit.Reply},
		)
		if err != nil {
			return err
		}

		for concept, delta := range commit.ConceptDeltas {
			if _, err := c.reinforce(ctx, tx, commit.Session.ID, concept, delta); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Client) InsertChatRecord(ctx context.Context, record *models.ChatRecord) error {
	topics := record.TopicsUsed
	if topics == nil {
		topics = []string{}
	}
	topicsJSON, err := json.Marshal(topics)
	if err != nil {
		return fmt.Errorf("failed to encode topics: %w", err)
	}

	if record.ID == "" {
		record.ID = ulid.Make().String()
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO chat_records (id, user_id, message, response, source, topics_used,
			confidence, knowledge_level, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.UserID, record.Message, record.Response, record.Source, string(topicsJSON),
		record.Confidence, record.KnowledgeLevel, record.LatencyMS, record.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert chat record: %w", err)
	}

	logger.Debug("Chat recorded",
		zap.String("record_id", record.ID),
		zap.String("user_id", record.UserID),
		zap.String("source", record.Source),
	)
	return nil
}

func (c *Client) GetChatRecords(ctx context.Context, userID string, limit int) ([]models.ChatRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, user_id, message, response, source, topics_used, confidence,
			knowledge_level, latency_ms, created_at
		FROM chat_records
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat records: %w", err)
	}
	defer rows.Close()

	var records []models.ChatRecord
	for rows.Next() {
		var (
			r          models.ChatRecord
			topicsJSON string
			createdAt  int64
		)
		err := rows.Scan(&r.ID, &r.UserID, &r.Message, &r.Response, &r.Source, &topicsJSON,
			&r.Confidence, &r.KnowledgeLevel, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat record: %w", err)
		}
		if err := json.Unmarshal([]byte(topicsJSON), &r.TopicsUsed); err != nil {
			return nil, fmt.Errorf("failed to decode topics: %w", err)
		}
		r.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, r)
	}

	return records, rows.Err()
}
