package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genetics-tutor/backend/internal/api/handlers"
	"github.com/genetics-tutor/backend/internal/catalog"
	"github.com/genetics-tutor/backend/internal/llm"
	"github.com/genetics-tutor/backend/internal/memory"
	"github.com/genetics-tutor/backend/internal/middleware/ratelimit"
	"github.com/genetics-tutor/backend/internal/response"
	"github.com/genetics-tutor/backend/internal/storage/models"
	"github.com/genetics-tutor/backend/internal/storage/sqlite"
	"github.com/genetics-tutor/backend/internal/tutor"
)

type panickingStore struct {
	*memory.InMemoryStore
}

func (p *panickingStore) Commit(context.Context, models.TurnCommit) error {
	panic("storage exploded")
}

func newTestDeps(store memory.Store) Deps {
	cat := catalog.Default()
	engine := tutor.NewEngine(
		store,
		response.NewSelector(cat, response.Options{}),
		nil,
		tutor.Config{},
	)
	return Deps{
		Engine:           engine,
		Catalog:          cat,
		MaxMessageLength: 2000,
		AllowedOrigins:   []string{"*"},
		Development:      true,
	}
}

func doJSON(t *testing.T, deps Deps, method, path, body string) (int, map[string]interface{}) {
	t.Helper()

	app := NewApp(deps)
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestChatAnswersFromCatalog(t *testing.T) {
	deps := newTestDeps(memory.NewInMemoryStore(memory.DefaultHistoryCap))

	status, body := doJSON(t, deps, http.MethodPost, "/api/chat", `{"message": "What is DNA structure?"}`)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "catalog", body["source"])
	assert.Equal(t, []interface{}{"dna_structure"}, body["topicsUsed"])
	assert.Contains(t, body["response"], "double helix")
	assert.Len(t, body["suggestedQuestions"], 2)

	session, ok := body["updatedSession"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, session["id"])
	assert.Len(t, session["conversationHistory"], 2)
}

func TestChatRejectsBadMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing", `{"userSession": null}`},
		{"number", `{"message": 42}`},
		{"object", `{"message": {"text": "hi"}}`},
		{"null", `{"message": null}`},
		{"whitespace", `{"message": "   "}`},
		{"bad session", `{"message": "hi", "userSession": "nope"}`},
		{"not json", `message=hi`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps(memory.NewInMemoryStore(memory.DefaultHistoryCap))
			status, body := doJSON(t, deps, http.MethodPost, "/api/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.NotEmpty(t, body["error"])
			assert.NotContains(t, body, "response")
		})
	}
}

func TestChatInternalFaultReturnsFallback(t *testing.T) {
	deps := newTestDeps(&panickingStore{memory.NewInMemoryStore(memory.DefaultHistoryCap)})

	status, body := doJSON(t, deps, http.MethodPost, "/api/chat", `{"message": "What is DNA structure?"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotEmpty(t, body["error"])
	assert.Equal(t, tutor.InternalFallbackText, body["response"])
}

func TestChatContinuesSuppliedSession(t *testing.T) {
	deps := newTestDeps(memory.NewInMemoryStore(memory.DefaultHistoryCap))

	status, _ := doJSON(t, deps, http.MethodPost, "/api/chat",
		`{"message": "Tell me about codons", "userSession": {"id": "s1", "knowledgeLevel": 2, "interests": ["biology"], "conversationHistory": []}}`)
	require.Equal(t, http.StatusOK, status)

	status, body := doJSON(t, deps, http.MethodGet, "/api/session/s1", "")
	require.Equal(t, http.StatusOK, status)

	session := body["session"].(map[string]interface{})
	assert.Equal(t, "s1", session["id"])
	assert.Len(t, session["conversationHistory"], 2)
	assert.Contains(t, session["interests"], "biology")
}

func TestSessionLifecycle(t *testing.T) {
	deps := newTestDeps(memory.NewInMemoryStore(memory.DefaultHistoryCap))

	status, body := doJSON(t, deps, http.MethodPost, "/api/session", `{"id": "learner", "knowledgeLevel": 4, "interests": ["crispr"]}`)
	require.Equal(t, http.StatusCreated, status)
	assert.InDelta(t, 4.0, body["session"].(map[string]interface{})["knowledgeLevel"], 1e-9)

	status, _ = doJSON(t, deps, http.MethodPost, "/api/chat",
		`{"message": "How does a ribosome read mRNA?", "userSession": {"id": "learner"}}`)
	require.Equal(t, http.StatusOK, status)

	status, body = doJSON(t, deps, http.MethodGet, "/api/session/learner/context?limit=3", "")
	require.Equal(t, http.StatusOK, status)
	ctx := body["context"].(map[string]interface{})
	assert.Equal(t, []interface{}{"How does a ribosome read mRNA?"}, ctx["recentUserMessages"])

	status, body = doJSON(t, deps, http.MethodDelete, "/api/session/learner", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["session"].(map[string]interface{})["conversationHistory"])

	status, body = doJSON(t, deps, http.MethodGet, "/api/session/learner", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["concepts"])
}

func TestSessionNotFound(t *testing.T) {
	deps := newTestDeps(memory.NewInMemoryStore(memory.DefaultHistoryCap))

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/session/ghost"},
		{http.MethodDelete, "/api/session/ghost"},
		{http.MethodGet, "/api/session/ghost/context"},
	} {
		status, body := doJSON(t, deps, tc.method, tc.path, "")
		assert.Equal(t, http.StatusNotFound, status, tc.path)
		assert.Equal(t, "Session not found", body["error"])
	}
}

func TestTopics(t *testing.T) {
	deps := newTestDeps(memory.NewInMemoryStore(memory.DefaultHistoryCap))

	status, body := doJSON(t, deps, http.MethodGet, "/api/topics", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, deps.Catalog.Len(), body["count"])

	status, body = doJSON(t, deps, http.MethodGet, "/api/topics?q=replicaton", "")
	require.Equal(t, http.StatusOK, status)
	topics := body["topics"].([]interface{})
	require.NotEmpty(t, topics)
	assert.Equal(t, "dna_replication", topics[0].(map[string]interface{})["id"])

	status, body = doJSON(t, deps, http.MethodGet, "/api/topics/gene_editing", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "gene_editing", body["id"])

	status, _ = doJSON(t, deps, http.MethodGet, "/api/topics/alchemy", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthAndReady(t *testing.T) {
	deps := newTestDeps(memory.NewInMemoryStore(memory.DefaultHistoryCap))

	status, body := doJSON(t, deps, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, _ = doJSON(t, deps, http.MethodGet, "/api/ready", "")
	assert.Equal(t, http.StatusOK, status)

	deps.ReadyChecks = map[string]handlers.ReadyCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}
	status, body = doJSON(t, deps, http.MethodGet, "/api/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body["failed"], "redis")
}

func TestRateLimitApplies(t *testing.T) {
	deps := newTestDeps(memory.NewInMemoryStore(memory.DefaultHistoryCap))
	deps.RateLimiter = ratelimit.New(ratelimit.Config{MaxRequestsPerMinute: 1, WindowDuration: time.Minute})
	t.Cleanup(deps.RateLimiter.Stop)

	app := NewApp(deps)
	send := func() *http.Response {
		req := httptest.NewRequest(http.MethodGet, "/api/topics", nil)
		req.Header.Set(ratelimit.UserHeader, "busy")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	assert.Equal(t, http.StatusOK, send().StatusCode)
	resp := send()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
}

func TestWebSocketRouteRequiresUpgrade(t *testing.T) {
	app := NewApp(newTestDeps(memory.NewInMemoryStore(memory.DefaultHistoryCap)))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ws/chat", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestChatRecordsFromSQLite(t *testing.T) {
	client, err := sqlite.NewClient(filepath.Join(t.TempDir(), "tutor.db"), memory.DefaultHistoryCap)
	require.NoError(t, err)
	require.NoError(t, client.InitSchema())
	t.Cleanup(func() { client.Close() })

	cat := catalog.Default()
	deps := Deps{
		Engine: tutor.NewEngine(
			client,
			response.NewSelector(cat, response.Options{}),
			nil,
			tutor.Config{},
			tutor.WithRecorder(client),
		),
		Catalog:        cat,
		AllowedOrigins: []string{"*"},
		ReadyChecks:    map[string]handlers.ReadyCheck{"sqlite": client.Ping},
	}

	status, _ := doJSON(t, deps, http.MethodPost, "/api/chat",
		`{"message": "What is a point mutation?", "userSession": {"id": "rec"}}`)
	require.Equal(t, http.StatusOK, status)

	status, body := doJSON(t, deps, http.MethodGet, "/api/session/rec/records", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])
	record := body["records"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "What is a point mutation?", record["message"])
	assert.Equal(t, []interface{}{"mutations"}, record["topicsUsed"])

	status, _ = doJSON(t, deps, http.MethodGet, "/api/ready", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestChatRecordsWithoutRecorder(t *testing.T) {
	deps := newTestDeps(memory.NewInMemoryStore(memory.DefaultHistoryCap))

	status, body := doJSON(t, deps, http.MethodGet, "/api/session/any/records", "")
	assert.Equal(t, http.StatusNotImplemented, status)
	assert.NotEmpty(t, body["error"])
}

func TestChatTrailingSlashIsStillScreened(t *testing.T) {
	deps := newTestDeps(memory.NewInMemoryStore(memory.DefaultHistoryCap))

	for _, path := range []string{"/api/chat", "/api/chat/"} {
		status, body := doJSON(t, deps, http.MethodPost, path, `{"message": "<script>alert(1)</script>"}`)
		assert.Equal(t, http.StatusBadRequest, status, path)
		assert.Equal(t, "Invalid message content", body["error"], path)

		long := `{"message": "` + strings.Repeat("a", 4200) + `"}`
		status, body = doJSON(t, deps, http.MethodPost, path, long)
		assert.Equal(t, http.StatusBadRequest, status, path)
		assert.Equal(t, "Message exceeds maximum length", body["error"], path)
	}
}

type blockingCompleter struct {
	started   chan struct{}
	cancelled chan struct{}
}

func (b *blockingCompleter) Complete(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	close(b.started)
	<-ctx.Done()
	close(b.cancelled)
	return nil, ctx.Err()
}

func TestWebSocketDisconnectCancelsAnswer(t *testing.T) {
	completer := &blockingCompleter{started: make(chan struct{}), cancelled: make(chan struct{})}
	deps := newTestDeps(memory.NewInMemoryStore(memory.DefaultHistoryCap))
	deps.Engine = tutor.NewEngine(
		memory.NewInMemoryStore(memory.DefaultHistoryCap),
		response.NewSelector(deps.Catalog, response.Options{}),
		nil,
		tutor.Config{},
		tutor.WithCompleter(completer),
	)

	app := NewApp(deps)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	defer app.Shutdown()

	conn, _, err := fastws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/chat", nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "chat", "message": "What is DNA structure?"}))
	var status map[string]interface{}
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, "status", status["type"])

	select {
	case <-completer.started:
	case <-time.After(5 * time.Second):
		t.Fatal("completion never started")
	}

	require.NoError(t, conn.Close())

	// The completion timeout is 30s, so only the disconnect can end it this soon.
	select {
	case <-completer.cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("answer kept running after the client went away")
	}
}
