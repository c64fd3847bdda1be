package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIComplete(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-test",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Helicase unwinds DNA."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`))
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "gpt-test", Timeout: 5 * time.Second})

	resp, err := c.Complete(context.Background(), CompletionRequest{SystemPrompt: "system", UserPrompt: "what is helicase"})
	require.NoError(t, err)

	assert.Equal(t, "Helicase unwinds DNA.", resp.Content)
	assert.Equal(t, 16, resp.Usage.TotalTokens)
	assert.Equal(t, "gpt-test", gotBody["model"])

	messages, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAIClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad request", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "k", BaseURL: srv.URL + "/v1", Timeout: 5 * time.Second})

	_, err := c.Complete(context.Background(), CompletionRequest{UserPrompt: "x"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "choices": []}`))
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "k", BaseURL: srv.URL + "/v1", Timeout: 5 * time.Second})

	_, err := c.Complete(context.Background(), CompletionRequest{UserPrompt: "x"})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestAnthropicComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body["model"])
		assert.NotEmpty(t, body["system"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "Ribosomes read codons."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient(Options{APIKey: "k", BaseURL: srv.URL, Model: "claude-test", Timeout: 5 * time.Second})

	resp, err := c.Complete(context.Background(), CompletionRequest{SystemPrompt: "system", UserPrompt: "what does a ribosome do"})
	require.NoError(t, err)

	assert.Equal(t, "Ribosomes read codons.", resp.Content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestBuildTutorPromptTailorsToLevel(t *testing.T) {
	beginner := BuildTutorPrompt(TutorContext{KnowledgeLevel: 1.5})
	assert.Contains(t, beginner, "plain language")

	expert := BuildTutorPrompt(TutorContext{
		KnowledgeLevel:     4.5,
		StrongConcepts:     []string{"transcription"},
		RecentUserMessages: []string{"what is a promoter"},
	})
	assert.Contains(t, expert, "molecular mechanisms")
	assert.Contains(t, expert, "comfortable with: transcription")
	assert.Contains(t, expert, "- what is a promoter")
}
