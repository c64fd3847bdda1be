package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/genetics-tutor/backend/internal/metrics"
	"github.com/genetics-tutor/backend/internal/tutor"
	"github.com/genetics-tutor/backend/pkg/logger"
)

type WebSocketHandler struct {
	engine *tutor.Engine
}

func NewWebSocketHandler(engine *tutor.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
	}
}

// HandleConnection serves {"type":"chat","message":...,"userSession":...}
// frames. Each answer is streamed as word chunks followed by a complete
// frame carrying the full chat payload. Frames are read on their own
// goroutine so a client that disconnects mid-answer cancels the answer.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	metrics.ActiveWebsockets.Inc()
	logger.Info("WebSocket connection established")

	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan []byte)
	go readFrames(ctx, cancel, c, frames)

	defer func() {
		cancel()
		c.Close()
		// The conn is recycled once this handler returns.
		for range frames {
		}
		metrics.ActiveWebsockets.Dec()
		logger.Info("WebSocket connection closed")
	}()

	for data := range frames {
		var frame struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			h.sendError(c, "invalid frame", "")
			continue
		}
		if frame.Type != "chat" {
			continue
		}

		req, err := parseChatRequest(data)
		if err != nil {
			h.sendError(c, err.Error(), "")
			continue
		}

		if err := h.streamResponse(ctx, c, req); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Failed to stream response", zap.Error(err))
			}
			break
		}
	}
}

// readFrames forwards text frames until the read fails or ctx ends, then
// cancels ctx and closes out.
func readFrames(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, out chan<- []byte) {
	defer close(out)
	defer cancel()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}

		select {
		case out <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (h *WebSocketHandler) streamResponse(ctx context.Context, c *websocket.Conn, req tutor.ChatRequest) error {
	if err := h.sendChunk(c, "status", "Thinking..."); err != nil {
		return err
	}

	resp, err := h.engine.HandleChat(ctx, req)
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, tutor.ErrInvalidInput):
		h.sendError(c, "message must be a non-empty string", "")
		return nil
	case err != nil:
		logger.Error("Failed to process chat", zap.Error(err))
		fallback := tutor.InternalFallbackText
		if resp != nil && resp.Response != "" {
			fallback = resp.Response
		}
		h.sendError(c, "Failed to process message", fallback)
		return nil
	}

	words := splitIntoWords(resp.Response)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 && word != "\n" && words[i+1] != "\n" {
			chunk += " "
		}

		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return h.sendComplete(c, resp)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	msg := map[string]interface{}{
		"type":    msgType,
		"content": content,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, resp *tutor.ChatResponse) error {
	msg := map[string]interface{}{
		"type":    "complete",
		"payload": resp,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg, fallback string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}
	if fallback != "" {
		msg["response"] = fallback
	}

	if err := c.WriteJSON(msg); err != nil {
		logger.Warn("Failed to send WebSocket error", zap.Error(err))
	}
}

// splitIntoWords splits on spaces and keeps each newline as its own token
// so paragraph breaks survive streaming.
func splitIntoWords(text string) []string {
	words := []string{}
	current := []rune{}

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if len(current) > 0 {
				words = append(words, string(current))
				current = current[:0]
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			current = append(current, char)
		}
	}

	if len(current) > 0 {
		words = append(words, string(current))
	}

	return words
}
