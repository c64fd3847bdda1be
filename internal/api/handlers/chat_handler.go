package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/genetics-tutor/backend/internal/middleware/validation"
	"github.com/genetics-tutor/backend/internal/storage/models"
	"github.com/genetics-tutor/backend/internal/tutor"
	"github.com/genetics-tutor/backend/pkg/logger"
)

type ChatHandler struct {
	engine *tutor.Engine
}

func NewChatHandler(engine *tutor.Engine) *ChatHandler {
	return &ChatHandler{engine: engine}
}

var (
	errMessageMissing   = errors.New("message is required")
	errMessageNotString = errors.New("message must be a string")
	errSessionInvalid   = errors.New("userSession is invalid")
)

// parseChatRequest decodes {message, userSession}. A message that is
// present but not a JSON string is rejected here rather than coerced.
func parseChatRequest(body []byte) (tutor.ChatRequest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return tutor.ChatRequest{}, errors.New("invalid request body")
	}

	msgRaw, ok := raw["message"]
	if !ok || string(msgRaw) == "null" {
		return tutor.ChatRequest{}, errMessageMissing
	}

	var message string
	if err := json.Unmarshal(msgRaw, &message); err != nil {
		return tutor.ChatRequest{}, errMessageNotString
	}

	var session *models.UserSession
	if s, ok := raw["userSession"]; ok && string(s) != "null" {
		if err := json.Unmarshal(s, &session); err != nil {
			return tutor.ChatRequest{}, errSessionInvalid
		}
	}

	return tutor.ChatRequest{
		Message: validation.SanitizeMessage(message),
		Session: session,
	}, nil
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	req, err := parseChatRequest(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	resp, err := h.engine.HandleChat(c.UserContext(), req)
	switch {
	case errors.Is(err, tutor.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message must be a non-empty string",
		})
	case err != nil:
		logger.Error("Failed to process chat", zap.Error(err))
		fallback := tutor.InternalFallbackText
		if resp != nil && resp.Response != "" {
			fallback = resp.Response
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":    "Failed to process message",
			"response": fallback,
		})
	}

	return c.JSON(resp)
}
