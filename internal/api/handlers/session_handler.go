package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/genetics-tutor/backend/internal/memory"
	"github.com/genetics-tutor/backend/internal/tutor"
	"github.com/genetics-tutor/backend/pkg/logger"
)

type SessionHandler struct {
	engine *tutor.Engine
}

func NewSessionHandler(engine *tutor.Engine) *SessionHandler {
	return &SessionHandler{engine: engine}
}

func (h *SessionHandler) StartSession(c *fiber.Ctx) error {
	var req struct {
		ID             string   `json:"id"`
		KnowledgeLevel float64  `json:"knowledgeLevel"`
		Interests      []string `json:"interests"`
	}

	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	session, err := h.engine.StartSession(c.UserContext(), tutor.StartRequest{
		ID:             req.ID,
		KnowledgeLevel: req.KnowledgeLevel,
		Interests:      req.Interests,
	})
	if err != nil {
		logger.Error("Failed to start session", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to start session",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session": session,
	})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	progress, err := h.engine.Progress(c.UserContext(), c.Params("id"), 0)
	if err != nil {
		return sessionError(c, err)
	}

	return c.JSON(fiber.Map{
		"session":  progress.Session,
		"concepts": progress.Concepts,
	})
}

func (h *SessionHandler) ResetSession(c *fiber.Ctx) error {
	session, err := h.engine.ResetSession(c.UserContext(), c.Params("id"))
	if err != nil {
		return sessionError(c, err)
	}

	return c.JSON(fiber.Map{
		"session": session,
	})
}

func (h *SessionHandler) GetContext(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be positive",
		})
	}

	progress, err := h.engine.Progress(c.UserContext(), c.Params("id"), limit)
	if err != nil {
		return sessionError(c, err)
	}

	return c.JSON(fiber.Map{
		"context": progress.Context,
	})
}

func (h *SessionHandler) GetRecords(c *fiber.Ctx) error {
	records, err := h.engine.ChatRecords(c.UserContext(), c.Params("id"), c.QueryInt("limit", 20))
	if errors.Is(err, tutor.ErrRecordsUnavailable) {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "Chat records require the sqlite store",
		})
	}
	if err != nil {
		return sessionError(c, err)
	}

	return c.JSON(fiber.Map{
		"records": records,
		"count":   len(records),
	})
}

func sessionError(c *fiber.Ctx, err error) error {
	if errors.Is(err, memory.ErrSessionNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	logger.Error("Session request failed", zap.String("id", c.Params("id")), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to load session",
	})
}
