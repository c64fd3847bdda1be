package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/genetics-tutor/backend/internal/catalog"
)

type TopicHandler struct {
	catalog *catalog.Catalog
}

func NewTopicHandler(c *catalog.Catalog) *TopicHandler {
	return &TopicHandler{catalog: c}
}

// ListTopics returns the whole catalog, or fuzzy matches when q is set.
func (h *TopicHandler) ListTopics(c *fiber.Ctx) error {
	var topics []catalog.Topic
	if q := c.Query("q"); q != "" {
		topics = h.catalog.Search(q, c.QueryInt("limit", 5))
	} else {
		topics = h.catalog.Topics()
	}
	if topics == nil {
		topics = []catalog.Topic{}
	}

	return c.JSON(fiber.Map{
		"topics": topics,
		"count":  len(topics),
	})
}

func (h *TopicHandler) GetTopic(c *fiber.Ctx) error {
	topic, ok := h.catalog.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Topic not found",
		})
	}
	return c.JSON(topic)
}
