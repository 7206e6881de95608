package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kbchat/backend/internal/chat"
	"github.com/kbchat/backend/internal/storage/sqlite"
	"github.com/kbchat/backend/pkg/logger"
)

type SearchHandler struct {
	engine  *chat.Engine
	db      *sqlite.Client
	timeout time.Duration
}

func NewSearchHandler(engine *chat.Engine, db *sqlite.Client, timeout time.Duration) *SearchHandler {
	return &SearchHandler{
		engine:  engine,
		db:      db,
		timeout: timeout,
	}
}

// HandleSearch is the semantic-search endpoint. Internal failures surface as
// a generic message, never as internals.
func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	var req chat.SearchRequest

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" || req.TenantID == "" || req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query, tenantId and sessionId are required",
		})
	}

	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	response, err := h.engine.ProcessQuery(ctx, req)
	if err != nil {
		logger.Error("Search failed",
			zap.String("tenant_id", req.TenantID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "An error occurred during the search",
		})
	}

	return c.JSON(response)
}

// HandlePriorityQuestions returns a tenant's top pairs by stored extraction
// confidence, for seeding the chat widget with suggested questions.
func (h *SearchHandler) HandlePriorityQuestions(c *fiber.Ctx) error {
	var req struct {
		TenantID string `json:"tenantId"`
		Limit    int    `json:"limit"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.TenantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "tenantId is required",
		})
	}

	pairs, err := h.db.PriorityQuestions(c.Context(), req.TenantID, req.Limit)
	if err != nil {
		logger.Error("Failed to load priority questions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "An error occurred during the search",
		})
	}

	questions := make([]fiber.Map, 0, len(pairs))
	for _, pair := range pairs {
		questions = append(questions, fiber.Map{
			"id":         pair.ID,
			"question":   pair.Question,
			"category":   pair.Category,
			"confidence": pair.Confidence,
		})
	}

	return c.JSON(fiber.Map{
		"tenantId":  req.TenantID,
		"questions": questions,
	})
}

func (h *SearchHandler) GetQueryHistory(c *fiber.Ctx) error {
	tenantID := c.Params("tenantId")
	limit := c.QueryInt("limit", 50)

	records, err := h.db.GetQueryHistory(tenantID, limit)
	if err != nil {
		logger.Error("Failed to load query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load query history",
		})
	}

	return c.JSON(fiber.Map{
		"tenantId": tenantID,
		"history":  records,
	})
}
