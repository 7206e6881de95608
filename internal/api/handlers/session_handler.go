package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	rediscache "github.com/kbchat/backend/internal/cache/redis"
	"github.com/kbchat/backend/pkg/logger"
)

type SessionHandler struct {
	cache *rediscache.Client
}

func NewSessionHandler(cache *rediscache.Client) *SessionHandler {
	return &SessionHandler{
		cache: cache,
	}
}

// GetSession returns the full transcript and derived metadata for one chat
// session.
func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	tenantID := c.Params("tenantId")
	sessionID := c.Params("sessionId")

	session, found, err := h.cache.GetSession(c.Context(), tenantID, sessionID)
	if err != nil {
		logger.Error("Failed to load session", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load session",
		})
	}

	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	return c.JSON(session)
}

func (h *SessionHandler) DeleteSession(c *fiber.Ctx) error {
	tenantID := c.Params("tenantId")
	sessionID := c.Params("sessionId")

	if err := h.cache.DeleteSession(c.Context(), tenantID, sessionID); err != nil {
		logger.Error("Failed to delete session", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete session",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Session deleted",
	})
}
