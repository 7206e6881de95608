package handlers

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/kbchat/backend/internal/chat"
	"github.com/kbchat/backend/pkg/logger"
)

type WebSocketHandler struct {
	engine  *chat.Engine
	timeout time.Duration
}

func NewWebSocketHandler(engine *chat.Engine, timeout time.Duration) *WebSocketHandler {
	return &WebSocketHandler{
		engine:  engine,
		timeout: timeout,
	}
}

// HandleConnection runs the live chat loop: each inbound query goes through
// the same pipeline as the HTTP endpoint and the answer is streamed back
// word by word, followed by a complete frame carrying the full response.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type      string `json:"type"`
			Query     string `json:"query"`
			TenantID  string `json:"tenantId"`
			SessionID string `json:"sessionId"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "query" {
			continue
		}

		if msg.Query == "" || msg.TenantID == "" || msg.SessionID == "" {
			h.sendError(c, "query, tenantId and sessionId are required")
			continue
		}

		req := chat.SearchRequest{
			Query:     msg.Query,
			TenantID:  msg.TenantID,
			SessionID: msg.SessionID,
		}

		if err := h.streamResponse(c, req); err != nil {
			logger.Error("Failed to stream response", zap.Error(err))
			h.sendError(c, "An error occurred during the search")
		}
	}
}

func (h *WebSocketHandler) streamResponse(c *websocket.Conn, req chat.SearchRequest) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.sendChunk(c, "status", "Searching...")

	response, err := h.engine.ProcessQuery(ctx, req)
	if err != nil {
		return err
	}

	words := splitIntoWords(response.Answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}

		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":     "complete",
		"response": response,
	})
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}
