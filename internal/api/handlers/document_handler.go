package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kbchat/backend/internal/ingestion"
	"github.com/kbchat/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
}

func NewDocumentHandler(processor *ingestion.Processor) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
	}
}

// UploadDocument accepts either pre-extracted Q&A pairs or raw CSV/HTML
// content. The document is registered immediately as processing; embedding
// runs in the background and flips the status when it joins.
func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	var req struct {
		TenantID string              `json:"tenantId"`
		FileName string              `json:"fileName"`
		FileType string              `json:"fileType"`
		Pairs    []ingestion.RawPair `json:"pairs"`
		FullText string              `json:"fullText"`
		Content  string              `json:"content"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.TenantID == "" || req.FileName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "tenantId and fileName are required",
		})
	}

	upload := ingestion.Upload{Pairs: req.Pairs, FullText: req.FullText}

	if len(upload.Pairs) == 0 && req.Content != "" {
		var err error
		switch strings.ToLower(req.FileType) {
		case "csv":
			upload, err = ingestion.ParseCSV(strings.NewReader(req.Content))
		case "html":
			upload, err = ingestion.ParseHTML(strings.NewReader(req.Content))
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unsupported file type",
			})
		}
		if err != nil {
			logger.Error("Failed to parse uploaded content", zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Failed to parse uploaded content",
			})
		}
	}

	if len(upload.Pairs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No question/answer pairs found in upload",
		})
	}

	doc, err := h.processor.CreateDocument(req.TenantID, req.FileName, req.FileType, upload.FullText)
	if err != nil {
		logger.Error("Failed to create document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create document",
		})
	}

	go func() {
		if err := h.processor.EmbedAndStore(context.Background(), doc, upload.Pairs); err != nil {
			logger.Error("Background embedding failed",
				zap.String("doc_id", doc.ID),
				zap.Error(err),
			)
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"documentId": doc.ID,
		"status":     doc.Status,
		"pairCount":  len(upload.Pairs),
	})
}
