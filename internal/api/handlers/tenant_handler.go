package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kbchat/backend/internal/storage/models"
	"github.com/kbchat/backend/internal/storage/sqlite"
	"github.com/kbchat/backend/pkg/logger"
)

type TenantHandler struct {
	db                    *sqlite.Client
	defaultEmbeddingModel string
}

func NewTenantHandler(db *sqlite.Client, defaultEmbeddingModel string) *TenantHandler {
	return &TenantHandler{
		db:                    db,
		defaultEmbeddingModel: defaultEmbeddingModel,
	}
}

func (h *TenantHandler) CreateTenant(c *fiber.Ctx) error {
	var req struct {
		Name           string `json:"name"`
		Website        string `json:"website"`
		ScrapeConfig   string `json:"scrapeConfig"`
		EmbeddingModel string `json:"embeddingModel"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}

	// All of a tenant's pairs must share one embedding space, so the model
	// is fixed at creation time.
	embeddingModel := req.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = h.defaultEmbeddingModel
	}

	now := time.Now()
	tenant := &models.Tenant{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Website:        req.Website,
		ScrapeConfig:   req.ScrapeConfig,
		EmbeddingModel: embeddingModel,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.db.InsertTenant(tenant); err != nil {
		logger.Error("Failed to create tenant", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create tenant",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(tenant)
}

func (h *TenantHandler) ListTenants(c *fiber.Ctx) error {
	tenants, err := h.db.ListTenants()
	if err != nil {
		logger.Error("Failed to list tenants", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list tenants",
		})
	}

	return c.JSON(fiber.Map{
		"tenants": tenants,
	})
}

func (h *TenantHandler) GetTenant(c *fiber.Ctx) error {
	tenant, err := h.db.GetTenant(c.Params("tenantId"))
	if err != nil {
		logger.Error("Failed to get tenant", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get tenant",
		})
	}

	if tenant == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Tenant not found",
		})
	}

	return c.JSON(tenant)
}

func (h *TenantHandler) DeleteTenant(c *fiber.Ctx) error {
	tenantID := c.Params("tenantId")

	if err := h.db.DeleteTenant(tenantID); err != nil {
		logger.Error("Failed to delete tenant", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete tenant",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Tenant deleted",
	})
}
