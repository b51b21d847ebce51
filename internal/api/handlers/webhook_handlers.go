package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beampay-service/beampay_service/internal/domain/services"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// WebhookHandlers serves consumer webhook subscription endpoints
type WebhookHandlers struct {
	webhooks *services.WebhookService
	logger   *logger.Logger
}

// NewWebhookHandlers creates a new WebhookHandlers instance
func NewWebhookHandlers(webhooks *services.WebhookService, logger *logger.Logger) *WebhookHandlers {
	return &WebhookHandlers{
		webhooks: webhooks,
		logger:   logger,
	}
}

// WebhookRegistrationRequest represents a webhook subscription request
type WebhookRegistrationRequest struct {
	URL       string `json:"url" binding:"required"`
	EventType string `json:"event_type"`
}

// RegisterWebhook handles POST /api/v1/webhooks
func (h *WebhookHandlers) RegisterWebhook(c *gin.Context) {
	var req WebhookRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "url is required")
		return
	}

	if err := h.webhooks.Register(c.Request.Context(), req.URL, req.EventType); err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": true,
	})
}

// ListWebhooks handles GET /api/v1/webhooks
func (h *WebhookHandlers) ListWebhooks(c *gin.Context) {
	endpoints, err := h.webhooks.List(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   true,
		"webhooks": endpoints,
	})
}

// RemoveWebhook handles DELETE /api/v1/webhooks
func (h *WebhookHandlers) RemoveWebhook(c *gin.Context) {
	var req WebhookRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "url is required")
		return
	}

	if err := h.webhooks.Remove(c.Request.Context(), req.URL, req.EventType); err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": true,
	})
}
