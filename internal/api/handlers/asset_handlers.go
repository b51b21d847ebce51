package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beampay-service/beampay_service/internal/domain/services"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// AssetHandlers serves the asset registry endpoint
type AssetHandlers struct {
	wallets *services.WalletService
	logger  *logger.Logger
}

// NewAssetHandlers creates a new AssetHandlers instance
func NewAssetHandlers(wallets *services.WalletService, logger *logger.Logger) *AssetHandlers {
	return &AssetHandlers{
		wallets: wallets,
		logger:  logger,
	}
}

// ListAssets handles GET /api/v1/assets
func (h *AssetHandlers) ListAssets(c *gin.Context) {
	assets, err := h.wallets.Assets(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": true,
		"assets": assets,
	})
}
