package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beampay-service/beampay_service/internal/domain/services"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// TransactionHandlers serves transaction lookup and cancellation endpoints
type TransactionHandlers struct {
	wallets *services.WalletService
	logger  *logger.Logger
}

// NewTransactionHandlers creates a new TransactionHandlers instance
func NewTransactionHandlers(wallets *services.WalletService, logger *logger.Logger) *TransactionHandlers {
	return &TransactionHandlers{
		wallets: wallets,
		logger:  logger,
	}
}

// GetTransaction handles GET /api/v1/transactions/:txid
func (h *TransactionHandlers) GetTransaction(c *gin.Context) {
	tx, err := h.wallets.Transaction(c.Request.Context(), c.Param("txid"))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      true,
		"transaction": tx,
	})
}

// CancelTransaction handles DELETE /api/v1/transactions/:txid
func (h *TransactionHandlers) CancelTransaction(c *gin.Context) {
	if err := h.wallets.CancelTransaction(c.Request.Context(), c.Param("txid")); err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": true,
	})
}
