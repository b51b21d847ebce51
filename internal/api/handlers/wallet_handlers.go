package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/domain/services"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// WalletHandlers serves wallet and address endpoints
type WalletHandlers struct {
	wallets *services.WalletService
	logger  *logger.Logger
}

// NewWalletHandlers creates a new WalletHandlers instance
func NewWalletHandlers(wallets *services.WalletService, logger *logger.Logger) *WalletHandlers {
	return &WalletHandlers{
		wallets: wallets,
		logger:  logger,
	}
}

// WalletCreationRequest represents a wallet creation request
type WalletCreationRequest struct {
	Label string `json:"label"`
}

// AddressCreationRequest represents an additional address request
type AddressCreationRequest struct {
	WalletID string `json:"wallet_id"`
	Type     string `json:"type"`
	Comment  string `json:"comment"`
}

// CreateWallet handles POST /api/v1/wallets. A wallet is an SBBS address
// provisioned on the node with the label as its comment.
func (h *WalletHandlers) CreateWallet(c *gin.Context) {
	var req WalletCreationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	walletID, address, err := h.wallets.CreateWallet(c.Request.Context(), req.Label)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":    true,
		"wallet_id": walletID,
		"address":   address.ID,
	})
}

// CreateAddress handles POST /api/v1/addresses
func (h *WalletHandlers) CreateAddress(c *gin.Context) {
	var req AddressCreationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	address, err := h.wallets.CreateAddress(c.Request.Context(), entities.AddressType(req.Type), req.Comment, req.WalletID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":  true,
		"address": address.ID,
	})
}

// GetBalances handles GET /api/v1/addresses/:address/balances
func (h *WalletHandlers) GetBalances(c *gin.Context) {
	address := c.Param("address")

	balances, err := h.wallets.Balances(c.Request.Context(), address)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   true,
		"address":  address,
		"balances": balances,
	})
}

// GetDeposits handles GET /api/v1/addresses/:address/deposits
func (h *WalletHandlers) GetDeposits(c *gin.Context) {
	address := c.Param("address")
	page, pageSize := parsePaging(c)

	deposits, err := h.wallets.Deposits(c.Request.Context(), address, page, pageSize)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    true,
		"address":   address,
		"deposits":  deposits,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetTransactions handles GET /api/v1/addresses/:address/transactions
func (h *WalletHandlers) GetTransactions(c *gin.Context) {
	address := c.Param("address")
	page, pageSize := parsePaging(c)

	transactions, err := h.wallets.Transactions(c.Request.Context(), address, page, pageSize)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       true,
		"address":      address,
		"transactions": transactions,
		"page":         page,
		"page_size":    pageSize,
	})
}
