package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/domain/services"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// WithdrawalHandlers serves withdrawal endpoints
type WithdrawalHandlers struct {
	withdrawals *services.WithdrawalService
	validator   *validator.Validate
	logger      *logger.Logger
}

// NewWithdrawalHandlers creates a new WithdrawalHandlers instance
func NewWithdrawalHandlers(withdrawals *services.WithdrawalService, logger *logger.Logger) *WithdrawalHandlers {
	return &WithdrawalHandlers{
		withdrawals: withdrawals,
		validator:   validator.New(),
		logger:      logger,
	}
}

// WithdrawalRequest represents a withdrawal request. The fee is not part of
// the request, the schedule derives it from the receiver address type.
type WithdrawalRequest struct {
	Sender   string         `json:"sender" validate:"required"`
	Receiver string         `json:"receiver" validate:"required"`
	AssetID  int64          `json:"asset_id" validate:"gte=0"`
	Value    entities.Groth `json:"value" validate:"required"`
	Comment  string         `json:"comment"`
}

// InitiateWithdrawal handles POST /api/v1/withdrawals
func (h *WithdrawalHandlers) InitiateWithdrawal(c *gin.Context) {
	var req WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		respondError(c, http.StatusBadRequest, "sender, receiver and a positive value are required")
		return
	}

	withdrawal, err := h.withdrawals.Initiate(c.Request.Context(), services.WithdrawalParams{
		Sender:   req.Sender,
		Receiver: req.Receiver,
		AssetID:  req.AssetID,
		Value:    req.Value,
		Comment:  req.Comment,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":     true,
		"withdrawal": withdrawal,
	})
}

// GetWithdrawal handles GET /api/v1/withdrawals/:id
func (h *WithdrawalHandlers) GetWithdrawal(c *gin.Context) {
	withdrawal, err := h.withdrawals.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     true,
		"withdrawal": withdrawal,
	})
}
