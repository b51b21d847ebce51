package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/domain/services"
	"github.com/beampay-service/beampay_service/pkg/logger"
	"github.com/beampay-service/beampay_service/pkg/ratelimit"
)

// AdminHandlers serves the operator endpoints behind JWT auth
type AdminHandlers struct {
	admin    *services.AdminService
	apiKeys  *services.APIKeyService
	throttle *ratelimit.LoginThrottle
	logger   *logger.Logger
}

// NewAdminHandlers creates a new AdminHandlers instance
func NewAdminHandlers(
	admin *services.AdminService,
	apiKeys *services.APIKeyService,
	throttle *ratelimit.LoginThrottle,
	logger *logger.Logger,
) *AdminHandlers {
	return &AdminHandlers{
		admin:    admin,
		apiKeys:  apiKeys,
		throttle: throttle,
		logger:   logger,
	}
}

// LoginRequest represents an operator login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTP     string `json:"totp"`
}

// APIKeyRequest represents an API key issuance request
type APIKeyRequest struct {
	Label string `json:"label"`
}

// Login handles POST /admin/login. Failed attempts count against the
// client IP and username pair, a Redis outage fails open.
func (h *AdminHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "username and password are required")
		return
	}

	ctx := c.Request.Context()
	identifier := c.ClientIP() + ":" + req.Username

	if status, err := h.throttle.Allowed(ctx, identifier); err != nil {
		h.logger.Warn("Login throttle check failed", "error", err)
	} else if !status.Allowed {
		c.Header("Retry-After", strconv.Itoa(int(status.RetryAfter.Seconds())))
		respondError(c, http.StatusTooManyRequests, "too many failed login attempts")
		return
	}

	session, err := h.admin.Login(ctx, req.Username, req.Password, req.TOTP)
	if err != nil {
		if errors.Is(err, entities.ErrInvalidCredentials) {
			if _, throttleErr := h.throttle.RecordFailure(ctx, identifier); throttleErr != nil {
				h.logger.Warn("Failed to record login failure", "error", throttleErr)
			}
			h.logger.Warn("Admin login rejected", "client_ip", c.ClientIP())
		}
		respondDomainError(c, err)
		return
	}

	if err := h.throttle.RecordSuccess(ctx, identifier); err != nil {
		h.logger.Warn("Failed to clear login failures", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     true,
		"token":      session.Token,
		"expires_at": session.ExpiresAt.Unix(),
	})
}

// Balances handles GET /admin/balances. The report compares node totals
// against the ledger per asset.
func (h *AdminHandlers) Balances(c *gin.Context) {
	report, err := h.admin.Balances(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": true,
		"report": report,
	})
}

// Withdrawals handles GET /admin/withdrawals
func (h *AdminHandlers) Withdrawals(c *gin.Context) {
	page, pageSize := parsePaging(c)

	withdrawals, err := h.admin.Withdrawals(c.Request.Context(), c.Query("status"), page, pageSize)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      true,
		"withdrawals": withdrawals,
		"page":        page,
		"page_size":   pageSize,
	})
}

// RequeueWithdrawal handles POST /admin/withdrawals/:id/requeue
func (h *AdminHandlers) RequeueWithdrawal(c *gin.Context) {
	withdrawal, err := h.admin.RequeueWithdrawal(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     true,
		"withdrawal": withdrawal,
	})
}

// FailedWebhooks handles GET /admin/failed-webhooks
func (h *AdminHandlers) FailedWebhooks(c *gin.Context) {
	failed, err := h.admin.FailedWebhooks(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          true,
		"failed_webhooks": failed,
	})
}

// IssueAPIKey handles POST /admin/api-keys. The plaintext key appears in
// this response and nowhere else.
func (h *AdminHandlers) IssueAPIKey(c *gin.Context) {
	var req APIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	plaintext, key, err := h.apiKeys.Issue(c.Request.Context(), req.Label)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":  true,
		"api_key": plaintext,
		"key":     key,
	})
}

// ListAPIKeys handles GET /admin/api-keys
func (h *AdminHandlers) ListAPIKeys(c *gin.Context) {
	keys, err := h.apiKeys.List(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": true,
		"keys":   keys,
	})
}

// DisableAPIKey handles DELETE /admin/api-keys/:id
func (h *AdminHandlers) DisableAPIKey(c *gin.Context) {
	if err := h.apiKeys.Disable(c.Request.Context(), c.Param("id")); err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": true,
	})
}

func parsePaging(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return page, pageSize
}
