package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// getRequestID extracts the request ID set by the middleware chain
func getRequestID(c *gin.Context) string {
	if reqID, exists := c.Get("request_id"); exists {
		if id, ok := reqID.(string); ok {
			return id
		}
	}
	return ""
}

// requestLogger returns the per-request logger set by the middleware chain
func requestLogger(c *gin.Context) *zap.SugaredLogger {
	if l, exists := c.Get("logger"); exists {
		if sugar, ok := l.(*zap.SugaredLogger); ok {
			return sugar
		}
	}
	return zap.NewNop().Sugar()
}

// respondError sends a standardized error response
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"status":     false,
		"error":      message,
		"request_id": getRequestID(c),
	})
}

// respondDomainError translates domain errors into HTTP responses. Anything
// not recognised as a client fault is logged and reported as a 500.
func respondDomainError(c *gin.Context, err error) {
	var validationErr *entities.ValidationError
	switch {
	case errors.As(err, &validationErr):
		respondError(c, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, entities.ErrSelfSend),
		errors.Is(err, entities.ErrInsufficientFunds),
		errors.Is(err, entities.ErrInsufficientUTXO):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, entities.ErrAddressNotFound),
		errors.Is(err, entities.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, entities.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, err.Error())
	default:
		requestLogger(c).Errorw("Request failed", "error", err)
		respondError(c, http.StatusInternalServerError, "internal server error")
	}
}

// parsePaging reads page and page_size query parameters with sane bounds
func parsePaging(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
