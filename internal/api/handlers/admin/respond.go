package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"status":     false,
		"error":      message,
		"request_id": c.GetString("request_id"),
	})
}

func respondDomainError(c *gin.Context, err error) {
	var validationErr *entities.ValidationError
	switch {
	case errors.As(err, &validationErr):
		respondError(c, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, entities.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, entities.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "internal server error")
	}
}
