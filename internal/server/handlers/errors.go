package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientStock), errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *InventoryHandler) writeError(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.String("tenant", c.Param("tenantID")), zap.Error(err))
		c.JSON(status, gin.H{"error": msg})
		return
	}

	h.logger.Warn(msg, zap.String("tenant", c.Param("tenantID")), zap.Error(err))
	body := gin.H{"error": err.Error()}
	if errors.Is(err, models.ErrConflict) {
		body["retryable"] = true
	}
	c.JSON(status, body)
}
