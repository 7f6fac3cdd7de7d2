package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/domain-logo-service/internal/domain"
	"github.com/fleveque/domain-logo-service/internal/imagehost"
	"github.com/fleveque/domain-logo-service/internal/imaging"
	"github.com/fleveque/domain-logo-service/internal/service"
	"github.com/fleveque/domain-logo-service/internal/storage"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidDomain),
		errors.Is(err, imaging.ErrInvalidColor),
		errors.Is(err, service.ErrBackgroundUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, service.ErrNoLogoFound),
		errors.Is(err, imagehost.ErrNoImage):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with the mapped status. Internal errors are logged and
// their details withheld from the client.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
