package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler handles administrative endpoints.
type AdminHandler struct {
	logoService LogoService
	logger      *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(logoService LogoService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		logoService: logoService,
		logger:      logger,
	}
}

// Stats returns stored counts and the active backends.
// Route: GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.logoService.Stats(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Delete removes a logo, its attempts and its remote image.
// Route: DELETE /api/v1/admin/logos/:id
func (h *AdminHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	deleted, err := h.logoService.Delete(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "logo not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
