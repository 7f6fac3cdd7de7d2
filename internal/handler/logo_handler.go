package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/domain-logo-service/internal/model"
	"github.com/fleveque/domain-logo-service/internal/service"
)

// LogoService is the part of the service layer the handlers use.
type LogoService interface {
	Extract(ctx context.Context, domain, name string, force bool) (*model.Logo, error)
	Get(ctx context.Context, id string) (*model.Logo, error)
	GetByDomain(ctx context.Context, domain string) (*model.Logo, error)
	List(ctx context.Context, limit, offset int) ([]model.Logo, int64, error)
	Delete(ctx context.Context, id string) (bool, error)
	RetrieveImage(ctx context.Context, logo *model.Logo, background string) ([]byte, string, error)
	ListAttempts(ctx context.Context, id string) ([]model.Attempt, error)
	Stats(ctx context.Context) (*service.Stats, error)
	Ping(ctx context.Context) error
}

// LogoHandler serves the logo extraction and lookup API.
type LogoHandler struct {
	logoService LogoService
	logger      *zap.Logger
}

// NewLogoHandler creates a new LogoHandler with the logo service.
func NewLogoHandler(logoService LogoService, logger *zap.Logger) *LogoHandler {
	return &LogoHandler{
		logoService: logoService,
		logger:      logger,
	}
}

type extractRequest struct {
	Domain string `json:"domain" binding:"required"`
	Name   string `json:"name"`
	Force  bool   `json:"force"`
}

// logoResponse adds derived fields to the stored entity.
type logoResponse struct {
	*model.Logo
	StorageMode string `json:"storage_mode"`
	ImageURL    string `json:"image_url"`
	RemoteURL   string `json:"remote_url,omitempty"`
}

func newLogoResponse(l *model.Logo) logoResponse {
	resp := logoResponse{
		Logo:        l,
		StorageMode: l.StorageMode(),
		ImageURL:    "/api/v1/logos/" + l.ID + "/image",
	}
	if ref := l.Remote(); ref != nil {
		resp.RemoteURL = ref.URL
	}
	return resp
}

// Extract resolves a domain to a logo, acquiring it if needed.
// Route: POST /api/v1/logos {"domain": "...", "name": "...", "force": false}
func (h *LogoHandler) Extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	logo, err := h.logoService.Extract(c.Request.Context(), req.Domain, req.Name, req.Force)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newLogoResponse(logo))
}

// List returns a page of logos, most recently updated first.
// Route: GET /api/v1/logos?limit=50&offset=0
func (h *LogoHandler) List(c *gin.Context) {
	limit, err := queryInt(c, "limit", service.DefaultListLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logos, total, err := h.logoService.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	items := make([]logoResponse, len(logos))
	for i := range logos {
		items[i] = newLogoResponse(&logos[i])
	}
	c.JSON(http.StatusOK, gin.H{
		"logos":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// Get returns one logo's metadata.
// Route: GET /api/v1/logos/:id
func (h *LogoHandler) Get(c *gin.Context) {
	logo, err := h.logoService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newLogoResponse(logo))
}

// GetByDomain looks a logo up by domain without extracting.
// Route: GET /api/v1/domains/:domain
func (h *LogoHandler) GetByDomain(c *gin.Context) {
	logo, err := h.logoService.GetByDomain(c.Request.Context(), c.Param("domain"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newLogoResponse(logo))
}

// Image serves the stored image bytes.
// Route: GET /api/v1/logos/:id/image?bg=ffffff
func (h *LogoHandler) Image(c *gin.Context) {
	ctx := c.Request.Context()
	logo, err := h.logoService.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	data, contentType, err := h.logoService.RetrieveImage(ctx, logo, c.Query("bg"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	// Logos change only on forced re-extraction.
	c.Header("Cache-Control", "public, max-age=86400")
	c.Header("ETag", strconv.Quote(logo.ID+"-"+strconv.FormatInt(logo.UpdatedAt.UnixNano(), 36)))
	c.Data(http.StatusOK, contentType, data)
}

// Attempts lists the download attempts recorded for a logo.
// Route: GET /api/v1/logos/:id/attempts
func (h *LogoHandler) Attempts(c *gin.Context) {
	attempts, err := h.logoService.ListAttempts(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return n, nil
}
