package ingest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stagehand/internal/logger"
	"stagehand/pkg/errors"
)

type Handler struct {
	service *Service
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/mail/sync", h.Sync)
	}
}

func (h *Handler) Sync(c *gin.Context) {
	summary, err := h.service.Sync(c.Request.Context())
	if err != nil {
		h.logger.ErrorwCtx(c.Request.Context(), "Mail sync failed", "error", err)
		c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, summary)
}
