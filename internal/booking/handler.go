package booking

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
		v1.GET("/bookings/:id", h.Get)
		v1.POST("/bookings/:id/proposal/accept", h.AcceptProposal)
		v1.POST("/bookings/:id/proposal/reject", h.RejectProposal)
		v1.POST("/bookings/:id/acknowledge", h.Acknowledge)
	}
}

func (h *Handler) Get(c *gin.Context) {
	b, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, b)
}

func (h *Handler) AcceptProposal(c *gin.Context) {
	b, err := h.service.AcceptProposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, b)
}

func (h *Handler) RejectProposal(c *gin.Context) {
	b, err := h.service.RejectProposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, b)
}

func (h *Handler) Acknowledge(c *gin.Context) {
	if err := h.service.Acknowledge(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "acknowledged"})
}
