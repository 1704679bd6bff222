package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockbridge/internal/domain/documents"
)

// DocumentProcessor runs the document pipeline.
type DocumentProcessor interface {
	Process(ctx context.Context, req documents.Request) (*documents.Outcome, error)
}

// DocumentsHandler serves document processing.
type DocumentsHandler struct {
	*BaseHandler
	service DocumentProcessor
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(base *BaseHandler, service DocumentProcessor) *DocumentsHandler {
	return &DocumentsHandler{BaseHandler: base, service: service}
}

// Process builds a warehouse document from the entity's product rows.
// GET|POST /api/v1/documents/process
func (h *DocumentsHandler) Process(c *gin.Context) {
	p, err := h.Params(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	req, err := documents.RequestFromParams(p)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	outcome, err := h.service.Process(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, outcome)
}

// RegisterRoutes registers document routes.
func (h *DocumentsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/process", h.Process)
	rg.POST("/process", h.Process)
}
