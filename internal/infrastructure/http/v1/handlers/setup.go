package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockbridge/internal/infrastructure/http/v1/dto"
)

// LinkParams are the accepted names of the endpoint parameter.
var LinkParams = []string{"link", "LINK", "url"}

// EndpointInitializer stores the CRM endpoint.
type EndpointInitializer interface {
	Initialize(ctx context.Context, link string) error
}

// SetupHandler serves endpoint initialization.
type SetupHandler struct {
	*BaseHandler
	vault EndpointInitializer
}

// NewSetupHandler creates a new setup handler.
func NewSetupHandler(base *BaseHandler, vault EndpointInitializer) *SetupHandler {
	return &SetupHandler{BaseHandler: base, vault: vault}
}

// Setup seals and stores the CRM endpoint link.
// GET|POST /api/v1/setup
func (h *SetupHandler) Setup(c *gin.Context) {
	p, err := h.Params(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if err := h.vault.Initialize(c.Request.Context(), p.Get(LinkParams...)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.SetupResponse{OK: true, Initialized: true})
}
