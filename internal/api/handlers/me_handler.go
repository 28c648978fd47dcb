package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/repuestosv/api/internal/services"
)

// MeHandler serves the caller's own records.
type MeHandler struct {
	demandService services.IDemandService
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(demandService services.IDemandService) *MeHandler {
	return &MeHandler{demandService: demandService}
}

// GetDemands handles GET /v1/me/demands. Returns every demand the caller has
// accumulated, open or closed, newest first.
func (h *MeHandler) GetDemands(c *gin.Context) {
	requesterID, ok := callerID(c)
	if !ok {
		return
	}

	demands, err := h.demandService.ListByRequester(c.Request.Context(), requesterID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, demands)
}
