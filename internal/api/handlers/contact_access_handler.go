package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/repuestosv/api/internal/models"
	"github.com/repuestosv/api/internal/services"
	"github.com/repuestosv/api/internal/utils"
)

// ContactAccessHandler is the reveal gateway.
type ContactAccessHandler struct {
	revealService services.IRevealService
}

// NewContactAccessHandler creates a new ContactAccessHandler.
func NewContactAccessHandler(revealService services.IRevealService) *ContactAccessHandler {
	return &ContactAccessHandler{revealService: revealService}
}

// RevealRequest is the body of POST /v1/contact-access. Exactly one of
// ListingID and DemandID must be set.
type RevealRequest struct {
	ListingID string `json:"listingId"`
	DemandID  string `json:"demandId"`
}

// Reveal handles POST /v1/contact-access
func (h *ContactAccessHandler) Reveal(c *gin.Context) {
	requesterID, ok := callerID(c)
	if !ok {
		return
	}

	var req RevealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "body", "invalid request body")
		return
	}

	var target services.RevealTarget
	if req.ListingID != "" {
		id, err := utils.ParseSixID(req.ListingID)
		if err != nil {
			respondInvalid(c, "listingId", "invalid listing ID format")
			return
		}
		target.ListingID = &id
	}
	if req.DemandID != "" {
		id, err := utils.ParseSixID(req.DemandID)
		if err != nil {
			respondInvalid(c, "demandId", "invalid demand ID format")
			return
		}
		target.DemandID = &id
	}

	result, err := h.revealService.Reveal(c.Request.Context(), requesterID, target)
	if err != nil {
		respondError(c, err)
		return
	}

	data := gin.H{
		"whatsappUrl": result.WhatsappURL,
		"didConsume":  result.DidConsume,
	}
	if result.TargetKind == models.TargetDemand {
		data["demandId"] = result.TargetID
	} else {
		data["listingId"] = result.TargetID
	}
	respondData(c, http.StatusOK, data)
}
