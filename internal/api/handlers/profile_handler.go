package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/repuestosv/api/internal/services"
)

// ProfileHandler handles profile completeness and the WhatsApp contact
// lifecycle.
type ProfileHandler struct {
	profileService services.IProfileService
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profileService services.IProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// GetStatus handles GET /v1/profile/status
func (h *ProfileHandler) GetStatus(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	status, err := h.profileService.GetStatus(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, status)
}

// SetWhatsappRequest is the body of POST /v1/profile/whatsapp. An empty
// number clears the contact (and cascades to listings/demands).
type SetWhatsappRequest struct {
	Number string `json:"number"`
}

// SetWhatsapp handles POST /v1/profile/whatsapp
func (h *ProfileHandler) SetWhatsapp(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req SetWhatsappRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "body", "invalid request body")
		return
	}

	status, err := h.profileService.SetWhatsapp(c.Request.Context(), userID, req.Number)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, status)
}

// StartVerification handles POST /v1/profile/whatsapp/verification-code
func (h *ProfileHandler) StartVerification(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	if err := h.profileService.StartVerification(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"sent": true})
}

// VerifyRequest is the body of POST /v1/profile/whatsapp/verify.
type VerifyRequest struct {
	Code string `json:"code" binding:"required"`
}

// Verify handles POST /v1/profile/whatsapp/verify
func (h *ProfileHandler) Verify(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "code", "code is required")
		return
	}

	status, err := h.profileService.ConfirmVerification(c.Request.Context(), userID, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, status)
}
