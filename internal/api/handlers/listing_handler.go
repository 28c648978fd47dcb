package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/repuestosv/api/internal/services"
	"github.com/repuestosv/api/internal/storage"
	"github.com/repuestosv/api/internal/tasks"
	"github.com/repuestosv/api/internal/utils"
)

// ListingHandler handles the listing lifecycle: create, status toggle and the
// two-step photo upload.
type ListingHandler struct {
	listingService services.IListingService
	s3Storage      storage.IS3Storage
	taskClient     services.TaskEnqueuer
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(listingService services.IListingService, s3Storage storage.IS3Storage, taskClient services.TaskEnqueuer) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
		s3Storage:      s3Storage,
		taskClient:     taskClient,
	}
}

// Create handles POST /v1/listings
func (h *ListingHandler) Create(c *gin.Context) {
	sellerID, ok := callerID(c)
	if !ok {
		return
	}

	var input services.CreateListingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondInvalid(c, "body", "invalid request body")
		return
	}

	listing, err := h.listingService.Create(c.Request.Context(), sellerID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusCreated, gin.H{"listingId": listing.ID})
}

// SetStatusRequest is the body of PATCH /v1/listings/:id/status.
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetStatus handles PATCH /v1/listings/:id/status
func (h *ListingHandler) SetStatus(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		respondInvalid(c, "listingId", "invalid listing ID format")
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "status", "status is required")
		return
	}

	listing, err := h.listingService.SetStatus(c.Request.Context(), listingID, caller, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"listingId": listing.ID, "status": listing.Status})
}

// PhotoUploadURLRequest is the body of POST /v1/listings/:id/photos/upload-url.
type PhotoUploadURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
}

// GetPhotoUploadURL handles POST /v1/listings/:id/photos/upload-url. Ownership
// is checked before handing out a presigned URL so the key namespace stays
// honest.
func (h *ListingHandler) GetPhotoUploadURL(c *gin.Context) {
	sellerID, ok := callerID(c)
	if !ok {
		return
	}

	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		respondInvalid(c, "listingId", "invalid listing ID format")
		return
	}

	var req PhotoUploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "body", "filename and contentType are required")
		return
	}

	listing, err := h.listingService.FindByID(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err)
		return
	}
	if listing.SellerID != sellerID {
		respondError(c, services.ErrNotFound)
		return
	}

	uploadURL, key, err := h.s3Storage.GeneratePhotoUploadURL(c.Request.Context(), sellerID.String(), listingID.String(), req.Filename, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"uploadUrl": uploadURL, "key": key})
}

// PhotoConfirmRequest is the body of POST /v1/listings/:id/photos/confirm.
type PhotoConfirmRequest struct {
	Key string `json:"key" binding:"required"`
}

// ConfirmPhoto handles POST /v1/listings/:id/photos/confirm. Attaches the
// uploaded key to the listing and queues the resize job.
func (h *ListingHandler) ConfirmPhoto(c *gin.Context) {
	sellerID, ok := callerID(c)
	if !ok {
		return
	}

	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		respondInvalid(c, "listingId", "invalid listing ID format")
		return
	}

	var req PhotoConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "key", "key is required")
		return
	}

	if err := h.listingService.AddPhoto(c.Request.Context(), listingID, sellerID, req.Key); err != nil {
		respondError(c, err)
		return
	}

	payload, _ := json.Marshal(tasks.ImageTaskPayload{S3Key: req.Key, ListingID: listingID.String()})
	task := asynq.NewTask(tasks.TypeImageProcess, payload, asynq.Queue("images"))
	if _, err := h.taskClient.EnqueueContext(c.Request.Context(), task); err != nil {
		// The photo is attached; processing will be retried on next confirm
		// or can be resubmitted. Do not fail the request.
		log.Printf("Failed to enqueue image processing for key %s: %v", req.Key, err)
	}

	respondData(c, http.StatusOK, gin.H{"listingId": listingID, "key": req.Key})
}
