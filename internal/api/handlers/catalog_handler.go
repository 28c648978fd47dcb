package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/repuestosv/api/internal/services"
	"github.com/repuestosv/api/internal/utils"
)

// CatalogHandler serves the read-only vehicle/part reference data.
type CatalogHandler struct {
	catalogService services.ICatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalogService services.ICatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// GetBrands handles GET /v1/catalog/brands
func (h *CatalogHandler) GetBrands(c *gin.Context) {
	brands, err := h.catalogService.GetBrands(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, brands)
}

// GetModels handles GET /v1/catalog/brands/:id/models
func (h *CatalogHandler) GetModels(c *gin.Context) {
	brandID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		respondInvalid(c, "brandId", "invalid brand ID format")
		return
	}
	carModels, err := h.catalogService.GetModels(c.Request.Context(), brandID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, carModels)
}

// GetYears handles GET /v1/catalog/years
func (h *CatalogHandler) GetYears(c *gin.Context) {
	years, err := h.catalogService.GetYears(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, years)
}

// GetItemTypes handles GET /v1/catalog/item-types
func (h *CatalogHandler) GetItemTypes(c *gin.Context) {
	itemTypes, err := h.catalogService.GetItemTypes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, itemTypes)
}

// GetParts handles GET /v1/catalog/item-types/:id/parts
func (h *CatalogHandler) GetParts(c *gin.Context) {
	itemTypeID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		respondInvalid(c, "itemTypeId", "invalid item type ID format")
		return
	}
	parts, err := h.catalogService.GetParts(c.Request.Context(), itemTypeID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, parts)
}
