package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/repuestosv/api/internal/models"
	"github.com/repuestosv/api/internal/services"
	"github.com/repuestosv/api/internal/utils"
)

// SearchHandler exposes the matching engine: BUY mode listing search and
// SELL/demand browsing.
type SearchHandler struct {
	searchService services.ISearchService
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(searchService services.ISearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// parsePage reads page/pageSize query values; the services clamp ranges.
func parsePage(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "0"))
	return page, pageSize
}

// signatureQuery reads a query param as a SixID. Absent params yield nil; the
// second return is false on a malformed value.
func signatureQuery(c *gin.Context, name string) (*utils.SixID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := utils.ParseSixID(raw)
	if err != nil {
		return nil, false
	}
	return &id, true
}

// buildSignature assembles an ItemSignature from query params. Missing
// components stay zero; completeness is the service's call.
func buildSignature(c *gin.Context) (models.ItemSignature, string, bool) {
	var sig models.ItemSignature
	fields := []struct {
		name string
		dst  *utils.SixID
	}{
		{"brandId", &sig.BrandID},
		{"modelId", &sig.ModelID},
		{"yearId", &sig.YearID},
		{"itemTypeId", &sig.ItemTypeID},
		{"partId", &sig.PartID},
	}
	for _, f := range fields {
		id, ok := signatureQuery(c, f.name)
		if !ok {
			return sig, f.name, false
		}
		if id != nil {
			*f.dst = *id
		}
	}
	return sig, "", true
}

// buildDemandFilter assembles the optional SELL-mode filter.
func buildDemandFilter(c *gin.Context) (services.DemandFilter, string, bool) {
	var filter services.DemandFilter
	fields := []struct {
		name string
		dst  **utils.SixID
	}{
		{"brandId", &filter.BrandID},
		{"modelId", &filter.ModelID},
		{"yearId", &filter.YearID},
		{"itemTypeId", &filter.ItemTypeID},
		{"partId", &filter.PartID},
	}
	for _, f := range fields {
		id, ok := signatureQuery(c, f.name)
		if !ok {
			return filter, f.name, false
		}
		*f.dst = id
	}
	return filter, "", true
}

// SearchListings handles GET /v1/search/listings in both modes.
func (h *SearchHandler) SearchListings(c *gin.Context) {
	switch c.Query("mode") {
	case "BUY":
		h.searchBuy(c)
	case "SELL":
		h.searchSell(c)
	default:
		respondInvalid(c, "mode", "mode must be BUY or SELL")
	}
}

func (h *SearchHandler) searchBuy(c *gin.Context) {
	requesterID, ok := callerID(c)
	if !ok {
		return
	}

	sig, badField, ok := buildSignature(c)
	if !ok {
		respondInvalid(c, badField, "invalid ID format")
		return
	}

	page, pageSize := parsePage(c)
	result, err := h.searchService.SearchBuy(c.Request.Context(), requesterID, sig, c.Query("detailsText"), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"ok":       true,
		"results":  result.Results,
		"page":     result.Page,
		"pageSize": result.PageSize,
		"total":    result.Total,
	}
	if result.Reason != "" {
		resp["data"] = gin.H{"reason": result.Reason}
	} else if result.DemandAction != "" {
		resp["data"] = gin.H{"demandAction": result.DemandAction}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SearchHandler) searchSell(c *gin.Context) {
	filter, badField, ok := buildDemandFilter(c)
	if !ok {
		respondInvalid(c, badField, "invalid ID format")
		return
	}

	page, pageSize := parsePage(c)
	result, err := h.searchService.SearchSell(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	// Demand rows are rendered as buy-side cards in the shared feed.
	cards := make([]gin.H, 0, len(result.Results))
	for _, d := range result.Results {
		cards = append(cards, gin.H{
			"cardType":    "buy",
			"id":          d.ID,
			"requesterId": d.RequesterID,
			"signature":   d.Signature,
			"detailsText": d.DetailsText,
			"createdAt":   d.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"results":  cards,
		"page":     result.Page,
		"pageSize": result.PageSize,
		"total":    result.Total,
	})
}

// SearchDemands handles GET /v1/search/demands
func (h *SearchHandler) SearchDemands(c *gin.Context) {
	filter, badField, ok := buildDemandFilter(c)
	if !ok {
		respondInvalid(c, badField, "invalid ID format")
		return
	}

	page, pageSize := parsePage(c)
	result, err := h.searchService.SearchSell(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"results":  result.Results,
		"page":     result.Page,
		"pageSize": result.PageSize,
		"total":    result.Total,
	})
}
