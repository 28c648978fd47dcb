package services

import (
	"context"

	"github.com/repuestosv/api/internal/config"
	"github.com/repuestosv/api/internal/models"
	"github.com/repuestosv/api/internal/utils"
)

// Empty-result reasons for BUY mode.
const (
	ReasonOnlyOwnListings  = "ONLY_OWN_LISTINGS"
	ReasonWhatsappRequired = "WHATSAPP_REQUIRED"
)

// BuyResult is the outcome of a BUY-mode search. Reason and DemandAction are
// mutually exclusive and only ever set on an empty result.
type BuyResult struct {
	Results      []models.Listing
	Page         int
	PageSize     int
	Total        int64
	Reason       string
	DemandAction string
}

// SellResult is the outcome of a SELL-mode demand browse.
type SellResult struct {
	Results  []models.Demand
	Page     int
	PageSize int
	Total    int64
}

// ISearchService is the matching engine tying listings, demands and profile
// completeness together.
type ISearchService interface {
	// SearchBuy finds active listings for a full signature, excluding the
	// requester's own. An empty result either reports why no demand was
	// registered (ONLY_OWN_LISTINGS, WHATSAPP_REQUIRED) or upserts a demand
	// and reports the action taken.
	SearchBuy(ctx context.Context, requesterID utils.SixID, sig models.ItemSignature, detailsText string, page, pageSize int) (*BuyResult, error)
	// SearchSell browses open demands with optional filters. Pure read.
	SearchSell(ctx context.Context, filter DemandFilter, page, pageSize int) (*SellResult, error)
}

// searchService implements ISearchService.
type searchService struct {
	cfg            *config.Config
	catalogService ICatalogService
	listingService IListingService
	demandService  IDemandService
	profileService IProfileService
}

// NewSearchService creates a new SearchService.
func NewSearchService(cfg *config.Config, catalogService ICatalogService, listingService IListingService, demandService IDemandService, profileService IProfileService) ISearchService {
	return &searchService{
		cfg:            cfg,
		catalogService: catalogService,
		listingService: listingService,
		demandService:  demandService,
		profileService: profileService,
	}
}

// NormalizePage clamps page/pageSize into their valid ranges.
func (s *searchService) normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.cfg.DefaultPageSize
	}
	if pageSize > s.cfg.MaxPageSize {
		pageSize = s.cfg.MaxPageSize
	}
	return page, pageSize
}

func (s *searchService) SearchBuy(ctx context.Context, requesterID utils.SixID, sig models.ItemSignature, detailsText string, page, pageSize int) (*BuyResult, error) {
	if !sig.Complete() {
		return nil, NewValidationError("signature", "all signature components are required in BUY mode", "required")
	}
	if err := s.catalogService.ValidateSignature(ctx, sig); err != nil {
		return nil, err
	}

	page, pageSize = s.normalizePage(page, pageSize)

	listings, total, err := s.listingService.SearchActive(ctx, sig, &requesterID, page, pageSize)
	if err != nil {
		return nil, err
	}

	result := &BuyResult{Results: listings, Page: page, PageSize: pageSize, Total: total}
	if total > 0 {
		return result, nil
	}

	// Empty result ladder. Self-supply is not a miss, and an unreachable
	// buyer must not register demand nobody can answer.
	ownCount, err := s.listingService.CountActiveBySeller(ctx, sig, requesterID)
	if err != nil {
		return nil, err
	}
	if ownCount > 0 {
		result.Reason = ReasonOnlyOwnListings
		return result, nil
	}

	profile, err := s.profileService.GetOrCreate(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !profile.Complete() {
		result.Reason = ReasonWhatsappRequired
		return result, nil
	}

	action, _, err := s.demandService.UpsertOnMiss(ctx, requesterID, sig, detailsText)
	if err != nil {
		return nil, err
	}
	result.DemandAction = action
	return result, nil
}

func (s *searchService) SearchSell(ctx context.Context, filter DemandFilter, page, pageSize int) (*SellResult, error) {
	page, pageSize = s.normalizePage(page, pageSize)

	demands, total, err := s.demandService.SearchOpen(ctx, filter, page, pageSize)
	if err != nil {
		return nil, err
	}
	return &SellResult{Results: demands, Page: page, PageSize: pageSize, Total: total}, nil
}
