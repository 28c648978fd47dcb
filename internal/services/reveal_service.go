package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/repuestosv/api/internal/config"
	"github.com/repuestosv/api/internal/db"
	"github.com/repuestosv/api/internal/models"
	"github.com/repuestosv/api/internal/ratelimit"
	"github.com/repuestosv/api/internal/utils"
)

// RevealTarget selects the listing or demand whose contact is requested.
// Exactly one field must be set.
type RevealTarget struct {
	ListingID *utils.SixID
	DemandID  *utils.SixID
}

// RevealResult is a successful contact disclosure. DidConsume is false when
// the requester had already paid for this target.
type RevealResult struct {
	TargetKind  string
	TargetID    utils.SixID
	WhatsappURL string
	DidConsume  bool
}

// IRevealService is the token-gated contact disclosure gateway.
type IRevealService interface {
	Reveal(ctx context.Context, requesterID utils.SixID, target RevealTarget) (*RevealResult, error)
}

const contactAccessCollection = "contact_access"

// revealService implements IRevealService. The order of checks in Reveal is
// part of the contract: completeness, rate limits, self-block and status are
// all verified before any token is touched.
type revealService struct {
	db             *mongo.Database
	cfg            *config.Config
	limiter        ratelimit.Limiter
	profileService IProfileService
	listingService IListingService
	demandService  IDemandService
}

// NewRevealService creates a new RevealService.
func NewRevealService(database *mongo.Database, cfg *config.Config, limiter ratelimit.Limiter, profileService IProfileService, listingService IListingService, demandService IDemandService) IRevealService {
	return &revealService{
		db:             database,
		cfg:            cfg,
		limiter:        limiter,
		profileService: profileService,
		listingService: listingService,
		demandService:  demandService,
	}
}

// resolvedTarget is the owner/status projection of a reveal target.
type resolvedTarget struct {
	kind         string
	id           utils.SixID
	ownerID      utils.SixID
	active       bool
	notActiveErr *BusinessError
	noContactErr *BusinessError
	selfBlockErr *BusinessError
}

func (s *revealService) resolve(ctx context.Context, target RevealTarget) (*resolvedTarget, error) {
	switch {
	case target.ListingID != nil && target.DemandID == nil:
		listing, err := s.listingService.FindByID(ctx, *target.ListingID)
		if err != nil {
			return nil, err
		}
		return &resolvedTarget{
			kind:         models.TargetListing,
			id:           listing.ID,
			ownerID:      listing.SellerID,
			active:       listing.Status == models.ListingActive,
			notActiveErr: ErrListingNotActive,
			noContactErr: ErrListingHasNoContact,
			selfBlockErr: ErrCannotRevealOwn,
		}, nil
	case target.DemandID != nil && target.ListingID == nil:
		demand, err := s.demandService.FindByID(ctx, *target.DemandID)
		if err != nil {
			return nil, err
		}
		return &resolvedTarget{
			kind:         models.TargetDemand,
			id:           demand.ID,
			ownerID:      demand.RequesterID,
			active:       demand.Status == models.DemandOpen,
			notActiveErr: ErrDemandNotActive,
			noContactErr: ErrDemandHasNoContact,
			selfBlockErr: ErrOwnDemandBlocked,
		}, nil
	default:
		return nil, NewValidationError("target", "exactly one of listingId or demandId is required", "required")
	}
}

func (s *revealService) Reveal(ctx context.Context, requesterID utils.SixID, target RevealTarget) (*RevealResult, error) {
	// 1. The requester must be reachable themselves before they may see
	// anyone else's contact.
	requester, err := s.profileService.GetOrCreate(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !requester.Complete() {
		return nil, ErrWhatsappRequired
	}

	// 2. Rate limits, all three before any DB mutation.
	key := "reveal:" + requesterID.String()
	allowed, err := s.limiter.AllowMinInterval(ctx, key, s.cfg.RevealMinInterval)
	if err != nil {
		return nil, fmt.Errorf("error checking reveal interval: %w", err)
	}
	if !allowed {
		return nil, ErrRateLimitExceeded
	}
	allowed, err = s.limiter.AllowSliding(ctx, key, s.cfg.RevealWindowLimit, s.cfg.RevealWindow)
	if err != nil {
		return nil, fmt.Errorf("error checking reveal window: %w", err)
	}
	if !allowed {
		return nil, ErrRateLimitExceeded
	}
	allowed, err = s.limiter.AllowFixed(ctx, key, s.cfg.RevealDailyLimit, 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("error checking reveal daily cap: %w", err)
	}
	if !allowed {
		return nil, ErrRateLimitExceeded
	}

	resolved, err := s.resolve(ctx, target)
	if err != nil {
		return nil, err
	}

	// 3. Self-reveal block, before any status or balance consideration.
	if resolved.ownerID == requesterID {
		return nil, resolved.selfBlockErr
	}

	// 4. Target must still be live.
	if !resolved.active {
		return nil, resolved.notActiveErr
	}

	// The owner's number is read before charging so a contactless target
	// never costs anything.
	owner, err := s.profileService.GetOrCreate(ctx, resolved.ownerID)
	if err != nil {
		return nil, err
	}
	if owner.Whatsapp == nil || owner.Whatsapp.NumberE164 == "" {
		return nil, resolved.noContactErr
	}
	url := utils.WaMeURL(owner.Whatsapp.NumberE164)
	if url == "" {
		// The stored number is never trusted blindly.
		return nil, resolved.noContactErr
	}

	result := &RevealResult{
		TargetKind:  resolved.kind,
		TargetID:    resolved.id,
		WhatsappURL: url,
	}

	// 5. Repeat reveals are free: an existing access row short-circuits the
	// charge.
	accessColl := s.db.Collection(contactAccessCollection)
	pairFilter := bson.M{
		"requester_id": requesterID,
		"target_kind":  resolved.kind,
		"target_id":    resolved.id,
	}
	count, err := accessColl.CountDocuments(ctx, pairFilter)
	if err != nil {
		return nil, fmt.Errorf("error checking existing contact access: %w", err)
	}
	if count > 0 {
		return result, nil
	}

	// 6. Charge-then-record. The conditional debit cannot overdraw; the
	// unique (requester, target) index arbitrates concurrent first reveals,
	// and the loser's debit is refunded.
	cost := s.cfg.RevealTokenCost
	debited, err := s.profileService.DebitTokensIfEnough(ctx, requesterID, cost)
	if err != nil {
		return nil, err
	}
	if !debited {
		return nil, ErrInsufficientTokens
	}

	access := &models.ContactAccess{
		RequesterID:   requesterID,
		TargetKind:    resolved.kind,
		TargetID:      resolved.id,
		TargetOwnerID: resolved.ownerID,
		TokensSpent:   cost,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := db.InsertOne(ctx, accessColl, access); err != nil {
		if db.IsDuplicateKeyOnIndex(err, db.IdxContactAccessPair) {
			// Lost the race to a concurrent reveal of the same target; the
			// other call paid, this one must not.
			if refundErr := s.profileService.CreditTokens(ctx, requesterID, cost); refundErr != nil {
				log.Printf("ERROR refunding %d tokens to %s after reveal race: %v", cost, requesterID.String(), refundErr)
				return nil, refundErr
			}
			return result, nil
		}
		// Unknown insert failure after a successful debit: refund to keep
		// the balance honest, then surface the failure.
		if refundErr := s.profileService.CreditTokens(ctx, requesterID, cost); refundErr != nil {
			log.Printf("ERROR refunding %d tokens to %s after failed access insert: %v", cost, requesterID.String(), refundErr)
		}
		return nil, fmt.Errorf("error recording contact access: %w", err)
	}

	result.DidConsume = true
	return result, nil
}
