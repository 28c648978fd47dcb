package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/repuestosv/api/internal/db"
	"github.com/repuestosv/api/internal/models"
	"github.com/repuestosv/api/internal/utils"
)

// CreateListingInput is the seller-supplied part of a new listing.
type CreateListingInput struct {
	Signature   models.ItemSignature `json:"signature"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Condition   string               `json:"condition"`
	Pricing     models.Pricing       `json:"pricing"`
	Location    *models.Location     `json:"location"`
}

// IListingService defines the listing lifecycle operations.
type IListingService interface {
	Create(ctx context.Context, sellerID utils.SixID, input CreateListingInput) (*models.Listing, error)
	FindByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error)
	// SetStatus toggles active/inactive. A non-owner gets not_found, never
	// forbidden, so existence is not leaked.
	SetStatus(ctx context.Context, listingID, callerID utils.SixID, nextStatus string) (*models.Listing, error)
	// SearchActive returns active listings matching the full signature,
	// newest first. excludeSellerID removes one seller's listings from both
	// rows and total.
	SearchActive(ctx context.Context, sig models.ItemSignature, excludeSellerID *utils.SixID, page, pageSize int) ([]models.Listing, int64, error)
	// CountActiveBySeller counts the seller's own active listings for a
	// signature.
	CountActiveBySeller(ctx context.Context, sig models.ItemSignature, sellerID utils.SixID) (int64, error)
	DeactivateAllForSeller(ctx context.Context, sellerID utils.SixID) (int64, error)
	AddPhoto(ctx context.Context, listingID, callerID utils.SixID, key string) error
	SetPhotoProcessed(ctx context.Context, listingID utils.SixID, key, processedKey string) error
}

const listingsCollection = "listings"

// listingService implements IListingService.
type listingService struct {
	db             *mongo.Database
	catalogService ICatalogService
	profileService IProfileService
	maxPhotos      int
}

// NewListingService creates a new ListingService.
func NewListingService(database *mongo.Database, catalogService ICatalogService, profileService IProfileService, maxPhotos int) IListingService {
	return &listingService{
		db:             database,
		catalogService: catalogService,
		profileService: profileService,
		maxPhotos:      maxPhotos,
	}
}

func validateListingInput(input CreateListingInput) error {
	if input.Title == "" {
		return NewValidationError("title", "title is required", "required")
	}
	if input.Pricing.Amount <= 0 {
		return NewValidationError("pricing.amount", "amount must be positive", "invalid")
	}
	switch input.Pricing.Type {
	case models.PricingFixed, models.PricingNegotiable:
	default:
		return NewValidationError("pricing.type", "must be fixed or negotiable", "invalid")
	}
	switch input.Condition {
	case "", "new", "used":
	default:
		return NewValidationError("condition", "must be new or used", "invalid")
	}
	return nil
}

// computeQualityScore grades how complete a listing is; among equally recent
// matches a richer listing sorts first.
func computeQualityScore(input CreateListingInput) int {
	score := 40
	if len(input.Description) >= 30 {
		score += 20
	} else if input.Description != "" {
		score += 10
	}
	if input.Condition != "" {
		score += 10
	}
	if input.Location != nil && input.Location.Department != "" {
		score += 15
	}
	if input.Pricing.Type == models.PricingFixed {
		score += 15
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Create inserts a new active listing. The partial unique index on
// (seller, signature, active) is the final arbiter of the one-active-listing
// rule; the pre-check only exists for a cheaper failure.
func (s *listingService) Create(ctx context.Context, sellerID utils.SixID, input CreateListingInput) (*models.Listing, error) {
	if err := validateListingInput(input); err != nil {
		return nil, err
	}
	if err := s.catalogService.ValidateSignature(ctx, input.Signature); err != nil {
		return nil, err
	}

	// A seller nobody can contact must not publish.
	profile, err := s.profileService.GetOrCreate(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if !profile.Complete() {
		return nil, ErrAddWhatsappFirst
	}

	collection := s.db.Collection(listingsCollection)

	count, err := collection.CountDocuments(ctx, bson.M{
		"seller_id": sellerID,
		"status":    models.ListingActive,
		"signature": input.Signature,
	})
	if err != nil {
		return nil, fmt.Errorf("error checking for duplicate listing: %w", err)
	}
	if count > 0 {
		return nil, ErrDuplicateListing
	}

	if input.Pricing.Currency == "" {
		input.Pricing.Currency = "USD"
	}

	now := time.Now().UTC()
	listing := &models.Listing{
		SellerID:     sellerID,
		Signature:    input.Signature,
		Title:        input.Title,
		Description:  input.Description,
		Condition:    input.Condition,
		Pricing:      input.Pricing,
		Location:     input.Location,
		QualityScore: computeQualityScore(input),
		Status:       models.ListingActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := db.InsertOne(ctx, collection, listing); err != nil {
		// Losing the race to a concurrent create is the same conflict the
		// pre-check reports.
		if db.IsDuplicateKeyOnIndex(err, db.IdxActiveSellerSignature) {
			return nil, ErrDuplicateListing
		}
		return nil, fmt.Errorf("error inserting listing: %w", err)
	}

	if err := s.profileService.EnsureSeller(ctx, sellerID); err != nil {
		return nil, err
	}

	return listing, nil
}

func (s *listingService) FindByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.Collection(listingsCollection).FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding listing %s: %w", listingID.String(), err)
	}
	return &listing, nil
}

func (s *listingService) SetStatus(ctx context.Context, listingID, callerID utils.SixID, nextStatus string) (*models.Listing, error) {
	switch nextStatus {
	case models.ListingActive, models.ListingInactive:
	default:
		return nil, NewValidationError("status", "must be active or inactive", "invalid")
	}

	collection := s.db.Collection(listingsCollection)
	filter := bson.M{"_id": listingID, "seller_id": callerID}
	update := bson.M{"$set": bson.M{"status": nextStatus, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var listing models.Listing
	err := collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Not found and not yours are deliberately the same answer.
			return nil, ErrNotFound
		}
		// Reactivation can collide with a newer active listing for the same
		// signature.
		if db.IsDuplicateKeyOnIndex(err, db.IdxActiveSellerSignature) {
			return nil, ErrDuplicateListing
		}
		return nil, fmt.Errorf("error updating listing %s status: %w", listingID.String(), err)
	}
	return &listing, nil
}

func signatureFilter(sig models.ItemSignature) bson.M {
	return bson.M{
		"signature.brand_id":     sig.BrandID,
		"signature.model_id":     sig.ModelID,
		"signature.year_id":      sig.YearID,
		"signature.item_type_id": sig.ItemTypeID,
		"signature.part_id":      sig.PartID,
	}
}

func (s *listingService) SearchActive(ctx context.Context, sig models.ItemSignature, excludeSellerID *utils.SixID, page, pageSize int) ([]models.Listing, int64, error) {
	collection := s.db.Collection(listingsCollection)

	filter := signatureFilter(sig)
	filter["status"] = models.ListingActive
	if excludeSellerID != nil {
		filter["seller_id"] = bson.M{"$ne": *excludeSellerID}
	}

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting listings: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "quality_score", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("error searching listings: %w", err)
	}
	defer cursor.Close(ctx)

	listings := []models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, 0, fmt.Errorf("error decoding listings: %w", err)
	}
	return listings, total, nil
}

func (s *listingService) CountActiveBySeller(ctx context.Context, sig models.ItemSignature, sellerID utils.SixID) (int64, error) {
	filter := signatureFilter(sig)
	filter["status"] = models.ListingActive
	filter["seller_id"] = sellerID

	count, err := s.db.Collection(listingsCollection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("error counting own listings: %w", err)
	}
	return count, nil
}

func (s *listingService) DeactivateAllForSeller(ctx context.Context, sellerID utils.SixID) (int64, error) {
	res, err := s.db.Collection(listingsCollection).UpdateMany(ctx,
		bson.M{"seller_id": sellerID, "status": models.ListingActive},
		bson.M{"$set": bson.M{"status": models.ListingInactive, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, fmt.Errorf("error deactivating listings for %s: %w", sellerID.String(), err)
	}
	return res.ModifiedCount, nil
}

func (s *listingService) AddPhoto(ctx context.Context, listingID, callerID utils.SixID, key string) error {
	if key == "" {
		return NewValidationError("key", "photo key is required", "required")
	}

	listing, err := s.FindByID(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.SellerID != callerID {
		return ErrNotFound
	}
	if len(listing.Photos) >= s.maxPhotos {
		return ErrTooManyPhotos
	}

	photo := models.Photo{Key: key, UploadedAt: time.Now().UTC()}
	// Confirming the same key twice is harmless; the filter makes the second
	// push a no-op.
	_, err = s.db.Collection(listingsCollection).UpdateOne(ctx,
		bson.M{"_id": listingID, "seller_id": callerID, "photos.key": bson.M{"$ne": key}},
		bson.M{"$push": bson.M{"photos": photo}, "$set": bson.M{"updated_at": photo.UploadedAt}},
	)
	if err != nil {
		return fmt.Errorf("error adding photo to listing %s: %w", listingID.String(), err)
	}
	return nil
}

func (s *listingService) SetPhotoProcessed(ctx context.Context, listingID utils.SixID, key, processedKey string) error {
	_, err := s.db.Collection(listingsCollection).UpdateOne(ctx,
		bson.M{"_id": listingID, "photos.key": key},
		bson.M{"$set": bson.M{"photos.$.processed_key": processedKey, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("error marking photo processed for listing %s: %w", listingID.String(), err)
	}
	return nil
}
