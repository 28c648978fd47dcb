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

// Demand upsert outcomes, reported to the caller for messaging purposes.
const (
	DemandCreated  = "created"
	DemandExisting = "existing"
	DemandUpdated  = "updated"
)

// DemandFilter is the optional signature filter of a SELL-mode browse. Zero
// components are not filtered on.
type DemandFilter struct {
	BrandID    *utils.SixID
	ModelID    *utils.SixID
	YearID     *utils.SixID
	ItemTypeID *utils.SixID
	PartID     *utils.SixID
}

// IDemandService manages implicit buyer demand records.
type IDemandService interface {
	// UpsertOnMiss registers an open demand for (requester, signature),
	// reconciling with an existing one instead of failing: the outcome is
	// "created", "existing" (identical details) or "updated" (details
	// refreshed).
	UpsertOnMiss(ctx context.Context, requesterID utils.SixID, sig models.ItemSignature, detailsText string) (string, *models.Demand, error)
	FindByID(ctx context.Context, demandID utils.SixID) (*models.Demand, error)
	// SearchOpen lists open demands matching the filter, newest first.
	SearchOpen(ctx context.Context, filter DemandFilter, page, pageSize int) ([]models.Demand, int64, error)
	// ListByRequester lists every demand of a requester, newest first,
	// regardless of status.
	ListByRequester(ctx context.Context, requesterID utils.SixID) ([]models.Demand, error)
	CloseAllForRequester(ctx context.Context, requesterID utils.SixID) (int64, error)
	// CloseStale closes open demands older than maxAge. Run periodically by
	// the background worker to keep the SELL feed honest.
	CloseStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

const demandsCollection = "demands"

// demandService implements IDemandService.
type demandService struct {
	db *mongo.Database
}

// NewDemandService creates a new DemandService.
func NewDemandService(database *mongo.Database) IDemandService {
	return &demandService{db: database}
}

// UpsertOnMiss inserts first and reconciles on conflict. The unique partial
// index on (requester, signature, open) is authoritative; losing the insert
// race to a concurrent identical search is not an error.
func (s *demandService) UpsertOnMiss(ctx context.Context, requesterID utils.SixID, sig models.ItemSignature, detailsText string) (string, *models.Demand, error) {
	collection := s.db.Collection(demandsCollection)
	now := time.Now().UTC()

	demand := &models.Demand{
		RequesterID: requesterID,
		Signature:   sig,
		DetailsText: detailsText,
		Status:      models.DemandOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := db.InsertOne(ctx, collection, demand)
	if err == nil {
		return DemandCreated, demand, nil
	}
	if !db.IsDuplicateKeyOnIndex(err, db.IdxOpenRequesterSignature) {
		return "", nil, fmt.Errorf("error inserting demand: %w", err)
	}

	// An open demand already exists; refresh its details if the caller
	// supplied new ones.
	filter := signatureFilter(sig)
	filter["requester_id"] = requesterID
	filter["status"] = models.DemandOpen

	var existing models.Demand
	if err := collection.FindOne(ctx, filter).Decode(&existing); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// The conflicting demand vanished between insert and lookup
			// (closed concurrently). Treat as existing; the next search will
			// recreate it.
			return DemandExisting, nil, nil
		}
		return "", nil, fmt.Errorf("error loading existing demand: %w", err)
	}

	if detailsText == "" || detailsText == existing.DetailsText {
		return DemandExisting, &existing, nil
	}

	update := bson.M{"$set": bson.M{"details_text": detailsText, "updated_at": now}}
	if _, err := collection.UpdateByID(ctx, existing.ID, update); err != nil {
		return "", nil, fmt.Errorf("error updating demand details: %w", err)
	}
	existing.DetailsText = detailsText
	existing.UpdatedAt = now
	return DemandUpdated, &existing, nil
}

func (s *demandService) FindByID(ctx context.Context, demandID utils.SixID) (*models.Demand, error) {
	var demand models.Demand
	err := s.db.Collection(demandsCollection).FindOne(ctx, bson.M{"_id": demandID}).Decode(&demand)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding demand %s: %w", demandID.String(), err)
	}
	return &demand, nil
}

func (s *demandService) SearchOpen(ctx context.Context, filter DemandFilter, page, pageSize int) ([]models.Demand, int64, error) {
	collection := s.db.Collection(demandsCollection)

	query := bson.M{"status": models.DemandOpen}
	if filter.BrandID != nil {
		query["signature.brand_id"] = *filter.BrandID
	}
	if filter.ModelID != nil {
		query["signature.model_id"] = *filter.ModelID
	}
	if filter.YearID != nil {
		query["signature.year_id"] = *filter.YearID
	}
	if filter.ItemTypeID != nil {
		query["signature.item_type_id"] = *filter.ItemTypeID
	}
	if filter.PartID != nil {
		query["signature.part_id"] = *filter.PartID
	}

	total, err := collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting demands: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("error searching demands: %w", err)
	}
	defer cursor.Close(ctx)

	demands := []models.Demand{}
	if err := cursor.All(ctx, &demands); err != nil {
		return nil, 0, fmt.Errorf("error decoding demands: %w", err)
	}
	return demands, total, nil
}

func (s *demandService) ListByRequester(ctx context.Context, requesterID utils.SixID) ([]models.Demand, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(demandsCollection).Find(ctx, bson.M{"requester_id": requesterID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing demands for %s: %w", requesterID.String(), err)
	}
	defer cursor.Close(ctx)

	demands := []models.Demand{}
	if err := cursor.All(ctx, &demands); err != nil {
		return nil, fmt.Errorf("error decoding demands: %w", err)
	}
	return demands, nil
}

func (s *demandService) CloseAllForRequester(ctx context.Context, requesterID utils.SixID) (int64, error) {
	res, err := s.db.Collection(demandsCollection).UpdateMany(ctx,
		bson.M{"requester_id": requesterID, "status": models.DemandOpen},
		bson.M{"$set": bson.M{"status": models.DemandClosed, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, fmt.Errorf("error closing demands for %s: %w", requesterID.String(), err)
	}
	return res.ModifiedCount, nil
}

func (s *demandService) CloseStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := s.db.Collection(demandsCollection).UpdateMany(ctx,
		bson.M{"status": models.DemandOpen, "created_at": bson.M{"$lt": cutoff}},
		bson.M{"$set": bson.M{"status": models.DemandClosed, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, fmt.Errorf("error closing stale demands: %w", err)
	}
	return res.ModifiedCount, nil
}
