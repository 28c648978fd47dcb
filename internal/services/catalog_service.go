package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/repuestosv/api/internal/models"
	"github.com/repuestosv/api/internal/utils"
)

// ICatalogService exposes the read-only vehicle/part reference data and
// validates item signatures against it.
type ICatalogService interface {
	GetBrands(ctx context.Context) ([]models.Brand, error)
	GetModels(ctx context.Context, brandID utils.SixID) ([]models.CarModel, error)
	GetYears(ctx context.Context) ([]models.Year, error)
	GetItemTypes(ctx context.Context) ([]models.ItemType, error)
	GetParts(ctx context.Context, itemTypeID utils.SixID) ([]models.Part, error)
	// ValidateSignature checks that every component exists and that the model
	// belongs to the brand and the part to the item type. Returns a
	// ValidationError describing the first inconsistency found.
	ValidateSignature(ctx context.Context, sig models.ItemSignature) error
}

const (
	brandsCollection    = "brands"
	carModelsCollection = "car_models"
	yearsCollection     = "years"
	itemTypesCollection = "item_types"
	partsCollection     = "parts"
)

type catalogService struct {
	db       *mongo.Database
	redis    *redis.Client
	cacheTTL time.Duration
}

// NewCatalogService creates a new CatalogService. redisClient may be nil, in
// which case caching is skipped.
func NewCatalogService(db *mongo.Database, redisClient *redis.Client, cacheTTL time.Duration) ICatalogService {
	return &catalogService{db: db, redis: redisClient, cacheTTL: cacheTTL}
}

// cachedList loads a catalog list through the Redis cache. Cache failures are
// logged and fall through to Mongo.
func cachedList[T any](ctx context.Context, s *catalogService, cacheKey string, load func(ctx context.Context) ([]T, error)) ([]T, error) {
	if s.redis != nil {
		raw, err := s.redis.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var out []T
			if jsonErr := json.Unmarshal(raw, &out); jsonErr == nil {
				return out, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("catalog cache read failed for %s: %v", cacheKey, err)
		}
	}

	out, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if raw, jsonErr := json.Marshal(out); jsonErr == nil {
			if err := s.redis.Set(ctx, cacheKey, raw, s.cacheTTL).Err(); err != nil {
				log.Printf("catalog cache write failed for %s: %v", cacheKey, err)
			}
		}
	}
	return out, nil
}

func findAll[T any](ctx context.Context, db *mongo.Database, collection string, filter bson.M, sort bson.D) ([]T, error) {
	cursor, err := db.Collection(collection).Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("error querying %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", collection, err)
	}
	return out, nil
}

func (s *catalogService) GetBrands(ctx context.Context) ([]models.Brand, error) {
	return cachedList(ctx, s, "catalog:brands", func(ctx context.Context) ([]models.Brand, error) {
		return findAll[models.Brand](ctx, s.db, brandsCollection, bson.M{}, bson.D{{Key: "name", Value: 1}})
	})
}

func (s *catalogService) GetModels(ctx context.Context, brandID utils.SixID) ([]models.CarModel, error) {
	key := "catalog:models:" + brandID.String()
	return cachedList(ctx, s, key, func(ctx context.Context) ([]models.CarModel, error) {
		return findAll[models.CarModel](ctx, s.db, carModelsCollection, bson.M{"brand_id": brandID}, bson.D{{Key: "name", Value: 1}})
	})
}

func (s *catalogService) GetYears(ctx context.Context) ([]models.Year, error) {
	return cachedList(ctx, s, "catalog:years", func(ctx context.Context) ([]models.Year, error) {
		return findAll[models.Year](ctx, s.db, yearsCollection, bson.M{}, bson.D{{Key: "value", Value: -1}})
	})
}

func (s *catalogService) GetItemTypes(ctx context.Context) ([]models.ItemType, error) {
	return cachedList(ctx, s, "catalog:item_types", func(ctx context.Context) ([]models.ItemType, error) {
		return findAll[models.ItemType](ctx, s.db, itemTypesCollection, bson.M{}, bson.D{{Key: "name", Value: 1}})
	})
}

func (s *catalogService) GetParts(ctx context.Context, itemTypeID utils.SixID) ([]models.Part, error) {
	key := "catalog:parts:" + itemTypeID.String()
	return cachedList(ctx, s, key, func(ctx context.Context) ([]models.Part, error) {
		return findAll[models.Part](ctx, s.db, partsCollection, bson.M{"item_type_id": itemTypeID}, bson.D{{Key: "name", Value: 1}})
	})
}

func (s *catalogService) ValidateSignature(ctx context.Context, sig models.ItemSignature) error {
	if !sig.Complete() {
		return NewValidationError("signature", "all signature components are required", "required")
	}

	exists := func(collection string, filter bson.M) (bool, error) {
		count, err := s.db.Collection(collection).CountDocuments(ctx, filter)
		if err != nil {
			return false, fmt.Errorf("error validating signature against %s: %w", collection, err)
		}
		return count > 0, nil
	}

	ok, err := exists(brandsCollection, bson.M{"_id": sig.BrandID})
	if err != nil {
		return err
	}
	if !ok {
		return NewValidationError("brandId", "unknown brand", "unknown")
	}

	// Model must belong to the brand, part to the item type.
	ok, err = exists(carModelsCollection, bson.M{"_id": sig.ModelID, "brand_id": sig.BrandID})
	if err != nil {
		return err
	}
	if !ok {
		return NewValidationError("modelId", "unknown model for brand", "unknown")
	}

	ok, err = exists(yearsCollection, bson.M{"_id": sig.YearID})
	if err != nil {
		return err
	}
	if !ok {
		return NewValidationError("yearId", "unknown year", "unknown")
	}

	ok, err = exists(itemTypesCollection, bson.M{"_id": sig.ItemTypeID})
	if err != nil {
		return err
	}
	if !ok {
		return NewValidationError("itemTypeId", "unknown item type", "unknown")
	}

	ok, err = exists(partsCollection, bson.M{"_id": sig.PartID, "item_type_id": sig.ItemTypeID})
	if err != nil {
		return err
	}
	if !ok {
		return NewValidationError("partId", "unknown part for item type", "unknown")
	}

	return nil
}
