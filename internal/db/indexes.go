package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Index names referenced by services when classifying duplicate key errors.
// Keep these in sync with EnsureIndexes.
const (
	IdxActiveSellerSignature  = "uniq_active_seller_signature"
	IdxOpenRequesterSignature = "uniq_open_requester_signature"
	IdxProfileWhatsapp        = "uniq_whatsapp_e164"
	IdxContactAccessPair      = "uniq_requester_target"
)

var signatureKeys = []string{
	"signature.brand_id",
	"signature.model_id",
	"signature.year_id",
	"signature.item_type_id",
	"signature.part_id",
}

// EnsureIndexes creates every index the application relies on. The unique
// partial indexes carry the invariants (one active listing / open demand per
// signature, one contact number per profile, one charge per requester+target);
// the rest exist for search. Safe to call on every startup, index creation is
// idempotent.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sigAndOwner := func(owner string) bson.D {
		keys := bson.D{{Key: owner, Value: 1}}
		for _, k := range signatureKeys {
			keys = append(keys, bson.E{Key: k, Value: 1})
		}
		return keys
	}

	listingIndexes := []mongo.IndexModel{
		{
			Keys: sigAndOwner("seller_id"),
			Options: options.Index().
				SetName(IdxActiveSellerSignature).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": "active"}),
		},
		{
			// BUY search: active listings matching a full signature, newest first.
			Keys: append(bson.D{{Key: "status", Value: 1}},
				append(toKeys(signatureKeys), bson.E{Key: "created_at", Value: -1})...),
			Options: options.Index().SetName("search_active_signature"),
		},
		{
			Keys:    bson.D{{Key: "seller_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("seller_status"),
		},
	}
	if _, err := database.Collection("listings").Indexes().CreateMany(ctx, listingIndexes); err != nil {
		return fmt.Errorf("failed to create listing indexes: %w", err)
	}

	demandIndexes := []mongo.IndexModel{
		{
			Keys: sigAndOwner("requester_id"),
			Options: options.Index().
				SetName(IdxOpenRequesterSignature).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": "open"}),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("status_created"),
		},
		{
			Keys:    bson.D{{Key: "requester_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("requester_status"),
		},
	}
	if _, err := database.Collection("demands").Indexes().CreateMany(ctx, demandIndexes); err != nil {
		return fmt.Errorf("failed to create demand indexes: %w", err)
	}

	profileIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "whatsapp.number_e164", Value: 1}},
			Options: options.Index().
				SetName(IdxProfileWhatsapp).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"whatsapp.number_e164": bson.M{"$exists": true}}),
		},
	}
	if _, err := database.Collection("profiles").Indexes().CreateMany(ctx, profileIndexes); err != nil {
		return fmt.Errorf("failed to create profile indexes: %w", err)
	}

	accessIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "requester_id", Value: 1},
				{Key: "target_kind", Value: 1},
				{Key: "target_id", Value: 1},
			},
			Options: options.Index().SetName(IdxContactAccessPair).SetUnique(true),
		},
	}
	if _, err := database.Collection("contact_access").Indexes().CreateMany(ctx, accessIndexes); err != nil {
		return fmt.Errorf("failed to create contact access indexes: %w", err)
	}

	if _, err := database.Collection("car_models").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "brand_id", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetName("brand_name"),
	}); err != nil {
		return fmt.Errorf("failed to create car model indexes: %w", err)
	}
	if _, err := database.Collection("parts").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "item_type_id", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetName("item_type_name"),
	}); err != nil {
		return fmt.Errorf("failed to create part indexes: %w", err)
	}

	return nil
}

func toKeys(fields []string) bson.D {
	keys := make(bson.D, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	return keys
}
