package db

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// IDGenerator is satisfied by models embedding a generated ID.
type IDGenerator interface {
	GenID()
}

// InsertOne inserts doc, generating a fresh ID on every attempt and retrying
// _id collisions. A duplicate key error on any other unique index is a
// business conflict and is returned to the caller immediately for
// classification.
func InsertOne(ctx context.Context, collection *mongo.Collection, doc IDGenerator) (interface{}, error) {
	err := WithRetries(func() error {
		doc.GenID()
		_, insertErr := collection.InsertOne(ctx, doc)
		return insertErr
	}, DefaultMaxRetries, func(err error) bool {
		return IsDuplicateKeyOnIndex(err, "_id_")
	})
	return doc, err
}
