package db

import (
	"errors"
	"fmt"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/repuestosv/api/internal/utils"
)

func duplicateKeyError(indexName, key string) error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code:    11000,
		Message: fmt.Sprintf("E11000 duplicate key error collection: test.listings index: %s dup key: { : \"%s\" }", indexName, key),
	}}}
}

func TestWithRetries_SuccessFirstAttempt(t *testing.T) {
	var calls int
	err := WithRetries(func() error {
		calls++
		return nil
	}, 3, IsMongoDuplicateKeyError)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestWithRetries_OtherErrorsNotRetried(t *testing.T) {
	var calls int
	boom := errors.New("connection reset")
	err := WithRetries(func() error {
		calls++
		return boom
	}, 3, IsMongoDuplicateKeyError)
	if !errors.Is(err, boom) {
		t.Errorf("Expected %v, got %v", boom, err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestWithRetries_ExhaustsRetries(t *testing.T) {
	var calls int
	maxRetries := 3
	err := WithRetries(func() error {
		calls++
		return duplicateKeyError("_id_", utils.NewSixID().String())
	}, maxRetries, IsMongoDuplicateKeyError)
	if err == nil {
		t.Fatal("Expected a duplicate key error, got nil")
	}
	if !IsMongoDuplicateKeyError(err) {
		t.Errorf("Expected a duplicate key error, got %T: %v", err, err)
	}
	if calls != maxRetries+1 {
		t.Errorf("Expected %d calls, got %d", maxRetries+1, calls)
	}
}

func TestWithRetries_IDCollisionResolves(t *testing.T) {
	originalHook := utils.NewSixIDHook
	defer func() { utils.NewSixIDHook = originalHook }()

	taken := utils.SixID{1, 2, 3, 4, 5, 1}
	fresh := utils.SixID{1, 2, 3, 4, 5, 2}
	sequence := []utils.SixID{taken, fresh}
	hookCalls := 0
	utils.NewSixIDHook = func() (utils.SixID, bool) {
		if hookCalls < len(sequence) {
			id := sequence[hookCalls]
			hookCalls++
			return id, true
		}
		return utils.SixID{}, false
	}

	inserted := map[utils.SixID]bool{taken: true}
	var calls int
	err := WithRetries(func() error {
		calls++
		id := utils.NewSixID()
		if inserted[id] {
			return duplicateKeyError("_id_", id.String())
		}
		inserted[id] = true
		return nil
	}, 3, IsMongoDuplicateKeyError)

	if err != nil {
		t.Fatalf("Expected collision to resolve, got %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
	if !inserted[fresh] {
		t.Error("Expected the regenerated ID to be inserted")
	}
}

func TestIsDuplicateKeyOnIndex(t *testing.T) {
	err := duplicateKeyError(IdxActiveSellerSignature, "abc")
	if !IsDuplicateKeyOnIndex(err, IdxActiveSellerSignature) {
		t.Error("Expected match on the named index")
	}
	if IsDuplicateKeyOnIndex(err, "_id_") {
		t.Error("Expected no match on a different index")
	}
	if IsDuplicateKeyOnIndex(errors.New("nope"), IdxActiveSellerSignature) {
		t.Error("Expected non-mongo errors to never match")
	}
}
