package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/repuestosv/api/internal/config"
	"github.com/repuestosv/api/internal/db"
	"github.com/repuestosv/api/internal/models"
	"github.com/repuestosv/api/internal/ratelimit"
	"github.com/repuestosv/api/internal/utils"
)

// captureEnqueuer records enqueued tasks instead of talking to Redis.
type captureEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (c *captureEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("test-%d", len(c.tasks)), Type: task.Type()}, nil
}

func (c *captureEnqueuer) taskCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

func testConfig() *config.Config {
	return &config.Config{
		RevealTokenCost:         1,
		RevealMinInterval:       0,
		RevealWindowLimit:       100,
		RevealWindow:            time.Minute,
		RevealDailyLimit:        100,
		SignupTokenGrant:        5,
		DefaultCountryCode:      "+503",
		LocalNumberDigits:       8,
		VerificationCodeTTL:     10 * time.Minute,
		VerificationResendWait:  time.Minute,
		VerificationHourlyLimit: 3,
		VerificationMaxAttempts: 5,
		DemandMaxAge:            90 * 24 * time.Hour,
		DefaultPageSize:         20,
		MaxPageSize:             50,
		MaxPhotosPerListing:     6,
	}
}

// serviceGraph is the fully wired service set backed by a clean test database.
type serviceGraph struct {
	db       *mongo.Database
	cfg      *config.Config
	enqueuer *captureEnqueuer
	catalog  ICatalogService
	profile  IProfileService
	listing  IListingService
	demand   IDemandService
	search   ISearchService
	reveal   IRevealService
	sig      models.ItemSignature
}

// setupGraph builds all services against a dropped-and-reindexed database and
// seeds one valid catalog signature.
func setupGraph(t *testing.T, dbName string) *serviceGraph {
	t.Helper()
	database := utils.SetupTestDB(t, dbName,
		"listings", "demands", "profiles", "contact_access",
		"brands", "car_models", "years", "item_types", "parts")
	require.NoError(t, db.EnsureIndexes(context.Background(), database), "Failed to ensure indexes")

	cfg := testConfig()
	enqueuer := &captureEnqueuer{}
	limiter := ratelimit.NewMemoryLimiter()

	catalog := NewCatalogService(database, nil, 0)
	profile := NewProfileService(database, cfg, limiter, enqueuer)
	listing := NewListingService(database, catalog, profile, cfg.MaxPhotosPerListing)
	demand := NewDemandService(database)
	profile.SetListingService(listing)
	profile.SetDemandService(demand)
	search := NewSearchService(cfg, catalog, listing, demand, profile)
	reveal := NewRevealService(database, cfg, limiter, profile, listing, demand)

	g := &serviceGraph{
		db:       database,
		cfg:      cfg,
		enqueuer: enqueuer,
		catalog:  catalog,
		profile:  profile,
		listing:  listing,
		demand:   demand,
		search:   search,
		reveal:   reveal,
	}
	g.sig = seedCatalogSignature(t, database)
	return g
}

// seedCatalogSignature inserts one consistent brand/model/year/type/part chain
// and returns its signature.
func seedCatalogSignature(t *testing.T, database *mongo.Database) models.ItemSignature {
	t.Helper()
	ctx := context.Background()

	sig := models.ItemSignature{
		BrandID:    utils.NewSixID(),
		ModelID:    utils.NewSixID(),
		YearID:     utils.NewSixID(),
		ItemTypeID: utils.NewSixID(),
		PartID:     utils.NewSixID(),
	}

	_, err := database.Collection("brands").InsertOne(ctx, models.Brand{ID: sig.BrandID, Name: "Toyota"})
	require.NoError(t, err)
	_, err = database.Collection("car_models").InsertOne(ctx, models.CarModel{ID: sig.ModelID, BrandID: sig.BrandID, Name: "Corolla"})
	require.NoError(t, err)
	_, err = database.Collection("years").InsertOne(ctx, models.Year{ID: sig.YearID, Value: 2012})
	require.NoError(t, err)
	_, err = database.Collection("item_types").InsertOne(ctx, models.ItemType{ID: sig.ItemTypeID, Name: "Body"})
	require.NoError(t, err)
	_, err = database.Collection("parts").InsertOne(ctx, models.Part{ID: sig.PartID, ItemTypeID: sig.ItemTypeID, Name: "Bumper"})
	require.NoError(t, err)

	return sig
}

var testPhoneSeq int

// createVerifiedProfile makes a profile with a verified WhatsApp number so it
// can list, register demand and reveal.
func createVerifiedProfile(t *testing.T, g *serviceGraph) utils.SixID {
	t.Helper()
	ctx := context.Background()
	userID := utils.NewSixID()

	_, err := g.profile.GetOrCreate(ctx, userID)
	require.NoError(t, err)

	testPhoneSeq++
	number := fmt.Sprintf("7%07d", testPhoneSeq)
	_, err = g.profile.SetWhatsapp(ctx, userID, number)
	require.NoError(t, err)

	// Flip the verified flag directly; the code flow has its own tests.
	_, err = g.db.Collection("profiles").UpdateByID(ctx, userID, bson.M{
		"$set": bson.M{"whatsapp.verified": true, "whatsapp.verified_at": time.Now().UTC()},
	})
	require.NoError(t, err)
	return userID
}

func validListingInput(sig models.ItemSignature) CreateListingInput {
	return CreateListingInput{
		Signature: sig,
		Title:     "Front bumper",
		Condition: "used",
		Pricing:   models.Pricing{Amount: 50, Type: models.PricingFixed, Currency: "USD"},
		Location:  &models.Location{Department: "San Salvador"},
	}
}
