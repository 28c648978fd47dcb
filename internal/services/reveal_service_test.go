package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/repuestosv/api/internal/models"
	"github.com/repuestosv/api/internal/utils"
)

func tokensOf(t *testing.T, g *serviceGraph, userID utils.SixID) int {
	t.Helper()
	status, err := g.profile.GetStatus(context.Background(), userID)
	require.NoError(t, err)
	return status.Tokens
}

func TestRevealService_ListingRevealAndIdempotence(t *testing.T) {
	g := setupGraph(t, "testdb_reveal_listing")
	ctx := context.Background()

	sellerID := createVerifiedProfile(t, g)
	listing, err := g.listing.Create(ctx, sellerID, validListingInput(g.sig))
	require.NoError(t, err)

	buyerID := createVerifiedProfile(t, g)
	before := tokensOf(t, g, buyerID)

	result, err := g.reveal.Reveal(ctx, buyerID, RevealTarget{ListingID: &listing.ID})
	require.NoError(t, err)
	assert.True(t, result.DidConsume)
	assert.Equal(t, models.TargetListing, result.TargetKind)
	assert.Contains(t, result.WhatsappURL, "wa.me/")
	assert.Equal(t, before-1, tokensOf(t, g, buyerID))

	// Second reveal of the same listing is free.
	again, err := g.reveal.Reveal(ctx, buyerID, RevealTarget{ListingID: &listing.ID})
	require.NoError(t, err)
	assert.False(t, again.DidConsume)
	assert.Equal(t, result.WhatsappURL, again.WhatsappURL)
	assert.Equal(t, before-1, tokensOf(t, g, buyerID))
}

func TestRevealService_DemandReveal(t *testing.T) {
	g := setupGraph(t, "testdb_reveal_demand")
	ctx := context.Background()

	buyerID := createVerifiedProfile(t, g)
	_, demand, err := g.demand.UpsertOnMiss(ctx, buyerID, g.sig, "need it")
	require.NoError(t, err)

	sellerID := createVerifiedProfile(t, g)
	result, err := g.reveal.Reveal(ctx, sellerID, RevealTarget{DemandID: &demand.ID})
	require.NoError(t, err)
	assert.True(t, result.DidConsume)
	assert.Equal(t, models.TargetDemand, result.TargetKind)
	assert.Equal(t, demand.ID, result.TargetID)
}

func TestRevealService_SelfRevealBlocked(t *testing.T) {
	g := setupGraph(t, "testdb_reveal_self")
	ctx := context.Background()

	sellerID := createVerifiedProfile(t, g)
	listing, err := g.listing.Create(ctx, sellerID, validListingInput(g.sig))
	require.NoError(t, err)

	before := tokensOf(t, g, sellerID)
	_, err = g.reveal.Reveal(ctx, sellerID, RevealTarget{ListingID: &listing.ID})
	assert.ErrorIs(t, err, ErrCannotRevealOwn)
	assert.Equal(t, before, tokensOf(t, g, sellerID))

	_, demand, err := g.demand.UpsertOnMiss(ctx, sellerID, seedCatalogSignature(t, g.db), "")
	require.NoError(t, err)
	_, err = g.reveal.Reveal(ctx, sellerID, RevealTarget{DemandID: &demand.ID})
	assert.ErrorIs(t, err, ErrOwnDemandBlocked)
}

func TestRevealService_RequesterMustBeComplete(t *testing.T) {
	g := setupGraph(t, "testdb_reveal_incomplete")
	ctx := context.Background()

	sellerID := createVerifiedProfile(t, g)
	listing, err := g.listing.Create(ctx, sellerID, validListingInput(g.sig))
	require.NoError(t, err)

	bareID := utils.NewSixID()
	_, err = g.reveal.Reveal(ctx, bareID, RevealTarget{ListingID: &listing.ID})
	assert.ErrorIs(t, err, ErrWhatsappRequired)
}

func TestRevealService_InactiveTargetRejected(t *testing.T) {
	g := setupGraph(t, "testdb_reveal_inactive")
	ctx := context.Background()

	sellerID := createVerifiedProfile(t, g)
	listing, err := g.listing.Create(ctx, sellerID, validListingInput(g.sig))
	require.NoError(t, err)
	_, err = g.listing.SetStatus(ctx, listing.ID, sellerID, models.ListingInactive)
	require.NoError(t, err)

	buyerID := createVerifiedProfile(t, g)
	before := tokensOf(t, g, buyerID)
	_, err = g.reveal.Reveal(ctx, buyerID, RevealTarget{ListingID: &listing.ID})
	assert.ErrorIs(t, err, ErrListingNotActive)
	assert.Equal(t, before, tokensOf(t, g, buyerID))
}

func TestRevealService_InsufficientTokens(t *testing.T) {
	g := setupGraph(t, "testdb_reveal_broke")
	ctx := context.Background()

	sellerID := createVerifiedProfile(t, g)
	listing, err := g.listing.Create(ctx, sellerID, validListingInput(g.sig))
	require.NoError(t, err)

	buyerID := createVerifiedProfile(t, g)
	_, err = g.db.Collection("profiles").UpdateByID(ctx, buyerID, bson.M{"$set": bson.M{"tokens": 0}})
	require.NoError(t, err)

	_, err = g.reveal.Reveal(ctx, buyerID, RevealTarget{ListingID: &listing.ID})
	assert.ErrorIs(t, err, ErrInsufficientTokens)

	// No access row must exist after a failed charge.
	count, err := g.db.Collection("contact_access").CountDocuments(ctx, bson.M{"requester_id": buyerID})
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestRevealService_TargetValidation(t *testing.T) {
	g := setupGraph(t, "testdb_reveal_target")
	ctx := context.Background()

	buyerID := createVerifiedProfile(t, g)

	var verr *ValidationError
	_, err := g.reveal.Reveal(ctx, buyerID, RevealTarget{})
	assert.ErrorAs(t, err, &verr)

	listingID := utils.NewSixID()
	demandID := utils.NewSixID()
	_, err = g.reveal.Reveal(ctx, buyerID, RevealTarget{ListingID: &listingID, DemandID: &demandID})
	assert.ErrorAs(t, err, &verr)

	_, err = g.reveal.Reveal(ctx, buyerID, RevealTarget{ListingID: &listingID})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevealService_DailyCap(t *testing.T) {
	g := setupGraph(t, "testdb_reveal_cap")
	ctx := context.Background()

	g.cfg.RevealDailyLimit = 1

	sellerID := createVerifiedProfile(t, g)
	listing, err := g.listing.Create(ctx, sellerID, validListingInput(g.sig))
	require.NoError(t, err)

	buyerID := createVerifiedProfile(t, g)
	_, err = g.reveal.Reveal(ctx, buyerID, RevealTarget{ListingID: &listing.ID})
	require.NoError(t, err)

	_, err = g.reveal.Reveal(ctx, buyerID, RevealTarget{ListingID: &listing.ID})
	assert.ErrorIs(t, err, ErrRateLimitExceeded)
}
