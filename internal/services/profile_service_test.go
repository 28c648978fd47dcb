package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/repuestosv/api/internal/models"
	"github.com/repuestosv/api/internal/utils"
)

func TestProfileService_GetOrCreate(t *testing.T) {
	g := setupGraph(t, "testdb_profile_create")
	ctx := context.Background()
	userID := utils.NewSixID()

	profile, err := g.profile.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, profile.ID)
	assert.Equal(t, models.RoleBuyer, profile.Role)
	assert.Equal(t, g.cfg.SignupTokenGrant, profile.Tokens)
	assert.False(t, profile.Complete())

	// Second call returns the same document, no second grant.
	again, err := g.profile.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, profile.Tokens, again.Tokens)
	assert.Equal(t, profile.CreatedAt.Unix(), again.CreatedAt.Unix())
}

func TestProfileService_SetWhatsappNormalization(t *testing.T) {
	g := setupGraph(t, "testdb_profile_whatsapp")
	ctx := context.Background()
	userID := utils.NewSixID()

	status, err := g.profile.SetWhatsapp(ctx, userID, "7123-4567")
	require.NoError(t, err)
	require.NotNil(t, status.WhatsappE164)
	assert.Equal(t, "+50371234567", *status.WhatsappE164)
	assert.Equal(t, models.WhatsappUnverified, status.WhatsappStatus)
	assert.False(t, status.ProfileComplete)

	// Full international form is accepted as-is.
	status, err = g.profile.SetWhatsapp(ctx, userID, "+50371234567")
	require.NoError(t, err)
	assert.Equal(t, "+50371234567", *status.WhatsappE164)

	_, err = g.profile.SetWhatsapp(ctx, userID, "123")
	assert.ErrorIs(t, err, ErrInvalidWhatsapp)
	_, err = g.profile.SetWhatsapp(ctx, userID, "not a number")
	assert.ErrorIs(t, err, ErrInvalidWhatsapp)
}

func TestProfileService_WhatsappUniqueness(t *testing.T) {
	g := setupGraph(t, "testdb_profile_wa_unique")
	ctx := context.Background()

	first := utils.NewSixID()
	_, err := g.profile.SetWhatsapp(ctx, first, "71110001")
	require.NoError(t, err)

	second := utils.NewSixID()
	_, err = g.profile.SetWhatsapp(ctx, second, "71110001")
	assert.ErrorIs(t, err, ErrWhatsappInUse)

	// Released numbers become claimable.
	_, err = g.profile.SetWhatsapp(ctx, first, "")
	require.NoError(t, err)
	_, err = g.profile.SetWhatsapp(ctx, second, "71110001")
	assert.NoError(t, err)
}

func TestProfileService_ClearWhatsappCascades(t *testing.T) {
	g := setupGraph(t, "testdb_profile_wa_clear")
	ctx := context.Background()

	userID := createVerifiedProfile(t, g)
	listing, err := g.listing.Create(ctx, userID, validListingInput(g.sig))
	require.NoError(t, err)
	_, demand, err := g.demand.UpsertOnMiss(ctx, userID, seedCatalogSignature(t, g.db), "")
	require.NoError(t, err)

	status, err := g.profile.SetWhatsapp(ctx, userID, "")
	require.NoError(t, err)
	assert.Nil(t, status.WhatsappE164)
	assert.Equal(t, models.WhatsappMissing, status.WhatsappStatus)

	found, err := g.listing.FindByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingInactive, found.Status)

	foundDemand, err := g.demand.FindByID(ctx, demand.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DemandClosed, foundDemand.Status)
}

func TestProfileService_ChangeWhatsappCascades(t *testing.T) {
	g := setupGraph(t, "testdb_profile_wa_change")
	ctx := context.Background()

	userID := createVerifiedProfile(t, g)
	listing, err := g.listing.Create(ctx, userID, validListingInput(g.sig))
	require.NoError(t, err)
	_, demand, err := g.demand.UpsertOnMiss(ctx, userID, seedCatalogSignature(t, g.db), "")
	require.NoError(t, err)

	// A new number starts unverified; the old verified contact no longer
	// backs the published listing and demand.
	status, err := g.profile.SetWhatsapp(ctx, userID, "78889999")
	require.NoError(t, err)
	require.NotNil(t, status.WhatsappE164)
	assert.Equal(t, "+50378889999", *status.WhatsappE164)
	assert.Equal(t, models.WhatsappUnverified, status.WhatsappStatus)
	assert.False(t, status.ProfileComplete)

	found, err := g.listing.FindByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingInactive, found.Status)

	foundDemand, err := g.demand.FindByID(ctx, demand.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DemandClosed, foundDemand.Status)
}

func TestProfileService_VerificationFlow(t *testing.T) {
	g := setupGraph(t, "testdb_profile_verify")
	ctx := context.Background()
	userID := utils.NewSixID()

	// No number yet.
	err := g.profile.StartVerification(ctx, userID)
	assert.ErrorIs(t, err, ErrAddWhatsappFirst)

	_, err = g.profile.SetWhatsapp(ctx, userID, "72220001")
	require.NoError(t, err)

	require.NoError(t, g.profile.StartVerification(ctx, userID))
	require.Equal(t, 1, g.enqueuer.taskCount())
	assert.Equal(t, TaskTypeCodeDelivery, g.enqueuer.tasks[0].Type())

	var payload CodeDeliveryPayload
	require.NoError(t, json.Unmarshal(g.enqueuer.tasks[0].Payload(), &payload))
	assert.Equal(t, "+50372220001", payload.To)
	require.Len(t, payload.Code, 6)

	// Resend inside the wait window is throttled.
	err = g.profile.StartVerification(ctx, userID)
	assert.ErrorIs(t, err, ErrVerificationTooSoon)

	_, err = g.profile.ConfirmVerification(ctx, userID, "000000")
	assert.ErrorIs(t, err, ErrVerificationBadCode)

	status, err := g.profile.ConfirmVerification(ctx, userID, payload.Code)
	require.NoError(t, err)
	assert.Equal(t, models.WhatsappVerified, status.WhatsappStatus)
	assert.True(t, status.ProfileComplete)

	// Both re-verification entry points now refuse.
	err = g.profile.StartVerification(ctx, userID)
	assert.ErrorIs(t, err, ErrAlreadyVerified)
	_, err = g.profile.ConfirmVerification(ctx, userID, payload.Code)
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestProfileService_VerificationExpiryAndAttempts(t *testing.T) {
	g := setupGraph(t, "testdb_profile_verify_limits")
	ctx := context.Background()

	userID := utils.NewSixID()
	_, err := g.profile.SetWhatsapp(ctx, userID, "72220002")
	require.NoError(t, err)

	// Without ever requesting a code.
	_, err = g.profile.ConfirmVerification(ctx, userID, "123456")
	assert.ErrorIs(t, err, ErrVerificationExpired)

	require.NoError(t, g.profile.StartVerification(ctx, userID))

	// Burn through the attempt budget.
	for i := 0; i < g.cfg.VerificationMaxAttempts; i++ {
		_, err = g.profile.ConfirmVerification(ctx, userID, "999999")
		assert.ErrorIs(t, err, ErrVerificationBadCode)
	}
	_, err = g.profile.ConfirmVerification(ctx, userID, "999999")
	assert.ErrorIs(t, err, ErrVerificationExpired)

	// Expired codes are refused even if correct.
	other := utils.NewSixID()
	_, err = g.profile.SetWhatsapp(ctx, other, "72220003")
	require.NoError(t, err)
	require.NoError(t, g.profile.StartVerification(ctx, other))
	var otherPayload CodeDeliveryPayload
	require.NoError(t, json.Unmarshal(g.enqueuer.tasks[g.enqueuer.taskCount()-1].Payload(), &otherPayload))

	past := time.Now().UTC().Add(-time.Minute)
	_, err = g.db.Collection("profiles").UpdateByID(ctx, other, bson.M{
		"$set": bson.M{"whatsapp.code_expires_at": past},
	})
	require.NoError(t, err)
	_, err = g.profile.ConfirmVerification(ctx, other, otherPayload.Code)
	assert.ErrorIs(t, err, ErrVerificationExpired)
}

func TestProfileService_Tokens(t *testing.T) {
	g := setupGraph(t, "testdb_profile_tokens")
	ctx := context.Background()
	userID := utils.NewSixID()

	_, err := g.profile.GetOrCreate(ctx, userID)
	require.NoError(t, err)

	ok, err := g.profile.DebitTokensIfEnough(ctx, userID, g.cfg.SignupTokenGrant)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.profile.DebitTokensIfEnough(ctx, userID, 1)
	require.NoError(t, err)
	assert.False(t, ok, "Debit must fail on a zero balance")

	require.NoError(t, g.profile.CreditTokens(ctx, userID, 3))
	status, err := g.profile.GetStatus(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, status.Tokens)
}

func TestProfileService_EnsureSeller(t *testing.T) {
	g := setupGraph(t, "testdb_profile_role")
	ctx := context.Background()
	userID := utils.NewSixID()

	_, err := g.profile.GetOrCreate(ctx, userID)
	require.NoError(t, err)

	require.NoError(t, g.profile.EnsureSeller(ctx, userID))
	profile, err := g.profile.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSeller, profile.Role)

	// Idempotent, never downgrades.
	require.NoError(t, g.profile.EnsureSeller(ctx, userID))
	profile, err = g.profile.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSeller, profile.Role)
}
