package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repuestosv/api/internal/utils"
)

func TestCatalogService_Lists(t *testing.T) {
	g := setupGraph(t, "testdb_catalog_lists")
	ctx := context.Background()

	brands, err := g.catalog.GetBrands(ctx)
	require.NoError(t, err)
	require.Len(t, brands, 1)
	assert.Equal(t, "Toyota", brands[0].Name)

	catalogModels, err := g.catalog.GetModels(ctx, g.sig.BrandID)
	require.NoError(t, err)
	require.Len(t, catalogModels, 1)
	assert.Equal(t, "Corolla", catalogModels[0].Name)

	// Unknown brand yields an empty list, not an error.
	catalogModels, err = g.catalog.GetModels(ctx, utils.NewSixID())
	require.NoError(t, err)
	assert.Empty(t, catalogModels)

	years, err := g.catalog.GetYears(ctx)
	require.NoError(t, err)
	require.Len(t, years, 1)
	assert.Equal(t, 2012, years[0].Value)

	parts, err := g.catalog.GetParts(ctx, g.sig.ItemTypeID)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "Bumper", parts[0].Name)
}

func TestCatalogService_ValidateSignature(t *testing.T) {
	g := setupGraph(t, "testdb_catalog_validate")
	ctx := context.Background()

	assert.NoError(t, g.catalog.ValidateSignature(ctx, g.sig))

	var verr *ValidationError

	incomplete := g.sig
	incomplete.YearID = utils.SixID{}
	err := g.catalog.ValidateSignature(ctx, incomplete)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "signature", verr.Issues[0].Path)

	unknownBrand := g.sig
	unknownBrand.BrandID = utils.NewSixID()
	err = g.catalog.ValidateSignature(ctx, unknownBrand)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "brandId", verr.Issues[0].Path)

	unknownPart := g.sig
	unknownPart.PartID = utils.NewSixID()
	err = g.catalog.ValidateSignature(ctx, unknownPart)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "partId", verr.Issues[0].Path)
}

func TestCatalogService_ValidateCrossReferences(t *testing.T) {
	g := setupGraph(t, "testdb_catalog_cross")
	ctx := context.Background()

	// A second consistent chain to mix components from.
	otherSig := seedCatalogSignature(t, g.db)

	var verr *ValidationError

	// Model exists but belongs to the other brand.
	crossed := g.sig
	crossed.ModelID = otherSig.ModelID
	err := g.catalog.ValidateSignature(ctx, crossed)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "modelId", verr.Issues[0].Path)

	// Part exists but belongs to the other item type.
	crossed = g.sig
	crossed.PartID = otherSig.PartID
	err = g.catalog.ValidateSignature(ctx, crossed)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "partId", verr.Issues[0].Path)
}
