package models

import (
	"github.com/repuestosv/api/internal/utils"
)

// ItemSignature identifies a specific part for a specific vehicle. Two
// listings (or demands) about the same part for the same vehicle carry equal
// signatures, which is what makes supply/demand matching possible.
type ItemSignature struct {
	BrandID    utils.SixID `bson:"brand_id" json:"brandId"`
	ModelID    utils.SixID `bson:"model_id" json:"modelId"`
	YearID     utils.SixID `bson:"year_id" json:"yearId"`
	ItemTypeID utils.SixID `bson:"item_type_id" json:"itemTypeId"`
	PartID     utils.SixID `bson:"part_id" json:"partId"`
}

// Complete reports whether every component of the signature is set.
func (s ItemSignature) Complete() bool {
	zero := utils.SixID{}
	return s.BrandID != zero && s.ModelID != zero && s.YearID != zero &&
		s.ItemTypeID != zero && s.PartID != zero
}
