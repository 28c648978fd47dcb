package models

import (
	"github.com/repuestosv/api/internal/utils"
)

// Brand is a vehicle manufacturer (Toyota, Hyundai, ...).
type Brand struct {
	ID   utils.SixID `bson:"_id,omitempty" json:"id"`
	Name string      `bson:"name" json:"name"`
}

// CarModel is a model belonging to a brand (Corolla, Accent, ...).
type CarModel struct {
	ID      utils.SixID `bson:"_id,omitempty" json:"id"`
	BrandID utils.SixID `bson:"brand_id" json:"brandId"`
	Name    string      `bson:"name" json:"name"`
}

// Year is a model year usable in item signatures.
type Year struct {
	ID    utils.SixID `bson:"_id,omitempty" json:"id"`
	Value int         `bson:"value" json:"value"`
}

// ItemType is a coarse part category (engine, suspension, body, ...).
type ItemType struct {
	ID   utils.SixID `bson:"_id,omitempty" json:"id"`
	Name string      `bson:"name" json:"name"`
}

// Part is a concrete part kind belonging to an item type.
type Part struct {
	ID         utils.SixID `bson:"_id,omitempty" json:"id"`
	ItemTypeID utils.SixID `bson:"item_type_id" json:"itemTypeId"`
	Name       string      `bson:"name" json:"name"`
}
