package models

import (
	"time"

	"github.com/repuestosv/api/internal/utils"
)

// Listing statuses. A listing is born active; there is no draft state.
const (
	ListingActive   = "active"
	ListingInactive = "inactive"
)

// Pricing types.
const (
	PricingFixed      = "fixed"
	PricingNegotiable = "negotiable"
)

// Pricing defines the asked price of a listing.
type Pricing struct {
	Amount   float64 `bson:"amount" json:"amount"`
	Type     string  `bson:"type" json:"type"` // "fixed" or "negotiable"
	Currency string  `bson:"currency" json:"currency"`
}

// Location is the seller-declared place of the item.
type Location struct {
	Department   string `bson:"department" json:"department"`
	Municipality string `bson:"municipality,omitempty" json:"municipality,omitempty"`
}

// Photo is an S3 object attached to a listing. ProcessedKey is filled in by
// the image worker once the resized copy exists.
type Photo struct {
	Key          string    `bson:"key" json:"key"`
	ProcessedKey string    `bson:"processed_key,omitempty" json:"processedKey,omitempty"`
	UploadedAt   time.Time `bson:"uploaded_at" json:"uploadedAt"`
}

// Listing is a seller's offer of one part for one vehicle. The signature,
// pricing and location are embedded so a listing is a single document and its
// creation is a single atomic insert.
type Listing struct {
	ID           utils.SixID   `bson:"_id,omitempty" json:"id"`
	SellerID     utils.SixID   `bson:"seller_id" json:"sellerId"`
	Signature    ItemSignature `bson:"signature" json:"signature"`
	Title        string        `bson:"title" json:"title"`
	Description  string        `bson:"description,omitempty" json:"description,omitempty"`
	Condition    string        `bson:"condition,omitempty" json:"condition,omitempty"` // "new" or "used"
	Pricing      Pricing       `bson:"pricing" json:"pricing"`
	Location     *Location     `bson:"location,omitempty" json:"location,omitempty"`
	Photos       []Photo       `bson:"photos,omitempty" json:"photos,omitempty"`
	QualityScore int           `bson:"quality_score" json:"qualityScore"`
	Status       string        `bson:"status" json:"status"`
	CreatedAt    time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time     `bson:"updated_at" json:"updatedAt"`
}

func (l *Listing) GenID() {
	l.ID = utils.NewSixID()
}
