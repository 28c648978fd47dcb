package models

import (
	"time"

	"github.com/repuestosv/api/internal/utils"
)

// Demand statuses. "closed" is the single canonical non-open state.
const (
	DemandOpen   = "open"
	DemandClosed = "closed"
)

// Demand records that a buyer searched for a part nobody was selling. It is
// created implicitly by an empty BUY search, never by an explicit "post a
// demand" action.
type Demand struct {
	ID          utils.SixID   `bson:"_id,omitempty" json:"id"`
	RequesterID utils.SixID   `bson:"requester_id" json:"requesterId"`
	Signature   ItemSignature `bson:"signature" json:"signature"`
	DetailsText string        `bson:"details_text,omitempty" json:"detailsText,omitempty"`
	Status      string        `bson:"status" json:"status"`
	CreatedAt   time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updated_at" json:"updatedAt"`
}

func (d *Demand) GenID() {
	d.ID = utils.NewSixID()
}
