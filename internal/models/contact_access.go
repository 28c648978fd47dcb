package models

import (
	"time"

	"github.com/repuestosv/api/internal/utils"
)

// Reveal target kinds.
const (
	TargetListing = "listing"
	TargetDemand  = "demand"
)

// ContactAccess is the durable record of one requester having paid to see one
// target's contact. The unique (requester, target) index on this collection is
// what makes repeat reveals free: a second reveal finds the row and skips the
// charge.
type ContactAccess struct {
	ID            utils.SixID `bson:"_id,omitempty" json:"id"`
	RequesterID   utils.SixID `bson:"requester_id" json:"requesterId"`
	TargetKind    string      `bson:"target_kind" json:"targetKind"`
	TargetID      utils.SixID `bson:"target_id" json:"targetId"`
	TargetOwnerID utils.SixID `bson:"target_owner_id" json:"targetOwnerId"`
	TokensSpent   int         `bson:"tokens_spent" json:"tokensSpent"`
	CreatedAt     time.Time   `bson:"created_at" json:"createdAt"`
}

func (a *ContactAccess) GenID() {
	a.ID = utils.NewSixID()
}
