package models

import (
	"time"

	"github.com/repuestosv/api/internal/utils"
)

// Profile roles. A buyer becomes a seller the first time they publish a
// listing; the role never downgrades.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
)

// Whatsapp contact states surfaced by the profile status endpoint.
const (
	WhatsappMissing    = "missing"
	WhatsappUnverified = "unverified"
	WhatsappVerified   = "verified"
)

// WhatsappContact is the stored contact channel of a profile. The verification
// code is kept bcrypt-hashed; the plaintext only ever exists in the delivery
// task payload.
type WhatsappContact struct {
	NumberE164     string     `bson:"number_e164" json:"numberE164"`
	Verified       bool       `bson:"verified" json:"verified"`
	VerifiedAt     *time.Time `bson:"verified_at,omitempty" json:"verifiedAt,omitempty"`
	CodeHash       string     `bson:"code_hash,omitempty" json:"-"`
	CodeExpiresAt  *time.Time `bson:"code_expires_at,omitempty" json:"-"`
	CodeAttempts   int        `bson:"code_attempts" json:"-"`
	CodeLastSentAt *time.Time `bson:"code_last_sent_at,omitempty" json:"-"`
}

// Profile is the marketplace-side record of an authenticated user. The ID is
// the subject of the bearer token; profiles are created lazily on first use.
type Profile struct {
	ID          utils.SixID      `bson:"_id" json:"id"`
	Role        string           `bson:"role" json:"role"`
	DisplayName string           `bson:"display_name,omitempty" json:"displayName,omitempty"`
	Tokens      int              `bson:"tokens" json:"tokens"`
	Whatsapp    *WhatsappContact `bson:"whatsapp,omitempty" json:"whatsapp,omitempty"`
	CreatedAt   time.Time        `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time        `bson:"updated_at" json:"updatedAt"`
}

// WhatsappStatus derives the contact state used in profile completeness
// checks.
func (p *Profile) WhatsappStatus() string {
	if p.Whatsapp == nil || p.Whatsapp.NumberE164 == "" {
		return WhatsappMissing
	}
	if !p.Whatsapp.Verified {
		return WhatsappUnverified
	}
	return WhatsappVerified
}

// Complete reports whether the profile can act as a counterparty: a verified
// WhatsApp number is the only requirement.
func (p *Profile) Complete() bool {
	return p.WhatsappStatus() == WhatsappVerified
}
