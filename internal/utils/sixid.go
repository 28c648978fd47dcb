package utils

import (
	"crypto/rand"
	"encoding/json"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SixID is a compact 6-byte identifier used for every addressable entity
// (profiles, listings, demands, catalog rows). It renders as a 10-character
// Crockford Base32 string in URLs and JSON and is stored in BSON as BinData
// with custom subtype 0x80.
type SixID [6]byte

const sixIDStringLen = 10

// SixIDHookFunc lets tests take over ID generation.
type SixIDHookFunc func() (id SixID, override bool)

// NewSixIDHook, when set, overrides NewSixID. Tests use it to force ID
// collisions.
var NewSixIDHook SixIDHookFunc

// NewSixID returns a random SixID.
func NewSixID() SixID {
	if NewSixIDHook != nil {
		if id, override := NewSixIDHook(); override {
			return id
		}
	}
	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		return SixID{}
	}
	return id
}

// Crockford Base32: no I, L, O or U, so IDs survive being read aloud or
// retyped.
const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var crockfordValues = buildCrockfordValues()

func buildCrockfordValues() map[byte]byte {
	m := make(map[byte]byte, 64)
	for i := 0; i < len(crockfordAlphabet); i++ {
		c := crockfordAlphabet[i]
		m[c] = byte(i)
		if c >= 'A' && c <= 'Z' {
			m[c+'a'-'A'] = byte(i)
		}
	}
	// Accept the characters Crockford aliases.
	m['o'], m['O'] = m['0'], m['0']
	m['i'], m['I'] = m['1'], m['1']
	m['l'], m['L'] = m['1'], m['1']
	return m
}

// String encodes the 48 bits as 10 Crockford Base32 characters, least
// significant group first.
func (u SixID) String() string {
	out := make([]byte, 0, sixIDStringLen)
	var acc uint
	var width uint
	for _, b := range u {
		acc |= uint(b) << width
		width += 8
		for width >= 5 {
			out = append(out, crockfordAlphabet[acc&0x1F])
			acc >>= 5
			width -= 5
		}
	}
	if width > 0 {
		out = append(out, crockfordAlphabet[acc&0x1F])
	}
	return string(out)
}

// ParseSixID decodes a Crockford Base32 string produced by String. Hyphens
// and spaces are ignored; an empty string decodes to the zero ID.
func ParseSixID(s string) (SixID, error) {
	if s == "" {
		return SixID{}, nil
	}

	cleaned := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '-' || s[i] == ' ' {
			continue
		}
		cleaned = append(cleaned, s[i])
	}
	if len(cleaned) != sixIDStringLen {
		return SixID{}, errors.New("invalid SixID: must be 10 base32 characters")
	}

	var id SixID
	var acc uint64
	var width uint
	n := 0
	for _, c := range cleaned {
		val, ok := crockfordValues[c]
		if !ok {
			return SixID{}, errors.New("invalid SixID: unexpected character")
		}
		acc |= uint64(val) << width
		width += 5
		for width >= 8 && n < len(id) {
			id[n] = byte(acc)
			acc >>= 8
			width -= 8
			n++
		}
	}
	if n != len(id) {
		return SixID{}, errors.New("invalid SixID: truncated value")
	}
	return id, nil
}

func (u SixID) MarshalBinary() ([]byte, error) {
	return u[:], nil
}

func (u *SixID) UnmarshalBinary(data []byte) error {
	if len(data) != len(u) {
		return errors.New("invalid SixID length")
	}
	copy(u[:], data)
	return nil
}

// GetBSON stores the ID as BinData subtype 0x80.
func (u SixID) GetBSON() (interface{}, error) {
	return primitive.Binary{Subtype: 0x80, Data: u[:]}, nil
}

// SetBSON restores the ID from its BinData form.
func (u *SixID) SetBSON(raw interface{}) error {
	if raw == nil {
		*u = SixID{}
		return nil
	}
	bin, ok := raw.(primitive.Binary)
	if !ok {
		*u = SixID{}
		return errors.New("invalid BSON type for SixID")
	}
	if bin.Subtype != 0x80 || len(bin.Data) != len(u) {
		*u = SixID{}
		return errors.New("invalid BSON binary data for SixID")
	}
	copy(u[:], bin.Data)
	return nil
}

func (u SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

func (u *SixID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSixID(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
