package services

import (
	"net/http"
)

// BusinessError is a typed business failure. The Code string is the stable
// contract clients match on; Status is the HTTP status the API layer maps it
// to. Anything that is not a *BusinessError degrades to unexpected_error at
// the boundary.
type BusinessError struct {
	Code   string
	Status int
}

func (e *BusinessError) Error() string {
	return e.Code
}

// Issue describes one validation problem in a 400 response.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationError is an invalid_request carrying per-field issues.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	return CodeInvalidRequest
}

// NewValidationError builds a ValidationError from one issue.
func NewValidationError(path, message, code string) *ValidationError {
	return &ValidationError{Issues: []Issue{{Path: path, Message: message, Code: code}}}
}

// Stable error codes. Mixed case is intentional: the upper-case codes are
// shared with the web client's messaging layer and predate the lower-case
// convention.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeNotFound             = "not_found"
	CodeForbidden            = "forbidden"
	CodeUnexpected           = "unexpected_error"
	CodeDuplicateListing     = "duplicate_listing"
	CodeAddWhatsappFirst     = "add_whatsapp_first"
	CodeWhatsappInUse        = "whatsapp_already_in_use"
	CodeInvalidWhatsapp      = "INVALID_WHATSAPP_NUMBER"
	CodeAlreadyVerified      = "already_verified"
	CodeWhatsappRequired     = "WHATSAPP_REQUIRED"
	CodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	CodeCannotRevealOwn      = "CANNOT_REVEAL_OWN_LISTING"
	CodeOwnDemandBlocked     = "OWN_DEMAND_REVEAL_BLOCKED"
	CodeListingNotActive     = "listing_not_active"
	CodeDemandNotActive      = "demand_not_active"
	CodeInsufficientTokens   = "insufficient_tokens"
	CodeListingHasNoContact  = "listing_has_no_contact"
	CodeDemandHasNoContact   = "demand_has_no_contact"
	CodeVerificationExpired  = "verification_code_expired"
	CodeVerificationBadCode  = "verification_code_invalid"
	CodeVerificationTooSoon  = "verification_resend_too_soon"
	CodeTooManyPhotos        = "too_many_photos"
)

var (
	ErrNotFound            = &BusinessError{Code: CodeNotFound, Status: http.StatusNotFound}
	ErrForbidden           = &BusinessError{Code: CodeForbidden, Status: http.StatusForbidden}
	ErrDuplicateListing    = &BusinessError{Code: CodeDuplicateListing, Status: http.StatusConflict}
	ErrAddWhatsappFirst    = &BusinessError{Code: CodeAddWhatsappFirst, Status: http.StatusForbidden}
	ErrWhatsappInUse       = &BusinessError{Code: CodeWhatsappInUse, Status: http.StatusConflict}
	ErrInvalidWhatsapp     = &BusinessError{Code: CodeInvalidWhatsapp, Status: http.StatusBadRequest}
	ErrAlreadyVerified     = &BusinessError{Code: CodeAlreadyVerified, Status: http.StatusConflict}
	ErrWhatsappRequired    = &BusinessError{Code: CodeWhatsappRequired, Status: http.StatusForbidden}
	ErrRateLimitExceeded   = &BusinessError{Code: CodeRateLimitExceeded, Status: http.StatusTooManyRequests}
	ErrCannotRevealOwn     = &BusinessError{Code: CodeCannotRevealOwn, Status: http.StatusForbidden}
	ErrOwnDemandBlocked    = &BusinessError{Code: CodeOwnDemandBlocked, Status: http.StatusForbidden}
	ErrListingNotActive    = &BusinessError{Code: CodeListingNotActive, Status: http.StatusBadRequest}
	ErrDemandNotActive     = &BusinessError{Code: CodeDemandNotActive, Status: http.StatusBadRequest}
	ErrInsufficientTokens  = &BusinessError{Code: CodeInsufficientTokens, Status: http.StatusPaymentRequired}
	ErrListingHasNoContact = &BusinessError{Code: CodeListingHasNoContact, Status: http.StatusBadRequest}
	ErrDemandHasNoContact  = &BusinessError{Code: CodeDemandHasNoContact, Status: http.StatusBadRequest}
	ErrVerificationExpired = &BusinessError{Code: CodeVerificationExpired, Status: http.StatusBadRequest}
	ErrVerificationBadCode = &BusinessError{Code: CodeVerificationBadCode, Status: http.StatusBadRequest}
	ErrVerificationTooSoon = &BusinessError{Code: CodeVerificationTooSoon, Status: http.StatusTooManyRequests}
	ErrTooManyPhotos       = &BusinessError{Code: CodeTooManyPhotos, Status: http.StatusBadRequest}
)
