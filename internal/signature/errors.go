package signature

import "fmt"

// Reason identifies why a webhook was rejected. The set is closed.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonInvalidParameters Reason = "invalid_parameters"
	ReasonMissingPublicKey  Reason = "missing_public_key"
	ReasonInvalidPublicKey  Reason = "invalid_public_key"
	ReasonInvalidSignature  Reason = "invalid_signature"
	ReasonInvalidTimestamp  Reason = "invalid_timestamp"
	ReasonTimestampExpired  Reason = "timestamp_expired"
	ReasonMissingHeader     Reason = "missing_header"
	ReasonMissingRawBody    Reason = "missing_raw_body"
)

var reasonMessages = map[Reason]string{
	ReasonInvalidParameters: "payload, signature and timestamp must be strings",
	ReasonMissingPublicKey:  "no public key configured",
	ReasonInvalidPublicKey:  "public key is not a valid ed25519 key",
	ReasonInvalidSignature:  "signature is invalid",
	ReasonInvalidTimestamp:  "timestamp is not an integer",
	ReasonTimestampExpired:  "timestamp is outside the tolerance window",
	ReasonMissingHeader:     "signature or timestamp header missing",
	ReasonMissingRawBody:    "raw request body not captured",
}

// String returns the reason code
func (r Reason) String() string {
	return string(r)
}

// Message returns a human readable description of the reason
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return "unknown verification failure"
}

// VerificationError represents a rejected webhook. It never carries more
// detail than its Reason.
type VerificationError struct {
	Reason Reason
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("webhook verification failed: %s: %s", e.Reason, e.Reason.Message())
}

// Is matches any VerificationError with the same reason, so callers can use
// errors.Is(err, signature.ErrInvalidSignature).
func (e *VerificationError) Is(target error) bool {
	t, ok := target.(*VerificationError)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

// newError creates a verification error for the given reason
func newError(reason Reason) *VerificationError {
	return &VerificationError{Reason: reason}
}

// Sentinel errors, one per reason.
var (
	ErrInvalidParameters = newError(ReasonInvalidParameters)
	ErrMissingPublicKey  = newError(ReasonMissingPublicKey)
	ErrInvalidPublicKey  = newError(ReasonInvalidPublicKey)
	ErrInvalidSignature  = newError(ReasonInvalidSignature)
	ErrInvalidTimestamp  = newError(ReasonInvalidTimestamp)
	ErrTimestampExpired  = newError(ReasonTimestampExpired)
	ErrMissingHeader     = newError(ReasonMissingHeader)
	ErrMissingRawBody    = newError(ReasonMissingRawBody)
)

// ReasonOf extracts the reason from an error returned by this package.
// Errors from elsewhere yield ReasonNone.
func ReasonOf(err error) Reason {
	if ve, ok := err.(*VerificationError); ok {
		return ve.Reason
	}
	return ReasonNone
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new validation error
func NewValidationError(format string, args ...interface{}) ValidationError {
	return ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}
