package signature

import (
	"time"

	"telnyx-webhooks/internal/common/logging"
)

// Outcome is the result of a verification: accepted, or rejected with
// exactly one Reason.
type Outcome struct {
	reason Reason
}

// Accepted is the successful outcome
var Accepted = Outcome{}

// Rejected builds a failed outcome for the given reason
func Rejected(reason Reason) Outcome {
	return Outcome{reason: reason}
}

// Accepted reports whether the webhook was authenticated
func (o Outcome) Accepted() bool {
	return o.reason == ReasonNone
}

// Reason returns the rejection reason, or ReasonNone when accepted
func (o Outcome) Reason() Reason {
	return o.reason
}

// Err returns nil when accepted and a *VerificationError otherwise
func (o Outcome) Err() error {
	if o.Accepted() {
		return nil
	}
	return newError(o.reason)
}

// String returns "accepted" or the reason code
func (o Outcome) String() string {
	if o.Accepted() {
		return "accepted"
	}
	return string(o.reason)
}

// outcomeOf converts a step error into an outcome
func outcomeOf(err error) Outcome {
	if err == nil {
		return Accepted
	}
	if reason := ReasonOf(err); reason != ReasonNone {
		return Rejected(reason)
	}
	return Rejected(ReasonInvalidSignature)
}

// Verifier authenticates webhook deliveries. It holds no mutable state and is
// safe for concurrent use.
type Verifier struct {
	config Config
	logger logging.Logger
	now    func() time.Time
}

// VerifierOption configures a Verifier at construction time
type VerifierOption func(*Verifier)

// WithClock replaces the wall clock, mainly for tests
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithLogger sets the logger used for verification results
func WithLogger(logger logging.Logger) VerifierOption {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewVerifier creates a new signature verifier. The config is copied; later
// changes to the caller's value have no effect.
func NewVerifier(config Config, opts ...VerifierOption) *Verifier {
	config.SetDefaults()

	v := &Verifier{
		config: config,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.logger == nil {
		v.logger = logging.GetGlobalLogger()
	}

	return v
}

// Config returns a copy of the verifier's configuration
func (v *Verifier) Config() Config {
	return v.config
}

// Verify authenticates payload against the claimed signature and timestamp.
// Steps run in a fixed order and the first failure wins: key, signature
// encoding, timestamp, then the Ed25519 check.
func (v *Verifier) Verify(payload []byte, signature, timestamp string, opts ...Option) Outcome {
	outcome := v.verify(payload, signature, timestamp, v.callOptions(opts))
	v.log(outcome)
	return outcome
}

// Valid is Verify collapsed to a boolean
func (v *Verifier) Valid(payload []byte, signature, timestamp string, opts ...Option) bool {
	return v.Verify(payload, signature, timestamp, opts...).Accepted()
}

// VerifyValues is the entry point for loosely typed inputs such as decoded
// JSON fixtures. The payload may be a string or []byte; signature and
// timestamp must be strings. Anything else is rejected with
// invalid_parameters before any other check.
func (v *Verifier) VerifyValues(payload, signature, timestamp interface{}, opts ...Option) Outcome {
	var body []byte
	switch p := payload.(type) {
	case []byte:
		body = p
	case string:
		body = []byte(p)
	default:
		outcome := Rejected(ReasonInvalidParameters)
		v.log(outcome)
		return outcome
	}

	sig, sigOK := signature.(string)
	ts, tsOK := timestamp.(string)
	if !sigOK || !tsOK {
		outcome := Rejected(ReasonInvalidParameters)
		v.log(outcome)
		return outcome
	}

	return v.Verify(body, sig, ts, opts...)
}

// VerifyRequest extracts the headers and captured body from req and verifies
// them. Extraction failures are reported as missing_header or
// missing_raw_body.
func (v *Verifier) VerifyRequest(req RequestView, opts ...Option) Outcome {
	payload, sig, ts, err := FromRequest(req, v.config)
	if err != nil {
		outcome := outcomeOf(err)
		v.log(outcome)
		return outcome
	}

	return v.Verify(payload, sig, ts, opts...)
}

func (v *Verifier) callOptions(opts []Option) callOptions {
	o := callOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.hasTolerance {
		o.tolerance = v.config.Tolerance
	}
	return o
}

func (v *Verifier) verify(payload []byte, signature, timestamp string, o callOptions) Outcome {
	key, err := ResolveKey(o.publicKey, v.config)
	if err != nil {
		return outcomeOf(err)
	}

	sig, err := DecodeSignature(signature)
	if err != nil {
		return outcomeOf(err)
	}

	tolerance := int64(o.tolerance / time.Second)
	if _, err := ValidateTimestamp(timestamp, v.now().Unix(), tolerance); err != nil {
		return outcomeOf(err)
	}

	message := BuildMessage(timestamp, payload)

	if !VerifyMessage(message, sig, key) {
		return Rejected(ReasonInvalidSignature)
	}

	return Accepted
}

func (v *Verifier) log(outcome Outcome) {
	if outcome.Accepted() {
		v.logger.Debug("Webhook signature verified")
		return
	}

	v.logger.Warn("Webhook signature rejected",
		logging.String("reason", outcome.Reason().String()),
	)
}
