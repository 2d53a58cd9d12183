package signature

import (
	"encoding/json"
	"math"
	"time"
)

const (
	// SignatureHeader carries the base64 encoded Ed25519 signature.
	SignatureHeader = "telnyx-signature-ed25519"

	// TimestampHeader carries the Unix timestamp (seconds) the provider signed.
	TimestampHeader = "telnyx-timestamp"

	// DefaultTolerance is the maximum allowed clock distance between the
	// signed timestamp and now.
	DefaultTolerance = 300 * time.Second
)

// Config holds the process-wide verification settings. A Config is treated as
// immutable once handed to NewVerifier.
type Config struct {
	// PublicKey is the default base64 encoded Ed25519 public key. It may be
	// empty when every call supplies its own key.
	PublicKey string

	// Tolerance is the default timestamp tolerance window
	Tolerance time.Duration

	// SignatureHeader and TimestampHeader override the header names
	SignatureHeader string
	TimestampHeader string
}

// DefaultConfig returns a config with the provider's header names and the
// default tolerance, and no public key.
func DefaultConfig() Config {
	c := Config{}
	c.SetDefaults()
	return c
}

// SetDefaults applies default values to the configuration
func (c *Config) SetDefaults() {
	if c.Tolerance == 0 {
		c.Tolerance = DefaultTolerance
	}

	if c.SignatureHeader == "" {
		c.SignatureHeader = SignatureHeader
	}

	if c.TimestampHeader == "" {
		c.TimestampHeader = TimestampHeader
	}
}

// Validate checks if the configuration is usable. A missing public key is not
// a configuration error; it surfaces per call as missing_public_key.
func (c *Config) Validate() error {
	if c.Tolerance < 0 {
		return NewValidationError("tolerance must not be negative, got %s", c.Tolerance)
	}

	if c.Tolerance%time.Second != 0 {
		return NewValidationError("tolerance must be a whole number of seconds, got %s", c.Tolerance)
	}

	if c.PublicKey != "" {
		if _, err := decodePublicKey(c.PublicKey); err != nil {
			return NewValidationError("public key: %v", err)
		}
	}

	return nil
}

// LoadConfig loads verification configuration from JSON
func LoadConfig(data []byte) (*Config, error) {
	var raw struct {
		PublicKey        string `json:"public_key"`
		ToleranceSeconds *int64 `json:"tolerance_seconds"`
		SignatureHeader  string `json:"signature_header"`
		TimestampHeader  string `json:"timestamp_header"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	config := Config{
		PublicKey:       raw.PublicKey,
		SignatureHeader: raw.SignatureHeader,
		TimestampHeader: raw.TimestampHeader,
	}
	if raw.ToleranceSeconds != nil {
		if *raw.ToleranceSeconds < 0 {
			return nil, NewValidationError("tolerance_seconds must not be negative")
		}
		config.Tolerance = ToleranceSeconds(*raw.ToleranceSeconds)
	}

	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// callOptions are the per-call overrides
type callOptions struct {
	publicKey    string
	tolerance    time.Duration
	hasTolerance bool
}

// Option customises a single verification call
type Option func(*callOptions)

// WithPublicKey overrides the configured public key for one call. An empty
// key means "use the configured default".
func WithPublicKey(publicKey string) Option {
	return func(o *callOptions) {
		o.publicKey = publicKey
	}
}

// ToleranceSeconds converts whole seconds to a tolerance. Values too large
// for a time.Duration saturate instead of wrapping; negatives become zero.
func ToleranceSeconds(seconds int64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	if limit := int64(math.MaxInt64 / time.Second); seconds > limit {
		return time.Duration(limit) * time.Second
	}
	return time.Duration(seconds) * time.Second
}

// WithTolerance overrides the configured tolerance for one call. Negative
// values are clamped to zero.
func WithTolerance(tolerance time.Duration) Option {
	return func(o *callOptions) {
		if tolerance < 0 {
			tolerance = 0
		}
		o.tolerance = tolerance
		o.hasTolerance = true
	}
}
