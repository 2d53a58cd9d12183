package signature

import (
	"fmt"
	"net/http"
	"strconv"

	"telnyx-webhooks/internal/common/errors"
	"telnyx-webhooks/internal/common/logging"
)

// AuthStrategy exposes webhook verification through a settings map, so it can
// sit next to other settings-driven authenticators.
//
// Recognised settings:
//   - "public_key": base64 public key, overrides the verifier's default
//   - "tolerance": tolerance in whole seconds
type AuthStrategy struct {
	verifier *Verifier
	logger   logging.Logger
}

// NewAuthStrategy creates a new signature auth strategy
func NewAuthStrategy(verifier *Verifier, logger logging.Logger) *AuthStrategy {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &AuthStrategy{
		verifier: verifier,
		logger:   logger,
	}
}

// GetType returns the authentication type identifier
func (s *AuthStrategy) GetType() string {
	return "ed25519"
}

// Authenticate validates the HTTP request. The raw body must already be in
// the request context.
func (s *AuthStrategy) Authenticate(r *http.Request, settings map[string]string) error {
	var opts []Option

	if key := settings["public_key"]; key != "" {
		opts = append(opts, WithPublicKey(key))
	}

	if raw := settings["tolerance"]; raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seconds < 0 {
			return errors.ConfigError(fmt.Sprintf("invalid tolerance setting %q", raw))
		}
		opts = append(opts, WithTolerance(ToleranceSeconds(seconds)))
	}

	outcome := s.verifier.VerifyRequest(HTTPRequest(r), opts...)
	if outcome.Accepted() {
		return nil
	}

	return errors.AuthError("webhook signature verification failed").
		WithCode(outcome.Reason().String())
}
