package signature

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
)

// ResolveKey picks the trust anchor for one call. A non-empty override wins
// over the configured default. The key is decoded on every call.
func ResolveKey(override string, cfg Config) (ed25519.PublicKey, error) {
	source := override
	if source == "" {
		source = cfg.PublicKey
	}

	if source == "" {
		return nil, ErrMissingPublicKey
	}

	key, err := decodePublicKey(source)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}

	return key, nil
}

// decodePublicKey decodes a padded standard base64 Ed25519 public key
func decodePublicKey(encoded string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("expected %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}

	return ed25519.PublicKey(raw), nil
}

// DecodeSignature decodes the signature header value. Malformed input is
// reported as ErrInvalidSignature, the same error as a mismatch.
func DecodeSignature(raw string) ([]byte, error) {
	sig, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return nil, ErrInvalidSignature
	}

	return sig, nil
}
