package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Sign produces the header value the provider would send for payload signed
// at timestamp. It exists for local tooling and tests.
func Sign(priv ed25519.PrivateKey, timestamp string, payload []byte) string {
	sig := ed25519.Sign(priv, BuildMessage(timestamp, payload))
	return base64.StdEncoding.EncodeToString(sig)
}

// GenerateKeyPair returns a fresh base64 encoded Ed25519 key pair. The
// private half is the 64 byte expanded form.
func GenerateKeyPair() (publicKey, privateKey string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate key pair: %w", err)
	}

	return base64.StdEncoding.EncodeToString(pub), base64.StdEncoding.EncodeToString(priv), nil
}

// ParsePrivateKey decodes a base64 private key, accepting either the 32 byte
// seed or the 64 byte expanded key.
func ParsePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, NewValidationError("private key is not valid base64")
	}

	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, NewValidationError("private key must be %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}
