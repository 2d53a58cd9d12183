package signature

import "crypto/ed25519"

// BuildMessage reconstructs the bytes the provider signed:
// "<timestamp>.<payload>". The timestamp is used exactly as received.
func BuildMessage(rawTimestamp string, payload []byte) []byte {
	msg := make([]byte, 0, len(rawTimestamp)+1+len(payload))
	msg = append(msg, rawTimestamp...)
	msg = append(msg, '.')
	msg = append(msg, payload...)
	return msg
}

// VerifyMessage performs a plain Ed25519 check. Keys or signatures of the
// wrong size yield false instead of panicking.
func VerifyMessage(message, sig []byte, key ed25519.PublicKey) bool {
	if len(key) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(key, message, sig)
}
