// Package signature authenticates webhooks signed by the provider with
// Ed25519.
//
// The provider signs the bytes "<timestamp>.<raw body>" and sends the
// base64 signature in the telnyx-signature-ed25519 header and the timestamp
// in the telnyx-timestamp header. Verification runs these steps in order and
// stops at the first failure:
//
//  1. resolve the public key (per-call override, then configured default)
//  2. decode the signature (base64, 64 bytes)
//  3. validate the timestamp (integer, within tolerance of now)
//  4. rebuild the signed message from the raw timestamp text and raw body
//  5. verify the Ed25519 signature
//
// Every failure becomes an Outcome with one Reason. A malformed signature and
// a signature that does not match both report invalid_signature.
//
// # Usage
//
//	verifier := signature.NewVerifier(signature.Config{PublicKey: key})
//
//	outcome := verifier.Verify(body, r.Header.Get(signature.SignatureHeader),
//	    r.Header.Get(signature.TimestampHeader))
//	if !outcome.Accepted() {
//	    http.Error(w, "unauthorized", http.StatusUnauthorized)
//	    return
//	}
//
// With the body captured into the request context by middleware:
//
//	outcome := verifier.VerifyRequest(signature.HTTPRequest(r))
//
// # Security Considerations
//
//   - Always verify the exact bytes received, never re-encoded JSON
//   - The timestamp window limits, but does not prevent, replays; see the
//     replay package for delivery de-duplication
package signature
