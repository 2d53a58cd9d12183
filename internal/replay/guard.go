package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"telnyx-webhooks/internal/common/errors"
)

// Guard decides whether an authenticated delivery has been seen before
type Guard struct {
	store  Store
	window time.Duration
}

// NewGuard creates a guard remembering deliveries for window. The window
// should cover the verifier's tolerance on both sides of now.
func NewGuard(store Store, window time.Duration) *Guard {
	return &Guard{
		store:  store,
		window: window,
	}
}

// Key derives the delivery key from the raw timestamp text and the decoded
// signature bytes. The header text is not used: several base64 spellings
// decode to the same signature.
func Key(timestamp string, signature []byte) string {
	h := sha256.New()
	h.Write([]byte(timestamp))
	h.Write([]byte{'.'})
	h.Write(signature)
	return "replay:" + hex.EncodeToString(h.Sum(nil))
}

// Check records the delivery and returns a conflict error if it was already
// recorded. Store failures are returned as connection errors.
func (g *Guard) Check(ctx context.Context, timestamp string, signature []byte) error {
	first, err := g.store.MarkSeen(ctx, Key(timestamp, signature), g.window)
	if err != nil {
		return errors.ConnectionError("replay store unavailable", err)
	}

	if !first {
		return errors.ConflictError("webhook delivery already processed")
	}

	return nil
}

// Release forgets a recorded delivery so a retry of it is processed again.
// It is used when processing failed after Check succeeded.
func (g *Guard) Release(ctx context.Context, timestamp string, signature []byte) error {
	if err := g.store.Forget(ctx, Key(timestamp, signature)); err != nil {
		return errors.ConnectionError("replay store unavailable", err)
	}
	return nil
}
