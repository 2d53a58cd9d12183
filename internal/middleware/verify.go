package middleware

import (
	"net/http"
	"time"

	"telnyx-webhooks/internal/common/errors"
	"telnyx-webhooks/internal/common/logging"
	"telnyx-webhooks/internal/metrics"
	"telnyx-webhooks/internal/replay"
	"telnyx-webhooks/internal/signature"
)

// VerifyOptions configures VerifyWebhook. Only Verifier is required.
type VerifyOptions struct {
	Verifier *signature.Verifier
	Guard    *replay.Guard
	Metrics  *metrics.Recorder
	Logger   logging.Logger
}

// VerifyWebhook authenticates requests before they reach next. The raw body
// must have been captured by CaptureRawBody. Rejected requests get a 401
// without the rejection reason; the verifier logs the reason. With a Guard,
// a delivery is recorded before next runs and released again if next
// answers 5xx.
func VerifyWebhook(opts VerifyOptions) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.WithContext(r.Context())
			view := signature.HTTPRequest(r)

			start := time.Now()
			outcome := opts.Verifier.VerifyRequest(view)
			opts.Metrics.ObserveVerification(outcome.String(), time.Since(start))

			if !outcome.Accepted() {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if opts.Guard == nil {
				next.ServeHTTP(w, r)
				return
			}

			// The signature already verified, so it decodes.
			cfg := opts.Verifier.Config()
			ts, _ := view.Header(cfg.TimestampHeader)
			rawSig, _ := view.Header(cfg.SignatureHeader)
			sig, err := signature.DecodeSignature(rawSig)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if err := opts.Guard.Check(r.Context(), ts, sig); err != nil {
				if errors.IsType(err, errors.ErrTypeConflict) {
					opts.Metrics.ReplayRejected()
					log.Warn("Duplicate webhook delivery")
					// Already handled once; acknowledge without dispatching.
					w.WriteHeader(http.StatusOK)
					return
				}
				log.Error("Replay check failed", err)
				writeJSONError(w, errors.HTTPStatus(err), "replay check unavailable")
				return
			}

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			// A failed delivery will be retried by the provider and must not
			// count as seen.
			if wrapped.statusCode >= http.StatusInternalServerError {
				if err := opts.Guard.Release(r.Context(), ts, sig); err != nil {
					log.Error("Failed to release replay key", err)
				}
			}
		})
	}
}
