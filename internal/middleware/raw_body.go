package middleware

import (
	"bytes"
	"io"
	"net/http"

	"telnyx-webhooks/internal/signature"
)

// CaptureRawBody reads the request body once, stores the exact bytes in the
// request context for signature verification, and restores r.Body for
// downstream handlers. Bodies larger than limit are answered with 413.
func CaptureRawBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body []byte
			if r.Body != nil {
				data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
				r.Body.Close()
				if err != nil {
					writeJSONError(w, http.StatusBadRequest, "unreadable body")
					return
				}
				if int64(len(data)) > limit {
					writeJSONError(w, http.StatusRequestEntityTooLarge, "body too large")
					return
				}
				body = data
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			ctx := signature.WithRawBody(r.Context(), body)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `{"error":"`+message+`"}`)
}
