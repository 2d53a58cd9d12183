package middleware

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telnyx-webhooks/internal/common/logging"
	"telnyx-webhooks/internal/metrics"
	"telnyx-webhooks/internal/redis"
	"telnyx-webhooks/internal/replay"
	"telnyx-webhooks/internal/signature"
)

const payload = `{"event_type":"call.initiated","data":{"call_control_id":"v2:abc123"}}`

type fixture struct {
	priv     ed25519.PrivateKey
	verifier *signature.Verifier
	now      time.Time
}

func newFixture() fixture {
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{7}, ed25519.SeedSize))
	pub := base64.StdEncoding.EncodeToString(priv.Public().(ed25519.PublicKey))
	now := time.Unix(1700000000, 0)

	return fixture{
		priv: priv,
		now:  now,
		verifier: signature.NewVerifier(signature.Config{PublicKey: pub},
			signature.WithClock(func() time.Time { return now }),
			signature.WithLogger(logging.NewNopLogger()),
		),
	}
}

func (f fixture) signedRequest(body string) *http.Request {
	ts := strconv.FormatInt(f.now.Unix(), 10)
	r := httptest.NewRequest(http.MethodPost, "/webhooks", strings.NewReader(body))
	r.Header.Set(signature.SignatureHeader, signature.Sign(f.priv, ts, []byte(body)))
	r.Header.Set(signature.TimestampHeader, ts)
	return r
}

func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// recordingHandler echoes the body it receives so tests can check that
// r.Body was restored after capture.
func recordingHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	})
}

func TestCaptureRawBody(t *testing.T) {
	t.Run("stores body and restores reader", func(t *testing.T) {
		var captured []byte
		h := CaptureRawBody(1024)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var ok bool
			captured, ok = signature.RawBodyFromContext(r.Context())
			require.True(t, ok)
			rest, _ := io.ReadAll(r.Body)
			assert.Equal(t, captured, rest)
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload)))
		assert.Equal(t, payload, string(captured))
	})

	t.Run("rejects oversized body", func(t *testing.T) {
		h := CaptureRawBody(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("12345")))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("body exactly at limit", func(t *testing.T) {
		calls := 0
		h := CaptureRawBody(5)(recordingHandler(&calls))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("12345")))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "12345", rec.Body.String())
	})
}

func TestVerifyWebhook(t *testing.T) {
	f := newFixture()
	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(reg)
	require.NoError(t, err)

	calls := 0
	h := chain(recordingHandler(&calls),
		CaptureRawBody(1<<20),
		VerifyWebhook(VerifyOptions{Verifier: f.verifier, Metrics: recorder, Logger: logging.NewNopLogger()}),
	)

	t.Run("accepted", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, f.signedRequest(payload))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, payload, rec.Body.String())
		assert.Equal(t, 1, calls)
	})

	t.Run("tampered body is rejected without detail", func(t *testing.T) {
		r := f.signedRequest(payload)
		r.Body = io.NopCloser(strings.NewReader(strings.Replace(payload, "initiated", "hangup", 1)))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "invalid_signature")
		assert.Equal(t, 1, calls)
	})

	t.Run("missing header", func(t *testing.T) {
		r := f.signedRequest(payload)
		r.Header.Del(signature.TimestampHeader)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	assert.Equal(t, 1.0, verifications(t, reg, "accepted"))
	assert.Equal(t, 1.0, verifications(t, reg, "invalid_signature"))
	assert.Equal(t, 1.0, verifications(t, reg, "missing_header"))
}

func TestVerifyWebhook_WithoutCapture(t *testing.T) {
	f := newFixture()
	calls := 0
	h := VerifyWebhook(VerifyOptions{Verifier: f.verifier, Logger: logging.NewNopLogger()})(recordingHandler(&calls))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, f.signedRequest(payload))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, calls)
}

func TestVerifyWebhook_ReplayGuard(t *testing.T) {
	f := newFixture()
	guard := replay.NewGuard(replay.NewLocalStore(time.Minute), 10*time.Minute)

	calls := 0
	h := chain(recordingHandler(&calls),
		CaptureRawBody(1<<20),
		VerifyWebhook(VerifyOptions{Verifier: f.verifier, Guard: guard, Logger: logging.NewNopLogger()}),
	)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, f.signedRequest(payload))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 1, calls)
}

// respell changes the unused low bits of the final base64 symbol. The
// result decodes to the same signature bytes under StdEncoding.
func respell(t *testing.T, sig string) string {
	t.Helper()
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	require.True(t, strings.HasSuffix(sig, "=="))

	i := len(sig) - 3
	pos := strings.IndexByte(alphabet, sig[i])
	require.GreaterOrEqual(t, pos, 0)

	alt := sig[:i] + string(alphabet[pos^1]) + sig[i+1:]
	want, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	got, err := base64.StdEncoding.DecodeString(alt)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.NotEqual(t, sig, alt)
	return alt
}

func TestVerifyWebhook_ReplayWithAlternateEncoding(t *testing.T) {
	f := newFixture()
	guard := replay.NewGuard(replay.NewLocalStore(time.Minute), 10*time.Minute)

	calls := 0
	h := chain(recordingHandler(&calls),
		CaptureRawBody(1<<20),
		VerifyWebhook(VerifyOptions{Verifier: f.verifier, Guard: guard, Logger: logging.NewNopLogger()}),
	)

	first := f.signedRequest(payload)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	replayed := f.signedRequest(payload)
	replayed.Header.Set(signature.SignatureHeader, respell(t, first.Header.Get(signature.SignatureHeader)))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, replayed)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestVerifyWebhook_RetryAfterHandlerFailure(t *testing.T) {
	f := newFixture()
	guard := replay.NewGuard(replay.NewLocalStore(time.Minute), 10*time.Minute)

	calls := 0
	flaky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	h := chain(flaky,
		CaptureRawBody(1<<20),
		VerifyWebhook(VerifyOptions{Verifier: f.verifier, Guard: guard, Logger: logging.NewNopLogger()}),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, f.signedRequest(payload))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, f.signedRequest(payload))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, calls)

	// Once processed, further copies are acknowledged without dispatch.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, f.signedRequest(payload))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, calls)
}

func TestVerifyWebhook_ReplayStoreDown(t *testing.T) {
	f := newFixture()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()
	mr.Close()

	guard := replay.NewGuard(replay.NewRedisStore(client, ""), time.Minute)
	calls := 0
	h := chain(recordingHandler(&calls),
		CaptureRawBody(1<<20),
		VerifyWebhook(VerifyOptions{Verifier: f.verifier, Guard: guard, Logger: logging.NewNopLogger()}),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, f.signedRequest(payload))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 0, calls)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = logging.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "upstream-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, "upstream-id", seen)
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewZapLogger(logging.LogConfig{Level: logging.DebugLevel, Output: &buf, JSON: true})
	require.NoError(t, err)

	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), RequestID, Logging(logger))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"path":"/health"`)
	assert.Contains(t, buf.String(), `"request_id"`)
}

func verifications(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != "webhook_verifications_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
