package signature

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"telnyx-webhooks/internal/common/errors"
)

func TestAuthStrategy(t *testing.T) {
	configured := newKeyPair(30)
	explicit := newKeyPair(31)
	strategy := NewAuthStrategy(newTestVerifier(configured.encoded), nil)
	payload := []byte(callInitiated)

	request := func(kp keyPair, at time.Time) *http.Request {
		ts := unix(at)
		r := httptest.NewRequest(http.MethodPost, "/webhooks", nil)
		r.Header.Set(SignatureHeader, Sign(kp.priv, ts, payload))
		r.Header.Set(TimestampHeader, ts)
		return r.WithContext(WithRawBody(r.Context(), payload))
	}

	assert.Equal(t, "ed25519", strategy.GetType())

	t.Run("configured key", func(t *testing.T) {
		assert.NoError(t, strategy.Authenticate(request(configured, testNow), nil))
	})

	t.Run("public_key setting overrides", func(t *testing.T) {
		r := request(explicit, testNow)
		assert.Error(t, strategy.Authenticate(r, nil))
		assert.NoError(t, strategy.Authenticate(r, map[string]string{"public_key": explicit.encoded}))
	})

	t.Run("tolerance setting", func(t *testing.T) {
		r := request(configured, testNow.Add(-90*time.Second))
		assert.NoError(t, strategy.Authenticate(r, map[string]string{"tolerance": "120"}))

		err := strategy.Authenticate(r, map[string]string{"tolerance": "60"})
		assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
		assert.Equal(t, "timestamp_expired", err.(*errors.AppError).Code)
	})

	t.Run("huge tolerance setting does not wrap", func(t *testing.T) {
		r := request(configured, testNow.Add(-24*time.Hour))
		assert.NoError(t, strategy.Authenticate(r, map[string]string{"tolerance": "9300000000"}))
	})

	t.Run("bad tolerance setting", func(t *testing.T) {
		err := strategy.Authenticate(request(configured, testNow), map[string]string{"tolerance": "soon"})
		assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	})
}
