package signature

import (
	"context"
	"net/http"
	"strings"
)

// RequestView is the narrow read-only view of an inbound request the adapter
// needs. Any web framework's request type can be adapted to it.
type RequestView interface {
	// Header returns the value of the named header, matched case-insensitively
	Header(name string) (string, bool)

	// RawBody returns the body bytes captured earlier in the handler chain
	RawBody() ([]byte, bool)
}

// FromRequest extracts the raw body, signature and timestamp from req using
// the header names in cfg.
func FromRequest(req RequestView, cfg Config) ([]byte, string, string, error) {
	if req == nil {
		return nil, "", "", ErrMissingHeader
	}

	cfg.SetDefaults()

	sig, ok := req.Header(cfg.SignatureHeader)
	if !ok {
		return nil, "", "", ErrMissingHeader
	}

	ts, ok := req.Header(cfg.TimestampHeader)
	if !ok {
		return nil, "", "", ErrMissingHeader
	}

	body, ok := req.RawBody()
	if !ok {
		return nil, "", "", ErrMissingRawBody
	}

	return body, sig, ts, nil
}

type rawBodyKey struct{}

// WithRawBody stores the captured body in ctx. A nil body is stored as an
// empty, present body.
func WithRawBody(ctx context.Context, body []byte) context.Context {
	if body == nil {
		body = []byte{}
	}
	return context.WithValue(ctx, rawBodyKey{}, body)
}

// RawBodyFromContext returns the body stored by WithRawBody
func RawBodyFromContext(ctx context.Context) ([]byte, bool) {
	body, ok := ctx.Value(rawBodyKey{}).([]byte)
	return body, ok
}

// httpRequest adapts *http.Request to RequestView
type httpRequest struct {
	r *http.Request
}

// HTTPRequest wraps a net/http request. The body is taken from the request
// context (see WithRawBody); r.Body is never read here.
func HTTPRequest(r *http.Request) RequestView {
	return httpRequest{r: r}
}

func (h httpRequest) Header(name string) (string, bool) {
	return lookupHeader(h.r.Header, name)
}

func (h httpRequest) RawBody() ([]byte, bool) {
	return RawBodyFromContext(h.r.Context())
}

// HeaderMap is a RequestView over plain maps, useful for queue consumers and
// tests that have no *http.Request.
type HeaderMap struct {
	Headers http.Header
	Body    []byte
	HasBody bool
}

func (m HeaderMap) Header(name string) (string, bool) {
	return lookupHeader(m.Headers, name)
}

func (m HeaderMap) RawBody() ([]byte, bool) {
	if !m.HasBody {
		return nil, false
	}
	return m.Body, true
}

// lookupHeader finds name in h. Keys that were set without canonicalisation
// are matched with a case-insensitive scan.
func lookupHeader(h http.Header, name string) (string, bool) {
	if values := h.Values(name); len(values) > 0 {
		return values[0], true
	}

	for key, values := range h {
		if strings.EqualFold(key, name) && len(values) > 0 {
			return values[0], true
		}
	}

	return "", false
}
