package logger

import (
	"net/http"
)

const RequestIDHeader = "X-Request-ID"

// RequestIDTransport copies the request id carried by the request context
// into the X-Request-ID header of outgoing calls. Requests that already
// carry the header, or whose context has no id, are sent unchanged.
type RequestIDTransport struct {
	Base http.RoundTripper
}

func (t *RequestIDTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	reqID := RequestIDFrom(r.Context())
	if reqID == "" || r.Header.Get(RequestIDHeader) != "" {
		return base.RoundTrip(r)
	}

	// RoundTrippers must not modify the caller's request.
	r2 := r.Clone(r.Context())
	r2.Header.Set(RequestIDHeader, reqID)
	return base.RoundTrip(r2)
}
