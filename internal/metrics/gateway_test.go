package metrics

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"cardpointe-client/internal/payment"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGatewayMetrics("test", reg)
	ctx := context.Background()

	m.OnRequest(ctx, payment.RequestEvent{Op: payment.OpAuthorize, Method: http.MethodPut})
	m.OnResponse(ctx, payment.ResponseEvent{
		Op:         payment.OpAuthorize,
		StatusCode: http.StatusOK,
		Body:       []byte(`{"respstat":"C","resptext":"Do not honor"}`),
		Duration:   120 * time.Millisecond,
	})

	m.OnRequest(ctx, payment.RequestEvent{Op: payment.OpInquire, Method: http.MethodGet})
	m.OnResponse(ctx, payment.ResponseEvent{Op: payment.OpInquire, StatusCode: http.StatusUnauthorized, Body: []byte("Unauthorized")})

	m.OnRequest(ctx, payment.RequestEvent{Op: payment.OpVoid, Method: http.MethodPut})
	m.OnResponse(ctx, payment.ResponseEvent{Op: payment.OpVoid, Err: errors.New("connection refused")})

	m.OnRequest(ctx, payment.RequestEvent{Op: payment.OpCapture, Method: http.MethodPut})
	m.OnResponse(ctx, payment.ResponseEvent{Op: payment.OpCapture, StatusCode: http.StatusOK, Body: []byte(`not json`)})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("auth", "PUT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResponsesTotal.WithLabelValues("auth", "2xx", "C")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResponsesTotal.WithLabelValues("inquire", "4xx", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResponsesTotal.WithLabelValues("capture", "2xx", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransportErrorsTotal.WithLabelValues("void")))
	assert.Equal(t, 4, testutil.CollectAndCount(m.RequestDuration))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.ElementsMatch(t, []string{
		"test_gateway_requests_total",
		"test_gateway_responses_total",
		"test_gateway_request_duration_seconds",
		"test_gateway_transport_errors_total",
	}, names)
}

func TestNewGatewayMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewGatewayMetrics("dup", reg)

	assert.Panics(t, func() {
		NewGatewayMetrics("dup", reg)
	})
}

func TestCodeClass(t *testing.T) {
	assert.Equal(t, "2xx", codeClass(http.StatusCreated))
	assert.Equal(t, "5xx", codeClass(http.StatusBadGateway))
}
