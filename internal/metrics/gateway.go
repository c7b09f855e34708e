package metrics

import (
	"context"
	"encoding/json"
	"strconv"

	"cardpointe-client/internal/payment"

	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics counts and times CardPointe calls. It is a payment.Observer.
type GatewayMetrics struct {
	RequestsTotal        *prometheus.CounterVec
	ResponsesTotal       *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	TransportErrorsTotal *prometheus.CounterVec
}

var _ payment.Observer = (*GatewayMetrics)(nil)

// NewGatewayMetrics creates and registers the gateway collectors against reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewGatewayMetrics(namespace string, reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &GatewayMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_requests_total",
				Help:      "Total number of requests sent to the payment gateway",
			},
			[]string{"op", "method"},
		),
		ResponsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_responses_total",
				Help:      "Gateway responses by HTTP status class and respstat",
			},
			[]string{"op", "code_class", "respstat"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_request_duration_seconds",
				Help:      "Gateway round trip duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"op"},
		),
		TransportErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_transport_errors_total",
				Help:      "Gateway calls that got no response at all",
			},
			[]string{"op"},
		),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.ResponsesTotal,
		m.RequestDuration,
		m.TransportErrorsTotal,
	)

	return m
}

func (m *GatewayMetrics) OnRequest(_ context.Context, ev payment.RequestEvent) {
	m.RequestsTotal.WithLabelValues(ev.Op, ev.Method).Inc()
}

func (m *GatewayMetrics) OnResponse(_ context.Context, ev payment.ResponseEvent) {
	m.RequestDuration.WithLabelValues(ev.Op).Observe(ev.Duration.Seconds())

	if ev.StatusCode == 0 {
		m.TransportErrorsTotal.WithLabelValues(ev.Op).Inc()
		return
	}

	m.ResponsesTotal.WithLabelValues(ev.Op, codeClass(ev.StatusCode), respStat(ev)).Inc()
}

func codeClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

// respStat reads respstat from a successful body; "none" otherwise.
func respStat(ev payment.ResponseEvent) string {
	if ev.StatusCode/100 != 2 {
		return "none"
	}
	var body struct {
		RespStat payment.RespStat `json:"respstat"`
	}
	if err := json.Unmarshal(ev.Body, &body); err != nil || !body.RespStat.Valid() {
		return "none"
	}
	return string(body.RespStat)
}
