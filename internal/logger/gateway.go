package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"cardpointe-client/internal/payment"

	"go.uber.org/zap"
)

// GatewayObserver logs every gateway exchange with card data masked.
type GatewayObserver struct {
	log *zap.Logger
}

var _ payment.Observer = (*GatewayObserver)(nil)

// NewGatewayObserver logs to l, or to the global logger when l is nil.
func NewGatewayObserver(l *zap.Logger) *GatewayObserver {
	return &GatewayObserver{log: l}
}

func (o *GatewayObserver) logger(ctx context.Context) *zap.Logger {
	if o.log == nil {
		return FromCtx(ctx)
	}
	return withRequestID(o.log, ctx)
}

func (o *GatewayObserver) OnRequest(ctx context.Context, ev payment.RequestEvent) {
	fields := []zap.Field{
		zap.String("op", ev.Op),
		zap.String("method", ev.Method),
		zap.String("url", ev.URL),
	}
	if len(ev.Body) > 0 {
		fields = append(fields, zap.ByteString("body", MaskCardData(ev.Body)))
	}
	o.logger(ctx).Debug("Sending request to CardPointe", fields...)
}

func (o *GatewayObserver) OnResponse(ctx context.Context, ev payment.ResponseEvent) {
	log := o.logger(ctx).With(
		zap.String("op", ev.Op),
		zap.String("method", ev.Method),
		zap.String("url", ev.URL),
		zap.Duration("duration", ev.Duration),
	)

	switch {
	case ev.StatusCode == 0:
		log.Error("CardPointe request failed", zap.Error(ev.Err))
	case ev.StatusCode/100 != 2:
		log.Error("CardPointe returned non-success status",
			zap.Int("status", ev.StatusCode),
			zap.ByteString("response", MaskCardData(ev.Body)),
		)
	case ev.Err != nil:
		log.Error("Failed decoding CardPointe response",
			zap.Int("status", ev.StatusCode),
			zap.ByteString("response", MaskCardData(ev.Body)),
			zap.Error(ev.Err),
		)
	default:
		log.Info("CardPointe response received",
			zap.Int("status", ev.StatusCode),
			zap.ByteString("response", MaskCardData(ev.Body)),
		)
	}
}

var maskedKeys = map[string]func(string) string{
	"account": maskPAN,
	"cvv2":    func(string) string { return "***" },
}

// MaskCardData hides the account number (all but the last four
// characters) and the CVV in a JSON object body. Anything that is not a
// JSON object is returned unchanged.
func MaskCardData(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return body
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return body
	}

	changed := false
	for key, mask := range maskedKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		masked, _ := json.Marshal(mask(s))
		fields[key] = masked
		changed = true
	}
	if !changed {
		return body
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return body
	}
	return out
}

func maskPAN(account string) string {
	if len(account) <= 4 {
		return strings.Repeat("*", len(account))
	}
	return strings.Repeat("*", len(account)-4) + account[len(account)-4:]
}
