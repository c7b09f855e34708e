package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	OpAuthorize = "auth"
	OpCapture   = "capture"
	OpVoid      = "void"
	OpInquire   = "inquire"
)

// GatewayConfig is the immutable connection snapshot a CardPointeGateway
// is built from. AuthHeader is the complete Authorization header value.
type GatewayConfig struct {
	BaseURL    string
	MerchantID string
	AuthHeader string
	// Timeout bounds each HTTP exchange. Zero means no client-side limit.
	Timeout time.Duration
}

type Option func(*options)

type options struct {
	httpClient *http.Client
	transport  http.RoundTripper
	observers  []Observer
}

// WithHTTPClient uses a copy of hc for every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithTransport replaces the round tripper of the underlying client.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithObserver adds an observer. Observers run in the order they were added.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// CardPointeGateway talks to the CardPointe Gateway REST API. It keeps no
// per-transaction state and is safe for concurrent use.
type CardPointeGateway struct {
	baseURL    string
	merchantID string
	authHeader string
	httpClient *http.Client
	observer   Observer
}

var _ Gateway = (*CardPointeGateway)(nil)

// ----------------- Constructor -----------------

func NewCardPointeGateway(cfg GatewayConfig, opts ...Option) (*CardPointeGateway, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	hc := &http.Client{}
	if o.httpClient != nil {
		c := *o.httpClient
		hc = &c
	}
	if cfg.Timeout > 0 {
		hc.Timeout = cfg.Timeout
	}
	if o.transport != nil {
		hc.Transport = o.transport
	}

	return &CardPointeGateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		merchantID: cfg.MerchantID,
		authHeader: cfg.AuthHeader,
		httpClient: hc,
		observer:   Observers(o.observers...),
	}, nil
}

func (c GatewayConfig) validate() error {
	var errs []error

	if c.BaseURL == "" {
		errs = append(errs, errors.New("base url is required"))
	} else if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("base url %q must be an absolute http(s) url", c.BaseURL))
	}
	if c.MerchantID == "" {
		errs = append(errs, errors.New("merchant id is required"))
	}
	if c.AuthHeader == "" {
		errs = append(errs, errors.New("authorization header is required"))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (g *CardPointeGateway) MerchantID() string { return g.merchantID }

// ----------------- Authorize -----------------

// Authorize places a hold for req.Amount. The gateway's merchant id is
// always the configured one. Nothing in req is validated client-side.
func (g *CardPointeGateway) Authorize(ctx context.Context, req AuthorizationRequest) (*AuthorizationResponse, error) {
	payload := authorizationPayload{
		MerchID:              g.merchantID,
		AuthorizationRequest: req,
	}

	var res AuthorizationResponse
	if err := g.do(ctx, OpAuthorize, http.MethodPut, "/auth", payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ----------------- Capture -----------------

// Capture settles a prior authorization. An absent amount captures the
// full authorized amount; a present one is sent verbatim.
func (g *CardPointeGateway) Capture(ctx context.Context, retref string, amount Optional[string]) (*CaptureResponse, error) {
	if retref == "" {
		return nil, fmt.Errorf("cardpointe %s: %w", OpCapture, ErrMissingRetref)
	}

	payload := capturePayload{
		MerchID: g.merchantID,
		RetRef:  retref,
		Amount:  amount,
	}

	var res CaptureResponse
	if err := g.do(ctx, OpCapture, http.MethodPut, "/capture", payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ----------------- Void -----------------

func (g *CardPointeGateway) Void(ctx context.Context, retref string) (*VoidResponse, error) {
	if retref == "" {
		return nil, fmt.Errorf("cardpointe %s: %w", OpVoid, ErrMissingRetref)
	}

	payload := voidPayload{
		MerchID: g.merchantID,
		RetRef:  retref,
	}

	var res VoidResponse
	if err := g.do(ctx, OpVoid, http.MethodPut, "/void", payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ----------------- Inquire -----------------

// Inquire fetches the current state of a transaction. retref and the
// merchant id are percent-encoded as single path segments.
func (g *CardPointeGateway) Inquire(ctx context.Context, retref string) (*InquireResponse, error) {
	if retref == "" {
		return nil, fmt.Errorf("cardpointe %s: %w", OpInquire, ErrMissingRetref)
	}

	path := InquirePath(retref, g.merchantID)

	var res InquireResponse
	if err := g.do(ctx, OpInquire, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// InquirePath returns the escaped request path for an inquire call.
func InquirePath(retref, merchantID string) string {
	return "/inquire/" + escapeSegment(retref) + "/" + escapeSegment(merchantID)
}

// escapeSegment escapes s as one path segment. "." and ".." are
// percent-encoded too, since servers remove them as dot segments.
func escapeSegment(s string) string {
	switch s {
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	}
	return url.PathEscape(s)
}

// ----------------- Transport -----------------

type statusCarrier interface {
	status() RespStat
}

func (r *AuthorizationResponse) status() RespStat { return r.RespStat }
func (r *CaptureResponse) status() RespStat       { return r.RespStat }
func (r *VoidResponse) status() RespStat          { return r.RespStat }
func (r *InquireResponse) status() RespStat       { return r.RespStat }

// do performs exactly one HTTP exchange. payload may be nil for GET.
func (g *CardPointeGateway) do(ctx context.Context, op, method, path string, payload any, out statusCarrier) (err error) {
	target := g.baseURL + path

	var body []byte
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("cardpointe %s: encode request: %w", op, err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("cardpointe %s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", g.authHeader)

	g.observer.OnRequest(ctx, RequestEvent{Op: op, Method: method, URL: target, Body: body})

	start := time.Now()
	ev := ResponseEvent{Op: op, Method: method, URL: target}
	defer func() {
		ev.Duration = time.Since(start)
		ev.Err = err
		g.observer.OnResponse(ctx, ev)
	}()

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	ev.StatusCode = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Method: method, URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	ev.Body = respBody

	if resp.StatusCode/100 != 2 {
		return &TransportError{Op: op, Method: method, URL: target, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &ProtocolError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody), Err: err}
	}
	if !out.status().Valid() {
		return &ProtocolError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody), Err: fmt.Errorf("unexpected respstat %q", out.status())}
	}
	return nil
}
