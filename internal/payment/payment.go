package payment

import (
	"context"
)

// Gateway is the transaction API of a card-payment gateway.
type Gateway interface {
	Authorize(ctx context.Context, req AuthorizationRequest) (*AuthorizationResponse, error)
	Capture(ctx context.Context, retref string, amount Optional[string]) (*CaptureResponse, error)
	Void(ctx context.Context, retref string) (*VoidResponse, error)
	Inquire(ctx context.Context, retref string) (*InquireResponse, error)
	MerchantID() string
}

// Observer is told about every outgoing gateway call. It must not block.
// OnResponse fires once for each OnRequest, including network failures.
type Observer interface {
	OnRequest(ctx context.Context, ev RequestEvent)
	OnResponse(ctx context.Context, ev ResponseEvent)
}

type nopObserver struct{}

func (nopObserver) OnRequest(context.Context, RequestEvent)   {}
func (nopObserver) OnResponse(context.Context, ResponseEvent) {}

type multiObserver []Observer

func (m multiObserver) OnRequest(ctx context.Context, ev RequestEvent) {
	for _, o := range m {
		o.OnRequest(ctx, ev)
	}
}

func (m multiObserver) OnResponse(ctx context.Context, ev ResponseEvent) {
	for _, o := range m {
		o.OnResponse(ctx, ev)
	}
}

// Observers fans events out to each non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	switch len(m) {
	case 0:
		return nopObserver{}
	case 1:
		return m[0]
	}
	return m
}
