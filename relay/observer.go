package relay

import (
	"context"

	"github.com/marcelsud/zoom-relay/relay/forwarder"
)

// Observer receives delivery events for metrics
type Observer interface {
	InboundHandled(ctx context.Context, state State, status int)
	InboundRetried(ctx context.Context)
	Forwarded(ctx context.Context, result forwarder.Result, err error)
	PublishFailed(ctx context.Context)
	DeadLettered(ctx context.Context)
}

// NopObserver discards every event
type NopObserver struct{}

func (NopObserver) InboundHandled(context.Context, State, int)         {}
func (NopObserver) InboundRetried(context.Context)                     {}
func (NopObserver) Forwarded(context.Context, forwarder.Result, error) {}
func (NopObserver) PublishFailed(context.Context)                      {}
func (NopObserver) DeadLettered(context.Context)                       {}
