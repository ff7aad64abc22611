package scribe

import (
	"context"
	"time"
)

// StatusEvent describes one task transition. The orchestrator emits an event
// after every transition, including suspension and terminal states; delivery
// beyond the callback is the subscriber's responsibility.
type StatusEvent struct {
	TaskID      string
	Stage       Stage
	Action      string
	Request     string
	FinalResult string
	Error       string
	Time        time.Time
}

// TaskCallbacks receives status-changed events from the orchestrator.
// Implementations must not block; long-running delivery belongs on the
// subscriber's side of a channel.
type TaskCallbacks interface {
	OnStatusChange(ctx context.Context, event *StatusEvent)
}

// BaseTaskCallbacks provides a default implementation that does nothing.
// Embed it to implement only the behavior you need.
type BaseTaskCallbacks struct{}

func (b *BaseTaskCallbacks) OnStatusChange(ctx context.Context, event *StatusEvent) {
	// noop
}

// CallbackChain fans one event out to multiple callback implementations in
// order.
type CallbackChain struct {
	callbacks []TaskCallbacks
}

// NewCallbackChain creates a chain over the given callbacks.
func NewCallbackChain(callbacks ...TaskCallbacks) *CallbackChain {
	return &CallbackChain{callbacks: callbacks}
}

// Add appends a callback to the chain.
func (c *CallbackChain) Add(callback TaskCallbacks) {
	c.callbacks = append(c.callbacks, callback)
}

func (c *CallbackChain) OnStatusChange(ctx context.Context, event *StatusEvent) {
	for _, callback := range c.callbacks {
		callback.OnStatusChange(ctx, event)
	}
}
