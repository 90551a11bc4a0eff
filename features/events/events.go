// Package events publishes the event types actions declare for emission.
// Publishing is best-effort auxiliary output: the executor logs and continues
// when a publisher fails, so an event bus outage never fails an action.
package events

import (
	"context"

	"goa.design/toolforge/runtime/tool"
)

// Publisher delivers action events to interested consumers (triggers,
// observability pipelines).
type Publisher interface {
	// Publish delivers the events emitted by one action execution for the
	// given tool.
	Publish(ctx context.Context, toolID string, events []tool.Event) error
}

// NoopPublisher discards all events.
type NoopPublisher struct{}

// NewNoopPublisher constructs a Publisher that discards all events.
func NewNoopPublisher() Publisher {
	return NoopPublisher{}
}

// Publish discards the events.
func (NoopPublisher) Publish(context.Context, string, []tool.Event) error {
	return nil
}
