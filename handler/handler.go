package handler

import (
	"context"

	"github.com/xraph/herald/event"
)

// Func is the handler capability: process one event, report an error on
// failure. Handlers must be stateless or internally thread-safe — the
// engine provides no isolation between concurrent invocations of the
// same handler for different events.
type Func func(ctx context.Context, evt *event.Event) error

// Lane selects the worker pool a handler executes on.
type Lane int

const (
	// LaneNonBlocking marks handlers that suspend cooperatively and are
	// cheap to run many at once. They share the general-purpose pool.
	LaneNonBlocking Lane = iota

	// LaneBlocking marks handlers that perform blocking I/O. They run on
	// a dedicated pool sized separately, so slow I/O cannot starve
	// non-blocking work.
	LaneBlocking
)

// String returns the lane name used in logs and metrics.
func (l Lane) String() string {
	switch l {
	case LaneBlocking:
		return "blocking"
	default:
		return "non_blocking"
	}
}

// Descriptor identifies one registered handler. Descriptors are created
// at startup and immutable thereafter; the registry owns them
// exclusively.
type Descriptor struct {
	// EventType is the exact event type this handler accepts. Dispatch
	// is keyed by exact type — no supertype or wildcard matching.
	EventType string

	// Name is a stable identifier for logging and metrics.
	Name string

	// Order controls execution order within one dispatch: lower values
	// start earlier. Ties preserve registration order.
	Order int

	// Lane selects the execution lane.
	Lane Lane

	// Fn is the handler function.
	Fn Func
}
