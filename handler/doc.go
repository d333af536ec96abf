// Package handler defines the handler capability model and the registry
// that indexes handlers by the event type they declare.
//
// # Descriptors
//
// A [Descriptor] identifies one registered handler: the exact event type
// it accepts, a stable name for logs and metrics, an order (ascending =
// earlier execution), and a [Lane] tag telling the executor which worker
// pool the handler runs on. A handler serving multiple event types
// registers one descriptor per type.
//
// # Registration
//
// Registration is an explicit call, not reflection discovery:
//
//	reg.Register(handler.Descriptor{
//	    EventType: "order.placed",
//	    Name:      "reserve-stock",
//	    Lane:      handler.LaneNonBlocking,
//	    Fn:        reserveStock,
//	})
//
// A descriptor with no event type or no function cannot be dispatched;
// it is logged at Warn and dropped. This only reduces dispatch coverage,
// it never fails startup.
//
// # Two-phase startup
//
// Build the registry completely, then call [Registry.Seal] before the
// first dispatch. After sealing the registry is immutable and lookups
// need no coordination. Test doubles may keep registering as long as
// they do not seal.
package handler
