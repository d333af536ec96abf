// Package herald provides a domain-event dispatch engine for Go. An
// incoming event is fanned out to every handler registered for its type
// under configurable concurrency, timeout, ordering, and retry policies,
// across two execution lanes (non-blocking and blocking handlers).
//
// Herald is designed as a library, not a service. Import it, register
// handlers, and publish events — from in-process code or from a broker
// source that deserializes wire messages into events.
//
// # Quick Start
//
//	eng, err := engine.New(
//	    engine.WithDispatchConfig(dispatch.DefaultConfig()),
//	)
//	eng.RegisterNonBlocking("order.placed", "reserve-stock", reserveStock)
//	eng.RegisterBlocking("order.placed", "write-ledger", writeLedger)
//
//	if err := eng.Start(ctx); err != nil { ... }
//	eng.Publish(ctx, event.New("order.placed", payload))
//
// # Architecture
//
// Handlers are indexed by exact event type in two read-mostly registries
// (one per execution lane). The dispatch executor merges both lists,
// sorts by ascending order, and drives each handler through a middleware
// chain with a shared concurrency gate, per-attempt timeouts, and an
// exponential retry policy. Terminal failures are funneled to a single
// sink that can dead-letter the event and notify operators.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package herald
