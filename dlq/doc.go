// Package dlq provides the dead letter hand-off for events whose
// handling permanently failed. It supports inspection, replay, and
// purging.
//
// When a handler exhausts its retry budget, the executor's final-error
// funnel calls [Service.Push] with the event, the failed handler's
// name, and the causing error. The original event payload, the error
// message, and the attempt counts are preserved for debugging.
//
// # Entry
//
// An [Entry] captures:
//   - EventID / EventType / HandlerName: what failed, and where
//   - Payload / Metadata: the event content at time of failure
//   - Error: the final error message
//   - Attempts / MaxRetries: the exhausted retry budget
//   - FailedAt: when the terminal failure occurred
//   - ReplayedAt: set when the entry is replayed (nil if not yet)
//
// # Replay
//
// [Replayer] walks un-replayed entries and re-dispatches their events
// through a Dispatcher, pacing entries with a backoff.Strategy. An
// entry is marked replayed only after the dispatch succeeds; the
// engine's own retry policy applies again on replay.
package dlq
