// Package dispatch implements the event dispatch executor — the hot
// path that fans one event out to its registered handlers.
//
// The Executor looks up handlers in both lane registries, merges and
// orders them, then runs them either sequentially or in parallel on the
// two worker pools. A shared weighted semaphore bounds in-flight
// handler executions across both lanes. Each handler attempt runs
// through the middleware chain under an optional per-attempt timeout;
// failed attempts are retried per the configured retry.Policy when the
// error is retryable. Handlers that fail terminally are routed through
// a single funnel that logs at a configurable level and optionally
// hands the event to the dead letter store and a notifier.
//
// # Error Contract
//
// Execute returns nil when every handler succeeds, and also when
// handlers fail under ContinueOnError — terminal failures are recorded
// and funneled, not propagated. Only with ContinueOnError disabled does
// a terminal failure surface to the caller, wrapped in
// herald.ErrDispatchFailed. Transport sources use that signal to decide
// redelivery; the executor's own retries and transport redelivery are
// independent layers.
package dispatch
