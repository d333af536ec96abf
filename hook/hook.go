// Package hook defines the lifecycle hook system for Herald.
//
// Extensions are notified of dispatch lifecycle events and can react to
// them — recording metrics, alerting, writing audit trails. Each
// lifecycle hook is a separate interface so extensions opt in only to
// the events they care about. Hooks observe; they never affect dispatch
// control flow, and their errors are logged, not propagated.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnHandlerCompleted(ctx context.Context, evt *event.Event, handlerName string, elapsed time.Duration) error {
//	    log.Printf("handler %s processed %s in %s", handlerName, evt.ID, elapsed)
//	    return nil
//	}
//
// # Hooks
//
//   - [DispatchStarted] — an event entered the executor
//   - [DispatchCompleted] — every handler for an event finished or was skipped
//   - [HandlerCompleted] — one handler finished successfully
//   - [HandlerRetrying] — one handler failed and will be retried
//   - [HandlerFailed] — one handler exhausted its retries
//   - [EventDeadLettered] — an event was handed to the dead letter store
//   - [Shutdown] — the engine is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package hook

import (
	"context"
	"time"

	"github.com/xraph/herald/event"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// DispatchStarted is called when an event enters the executor with at
// least one matching handler.
type DispatchStarted interface {
	OnDispatchStarted(ctx context.Context, evt *event.Event, handlerCount int) error
}

// DispatchCompleted is called when a dispatch finishes, whatever the
// outcome. succeeded and failed count terminal handler results; skipped
// counts handlers never started because of fail-fast termination.
type DispatchCompleted interface {
	OnDispatchCompleted(ctx context.Context, evt *event.Event, succeeded, failed, skipped int, elapsed time.Duration) error
}

// HandlerCompleted is called after a handler finishes successfully.
type HandlerCompleted interface {
	OnHandlerCompleted(ctx context.Context, evt *event.Event, handlerName string, elapsed time.Duration) error
}

// HandlerRetrying is called when a handler attempt fails but will be
// retried after delay.
type HandlerRetrying interface {
	OnHandlerRetrying(ctx context.Context, evt *event.Event, handlerName string, attempt int, delay time.Duration) error
}

// HandlerFailed is called when a handler fails terminally — retries
// exhausted or the error not retryable.
type HandlerFailed interface {
	OnHandlerFailed(ctx context.Context, evt *event.Event, handlerName string, attempts int, err error) error
}

// EventDeadLettered is called after an event is handed to the dead
// letter store for a terminally failed handler.
type EventDeadLettered interface {
	OnEventDeadLettered(ctx context.Context, evt *event.Event, handlerName string, err error) error
}

// Shutdown is called during graceful engine shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
