package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/herald/event"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type dispatchStartedEntry struct {
	name string
	hook DispatchStarted
}

type dispatchCompletedEntry struct {
	name string
	hook DispatchCompleted
}

type handlerCompletedEntry struct {
	name string
	hook HandlerCompleted
}

type handlerRetryingEntry struct {
	name string
	hook HandlerRetrying
}

type handlerFailedEntry struct {
	name string
	hook HandlerFailed
}

type eventDeadLetteredEntry struct {
	name string
	hook EventDeadLettered
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	dispatchStarted   []dispatchStartedEntry
	dispatchCompleted []dispatchCompletedEntry
	handlerCompleted  []handlerCompletedEntry
	handlerRetrying   []handlerRetryingEntry
	handlerFailed     []handlerFailedEntry
	eventDeadLettered []eventDeadLetteredEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(DispatchStarted); ok {
		r.dispatchStarted = append(r.dispatchStarted, dispatchStartedEntry{name, h})
	}
	if h, ok := e.(DispatchCompleted); ok {
		r.dispatchCompleted = append(r.dispatchCompleted, dispatchCompletedEntry{name, h})
	}
	if h, ok := e.(HandlerCompleted); ok {
		r.handlerCompleted = append(r.handlerCompleted, handlerCompletedEntry{name, h})
	}
	if h, ok := e.(HandlerRetrying); ok {
		r.handlerRetrying = append(r.handlerRetrying, handlerRetryingEntry{name, h})
	}
	if h, ok := e.(HandlerFailed); ok {
		r.handlerFailed = append(r.handlerFailed, handlerFailedEntry{name, h})
	}
	if h, ok := e.(EventDeadLettered); ok {
		r.eventDeadLettered = append(r.eventDeadLettered, eventDeadLetteredEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitDispatchStarted notifies all extensions that implement DispatchStarted.
func (r *Registry) EmitDispatchStarted(ctx context.Context, evt *event.Event, handlerCount int) {
	for _, e := range r.dispatchStarted {
		if err := e.hook.OnDispatchStarted(ctx, evt, handlerCount); err != nil {
			r.logHookError("OnDispatchStarted", e.name, err)
		}
	}
}

// EmitDispatchCompleted notifies all extensions that implement DispatchCompleted.
func (r *Registry) EmitDispatchCompleted(ctx context.Context, evt *event.Event, succeeded, failed, skipped int, elapsed time.Duration) {
	for _, e := range r.dispatchCompleted {
		if err := e.hook.OnDispatchCompleted(ctx, evt, succeeded, failed, skipped, elapsed); err != nil {
			r.logHookError("OnDispatchCompleted", e.name, err)
		}
	}
}

// EmitHandlerCompleted notifies all extensions that implement HandlerCompleted.
func (r *Registry) EmitHandlerCompleted(ctx context.Context, evt *event.Event, handlerName string, elapsed time.Duration) {
	for _, e := range r.handlerCompleted {
		if err := e.hook.OnHandlerCompleted(ctx, evt, handlerName, elapsed); err != nil {
			r.logHookError("OnHandlerCompleted", e.name, err)
		}
	}
}

// EmitHandlerRetrying notifies all extensions that implement HandlerRetrying.
func (r *Registry) EmitHandlerRetrying(ctx context.Context, evt *event.Event, handlerName string, attempt int, delay time.Duration) {
	for _, e := range r.handlerRetrying {
		if err := e.hook.OnHandlerRetrying(ctx, evt, handlerName, attempt, delay); err != nil {
			r.logHookError("OnHandlerRetrying", e.name, err)
		}
	}
}

// EmitHandlerFailed notifies all extensions that implement HandlerFailed.
func (r *Registry) EmitHandlerFailed(ctx context.Context, evt *event.Event, handlerName string, attempts int, handlerErr error) {
	for _, e := range r.handlerFailed {
		if err := e.hook.OnHandlerFailed(ctx, evt, handlerName, attempts, handlerErr); err != nil {
			r.logHookError("OnHandlerFailed", e.name, err)
		}
	}
}

// EmitEventDeadLettered notifies all extensions that implement EventDeadLettered.
func (r *Registry) EmitEventDeadLettered(ctx context.Context, evt *event.Event, handlerName string, handlerErr error) {
	for _, e := range r.eventDeadLettered {
		if err := e.hook.OnEventDeadLettered(ctx, evt, handlerName, handlerErr); err != nil {
			r.logHookError("OnEventDeadLettered", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a hook failure. Hook errors never propagate to the
// dispatch path.
func (r *Registry) logHookError(hookName, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hookName),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
