// Package notify defines the external notification hand-off for
// terminal handler failures. The executor (or the hook adapter in this
// package) builds a Failure and hands it to a Notifier; what happens
// next — paging, chat messages, tickets — lives outside the engine.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/herald/event"
	"github.com/xraph/herald/hook"
	"github.com/xraph/herald/id"
)

// Failure describes one terminal handler failure.
type Failure struct {
	EventID     id.EventID
	EventType   string
	HandlerName string
	Attempts    int
	Error       string
	FailedAt    time.Time
}

// Notifier delivers failure notifications. Implementations must be safe
// for concurrent use; delivery errors are logged by the caller and
// never affect dispatch control flow.
type Notifier interface {
	Notify(ctx context.Context, f *Failure) error
}

// SlogNotifier logs failures through a structured logger. It is the
// default notifier and doubles as a template for real integrations.
type SlogNotifier struct {
	logger *slog.Logger
	level  slog.Level
}

// SlogOption configures a SlogNotifier.
type SlogOption func(*SlogNotifier)

// WithLevel sets the log level for notifications. Defaults to Error.
func WithLevel(l slog.Level) SlogOption {
	return func(n *SlogNotifier) { n.level = l }
}

// NewSlogNotifier creates a notifier that logs failures.
func NewSlogNotifier(logger *slog.Logger, opts ...SlogOption) *SlogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &SlogNotifier{logger: logger, level: slog.LevelError}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify logs the failure.
func (n *SlogNotifier) Notify(ctx context.Context, f *Failure) error {
	n.logger.Log(ctx, n.level, "handler failure notification",
		slog.String("event_id", f.EventID.String()),
		slog.String("event_type", f.EventType),
		slog.String("handler", f.HandlerName),
		slog.Int("attempts", f.Attempts),
		slog.String("error", f.Error),
		slog.Time("failed_at", f.FailedAt),
	)
	return nil
}

// Extension bridges lifecycle hooks to a Notifier, for wiring
// notifications through the hook registry instead of executor config.
// Do not combine with the executor's own notification setting or
// failures notify twice.
type Extension struct {
	notifier Notifier
}

var _ hook.HandlerFailed = (*Extension)(nil)

// NewExtension creates a hook extension forwarding terminal failures to
// the given notifier.
func NewExtension(n Notifier) *Extension {
	return &Extension{notifier: n}
}

// Name implements hook.Extension.
func (e *Extension) Name() string { return "notify" }

// OnHandlerFailed forwards the terminal failure to the notifier.
func (e *Extension) OnHandlerFailed(ctx context.Context, evt *event.Event, handlerName string, attempts int, err error) error {
	return e.notifier.Notify(ctx, &Failure{
		EventID:     evt.ID,
		EventType:   evt.Type,
		HandlerName: handlerName,
		Attempts:    attempts,
		Error:       err.Error(),
		FailedAt:    time.Now().UTC(),
	})
}
