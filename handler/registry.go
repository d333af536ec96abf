package handler

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/xraph/herald"
)

// Registry maps event types to ordered lists of handler descriptors.
// It is safe for concurrent use; after Seal it is read-only for the
// process lifetime. Two instances exist per engine — one per execution
// lane — sharing this implementation.
type Registry struct {
	mu     sync.RWMutex
	byType map[string][]Descriptor
	sealed bool
	logger *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for registration warnings.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty handler registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byType: make(map[string][]Descriptor),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a descriptor to the registry. A descriptor without an
// event type or function cannot be dispatched; it is logged at Warn and
// dropped, and herald.ErrUnresolvedHandler is returned. Dropping is
// deliberately non-fatal — it only reduces dispatch coverage.
//
// Register returns herald.ErrRegistrySealed after Seal has been called.
func (r *Registry) Register(d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return herald.ErrRegistrySealed
	}

	if d.EventType == "" || d.Fn == nil {
		r.logger.Warn("dropping handler with unresolvable capability",
			slog.String("handler", d.Name),
			slog.String("event_type", d.EventType),
		)
		return herald.ErrUnresolvedHandler
	}

	list := append(r.byType[d.EventType], d)

	// Ascending order wins at dispatch time; ties keep registration
	// order. Sorting at registration keeps lookups allocation-only.
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Order < list[j].Order
	})

	r.byType[d.EventType] = list

	return nil
}

// Seal marks the registry immutable. Subsequent Register calls fail
// with herald.ErrRegistrySealed. Sealing twice is a no-op.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether the registry has been sealed.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Handlers returns the descriptors registered for the exact event type,
// ordered by ascending Order then registration order. It returns an
// empty slice — never nil, never an error — when no handlers match.
// The returned slice is a copy; callers may not affect the registry.
func (r *Registry) Handlers(eventType string) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.byType[eventType]
	out := make([]Descriptor, len(list))
	copy(out, list)
	return out
}

// HandlerCount returns the total number of registered descriptors.
func (r *Registry) HandlerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, list := range r.byType {
		n += len(list)
	}
	return n
}

// HandlerCountFor returns the number of descriptors registered for the
// given event type.
func (r *Registry) HandlerCountFor(eventType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType[eventType])
}

// EventTypes returns all event types with at least one handler.
func (r *Registry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	return types
}
