package dispatch

import (
	"time"

	"github.com/xraph/herald/id"
)

// Outcome is the terminal result of one handler within a dispatch.
type Outcome struct {
	// HandlerName identifies the handler.
	HandlerName string

	// EventID is the event the handler was invoked for.
	EventID id.EventID

	// Attempts is the total number of invocation attempts, including
	// the first. Zero when the handler was skipped.
	Attempts int

	// Err is the final error after all attempts, nil on success.
	Err error

	// Skipped is true when the handler never started because an
	// earlier handler failed terminally under fail-fast dispatch.
	Skipped bool

	// Elapsed covers all attempts including backoff delays.
	Elapsed time.Duration
}

// Result aggregates the outcomes of one dispatch.
type Result struct {
	EventID   id.EventID
	EventType string
	Outcomes  []Outcome
	Elapsed   time.Duration
}

// Succeeded counts handlers that completed without error.
func (r *Result) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Skipped && o.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts handlers that failed terminally.
func (r *Result) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Skipped && o.Err != nil {
			n++
		}
	}
	return n
}

// Skipped counts handlers that never started.
func (r *Result) Skipped() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Skipped {
			n++
		}
	}
	return n
}
