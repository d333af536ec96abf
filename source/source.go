// Package source defines the inbound event boundary: transports that
// deliver wire messages, decode them into events, and feed them to the
// executor through a Sink.
//
// Sources follow the at-least-once hand-off contract where the
// transport supports it: a message is acked or its offset committed
// only after the sink returns nil. A sink error leaves the message for
// transport-level redelivery, independent of the executor's own
// retries.
package source

import (
	"context"

	"github.com/xraph/herald/event"
)

// Sink consumes one decoded event. The executor's Execute method is the
// canonical sink.
type Sink func(ctx context.Context, evt *event.Event) error

// Source is a stream of events from one transport endpoint.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Run consumes messages and feeds them to sink until ctx is
	// cancelled (returning ctx.Err()) or the connection fails
	// (returning the transport error). The Runner handles reconnects;
	// Run does not retry internally.
	Run(ctx context.Context, sink Sink) error
}

// Decode unmarshals a wire message body using the codec for its content
// type. An empty content type defaults to JSON.
func Decode(contentType string, body []byte) (*event.Event, error) {
	codec, err := event.CodecFor(contentType)
	if err != nil {
		return nil, err
	}
	return codec.Unmarshal(body)
}
