package event

import (
	"fmt"

	"github.com/xraph/herald"
)

// Codec defines the serialization contract for events on the wire.
// Transport sources pick a codec by the content type of the incoming
// message.
type Codec interface {
	// Marshal serializes an event to bytes.
	Marshal(evt *Event) ([]byte, error)

	// Unmarshal deserializes bytes into an event.
	Unmarshal(data []byte) (*Event, error)

	// ContentType returns the MIME content type this codec produces.
	ContentType() string
}

// Content type constants for codec negotiation.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgpack = "application/msgpack"
)

// CodecFor returns the codec for the given content type. An empty
// content type defaults to JSON. Unknown content types return
// herald.ErrUnknownCodec so sources can reject rather than misparse.
func CodecFor(contentType string) (Codec, error) {
	switch contentType {
	case ContentTypeJSON, "":
		return JSONCodec{}, nil
	case ContentTypeMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", herald.ErrUnknownCodec, contentType)
	}
}
