package event

import "github.com/vmihailenco/msgpack/v5"

// MsgpackCodec encodes/decodes events as MessagePack, for transports
// where payload size matters more than readability.
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(evt *Event) ([]byte, error) {
	return msgpack.Marshal(evt)
}

func (MsgpackCodec) Unmarshal(data []byte) (*Event, error) {
	var e Event
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (MsgpackCodec) ContentType() string { return ContentTypeMsgpack }
