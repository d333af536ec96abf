package event

import "encoding/json"

// JSONCodec encodes/decodes events as JSON. It is the default wire
// format for all transport sources.
type JSONCodec struct{}

func (JSONCodec) Marshal(evt *Event) ([]byte, error) {
	return json.Marshal(evt)
}

func (JSONCodec) Unmarshal(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (JSONCodec) ContentType() string { return ContentTypeJSON }
