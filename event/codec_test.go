package event_test

import (
	"errors"
	"testing"

	"github.com/xraph/herald"
	"github.com/xraph/herald/event"
)

func TestCodecFor_SelectsByContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"", event.ContentTypeJSON},
		{event.ContentTypeJSON, event.ContentTypeJSON},
		{event.ContentTypeMsgpack, event.ContentTypeMsgpack},
	}

	for _, tt := range tests {
		codec, err := event.CodecFor(tt.contentType)
		if err != nil {
			t.Fatalf("CodecFor(%q) error: %v", tt.contentType, err)
		}
		if codec.ContentType() != tt.want {
			t.Errorf("CodecFor(%q).ContentType() = %q, want %q", tt.contentType, codec.ContentType(), tt.want)
		}
	}
}

func TestCodecFor_UnknownContentType(t *testing.T) {
	_, err := event.CodecFor("application/x-thrift")
	if !errors.Is(err, herald.ErrUnknownCodec) {
		t.Errorf("expected ErrUnknownCodec, got %v", err)
	}
}

func TestCodec_RoundTripPreservesIdentity(t *testing.T) {
	original := event.New("order.placed", []byte(`{"order_id":42}`))
	original.Metadata = map[string]string{"tenant": "acme"}

	for _, ct := range []string{event.ContentTypeJSON, event.ContentTypeMsgpack} {
		codec, err := event.CodecFor(ct)
		if err != nil {
			t.Fatalf("CodecFor(%q): %v", ct, err)
		}

		data, err := codec.Marshal(original)
		if err != nil {
			t.Fatalf("%s marshal: %v", ct, err)
		}

		decoded, err := codec.Unmarshal(data)
		if err != nil {
			t.Fatalf("%s unmarshal: %v", ct, err)
		}

		if decoded.ID.String() != original.ID.String() {
			t.Errorf("%s: id mismatch %q != %q", ct, decoded.ID, original.ID)
		}
		if decoded.Type != original.Type {
			t.Errorf("%s: type mismatch %q != %q", ct, decoded.Type, original.Type)
		}
		if string(decoded.Payload) != string(original.Payload) {
			t.Errorf("%s: payload mismatch", ct)
		}
		if decoded.Metadata["tenant"] != "acme" {
			t.Errorf("%s: metadata lost", ct)
		}
	}
}

func TestWithMetadata_DoesNotMutateOriginal(t *testing.T) {
	original := event.New("user.created", nil)

	tagged := original.WithMetadata(map[string]string{"source": "api"})

	if original.Metadata != nil {
		t.Error("original event was mutated")
	}
	if tagged.Metadata["source"] != "api" {
		t.Error("copy is missing metadata")
	}
	if tagged.ID.String() != original.ID.String() {
		t.Error("copy changed identity")
	}
}
