package codec

import (
	"errors"
	"testing"
)

type envelope struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data,omitempty"`
}

func TestLookup(t *testing.T) {
	c, err := Lookup("")
	if err != nil || c.Name() != "json" {
		t.Fatalf("default codec=%v err=%v", c, err)
	}
	c, err = Lookup(" CBOR ")
	if err != nil || c.Name() != "cbor" {
		t.Fatalf("cbor lookup=%v err=%v", c, err)
	}
	if _, err := Lookup("xml"); !errors.Is(err, ErrUnknownCodec) {
		t.Fatalf("expected ErrUnknownCodec, got %v", err)
	}
	if got := Names(); len(got) != 3 || got[0] != "cbor" || got[1] != "json" || got[2] != "msgpack" {
		t.Fatalf("unexpected names: %v", got)
	}
}

func TestBinaryCodecsDecodeNestedPayloadAsStringMaps(t *testing.T) {
	for _, c := range []Codec{CBOR, Msgpack} {
		raw, err := c.Marshal(envelope{
			ID: "m1",
			Data: map[string]any{
				"path":  "title",
				"patch": map[string]any{"set": "hello"},
			},
		})
		if err != nil {
			t.Fatalf("%s marshal: %v", c.Name(), err)
		}
		var out envelope
		if err := c.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s unmarshal: %v", c.Name(), err)
		}
		if out.ID != "m1" || out.Data["path"] != "title" {
			t.Fatalf("%s lost fields: %+v", c.Name(), out)
		}
		nested, ok := out.Data["patch"].(map[string]any)
		if !ok {
			t.Fatalf("%s nested payload type %T", c.Name(), out.Data["patch"])
		}
		if nested["set"] != "hello" {
			t.Fatalf("%s nested value %v", c.Name(), nested["set"])
		}
	}
}
