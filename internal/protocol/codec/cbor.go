package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

const cborName = "cbor"

// CBOR encodes with Core Deterministic Encoding. Opaque payload maps decode
// as map[string]any so handlers see the same shapes as with JSON.
var CBOR Codec = newCBORCodec()

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
	return cborCodec{enc: enc, dec: dec}
}

func (cborCodec) Name() string { return cborName }

func (c cborCodec) Marshal(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c cborCodec) Unmarshal(data []byte, v any) error {
	return c.dec.Unmarshal(data, v)
}
