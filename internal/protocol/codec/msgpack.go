package codec

import (
	"reflect"

	ugorji "github.com/ugorji/go/codec"
)

const msgpackName = "msgpack"

// Msgpack is a compact binary codec. Struct fields use their json tags.
var Msgpack Codec = newMsgpackCodec()

type msgpackCodec struct {
	handle *ugorji.MsgpackHandle
}

func newMsgpackCodec() msgpackCodec {
	h := &ugorji.MsgpackHandle{}
	h.MapType = reflect.TypeOf(map[string]any(nil))
	h.RawToString = true
	h.WriteExt = true
	return msgpackCodec{handle: h}
}

func (msgpackCodec) Name() string { return msgpackName }

func (c msgpackCodec) Marshal(v any) ([]byte, error) {
	var out []byte
	if err := ugorji.NewEncoderBytes(&out, c.handle).Encode(v); err != nil {
		return nil, err
	}
	return out, nil
}

func (c msgpackCodec) Unmarshal(data []byte, v any) error {
	return ugorji.NewDecoderBytes(data, c.handle).Decode(v)
}
