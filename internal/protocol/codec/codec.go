// Package codec provides the wire encodings a link can put on its
// transport. Both ends of a link must agree on the codec; JSON is the
// default and matches the field names of the wire contract.
package codec

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrUnknownCodec = errors.New("codec: unknown codec")

// Codec marshals wire messages to bytes and back.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var registry = map[string]Codec{
	jsonName:    JSON,
	cborName:    CBOR,
	msgpackName: Msgpack,
}

// Lookup resolves a codec by name. An empty name selects JSON.
func Lookup(name string) (Codec, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return JSON, nil
	}
	c, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	return c, nil
}

// Names lists the registered codec names.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
