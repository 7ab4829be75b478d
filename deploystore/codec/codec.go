// Package codec turns storable values into bytes and back.
//
// The store never inspects the bytes a Codec produces; swapping the Codec
// changes the on-disk encoding without touching anything else.
package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"reflect"

	"github.com/deploystore/deploystore-go/internal/compress"
)

// Encodable is implemented by every type that may be saved. EncodableType
// names the type in status messages.
type Encodable interface {
	EncodableType() string
}

// TypeName returns the name used for v in status messages. A nil pointer is
// named by its Go type, since EncodableType may have a value receiver.
func TypeName(v any) string {
	if e, ok := v.(Encodable); ok && !isNilPointer(v) {
		return e.EncodableType()
	}
	return fmt.Sprintf("%T", v)
}

// Eligible reports whether v may be saved: it implements Encodable and is
// not a nil pointer.
func Eligible(v any) bool {
	_, ok := v.(Encodable)
	return ok && !isNilPointer(v)
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

type Codec interface {
	Encode(v any) ([]byte, error)
	// Decode fills the value pointed to by v.
	Decode(data []byte, v any) error
}

// Gob encodes values with encoding/gob.
type Gob struct{}

var _ Codec = Gob{}

func (Gob) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Gob) Decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

type compressed struct {
	inner Codec
	codec compress.Codec
}

// Compressed wraps inner so its output is compressed with c. CodecNone
// returns inner unchanged.
func Compressed(inner Codec, c compress.Codec) Codec {
	if c == compress.CodecNone {
		return inner
	}
	return compressed{inner: inner, codec: c}
}

func (c compressed) Encode(v any) ([]byte, error) {
	raw, err := c.inner.Encode(v)
	if err != nil {
		return nil, err
	}
	return compress.Encode(raw, c.codec)
}

func (c compressed) Decode(data []byte, v any) error {
	raw, err := compress.Decode(data, c.codec)
	if err != nil {
		return fmt.Errorf("while decompressing %s: %w", c.codec, err)
	}
	return c.inner.Decode(raw, v)
}
