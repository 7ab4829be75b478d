package manifest

import (
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
)

type Codec interface {
	Encode(m *Manifest) []byte
	Decode(data []byte) (*Manifest, error)
}

const (
	fileIdentifier = "DSMF"
	formatVersion  = 1

	// vtable offsets of the tracker table fields
	versionSlot = 4
	namesSlot   = 6
)

var ErrInvalidFlatbuffer = errors.New("invalid manifest flatbuffer")

// FlatBufferCodec encodes a Manifest as a flatbuffer table:
//
//	table Tracker { version: ushort; names: [string]; }
//	root_type Tracker; file_identifier "DSMF";
type FlatBufferCodec struct{}

var _ Codec = FlatBufferCodec{}

func (FlatBufferCodec) Encode(m *Manifest) []byte {
	builder := flatbuffers.NewBuilder(64)

	offsets := make([]flatbuffers.UOffsetT, len(m.names))
	for i, name := range m.names {
		offsets[i] = builder.CreateString(name)
	}
	builder.StartVector(flatbuffers.SizeUOffsetT, len(offsets), flatbuffers.SizeUOffsetT)
	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}
	names := builder.EndVector(len(offsets))

	builder.StartObject(2)
	builder.PrependUint16Slot(0, formatVersion, 0)
	builder.PrependUOffsetTSlot(1, names, 0)
	root := builder.EndObject()
	builder.FinishWithFileIdentifier(root, []byte(fileIdentifier))
	return builder.FinishedBytes()
}

func (FlatBufferCodec) Decode(data []byte) (m *Manifest, err error) {
	if len(data) < flatbuffers.SizeUOffsetT+len(fileIdentifier) {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrInvalidFlatbuffer, len(data))
	}
	if string(data[flatbuffers.SizeUOffsetT:flatbuffers.SizeUOffsetT+len(fileIdentifier)]) != fileIdentifier {
		return nil, fmt.Errorf("%w: missing file identifier", ErrInvalidFlatbuffer)
	}

	// flatbuffers accessors panic on out of range offsets
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("%w: %v", ErrInvalidFlatbuffer, r)
		}
	}()

	table := flatbuffers.Table{Bytes: data, Pos: flatbuffers.GetUOffsetT(data)}
	if o := flatbuffers.UOffsetT(table.Offset(versionSlot)); o != 0 {
		if v := table.GetUint16(o + table.Pos); v != formatVersion {
			return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidFlatbuffer, v)
		}
	}

	m = New()
	if o := flatbuffers.UOffsetT(table.Offset(namesSlot)); o != 0 {
		vec := table.Vector(o)
		n := table.VectorLen(o)
		if n < 0 || n > len(data)/flatbuffers.SizeUOffsetT {
			return nil, fmt.Errorf("%w: vector length %d exceeds buffer", ErrInvalidFlatbuffer, n)
		}
		m.names = make([]string, 0, n)
		for i := 0; i < n; i++ {
			m.names = append(m.names, table.String(vec+flatbuffers.UOffsetT(i*flatbuffers.SizeUOffsetT)))
		}
	}
	return m, nil
}
