package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatBufferRoundTrip(t *testing.T) {
	codec := FlatBufferCodec{}
	for _, names := range [][]string{
		{},
		{"A"},
		{"persistentClass", "A", "persistentClass", "with space", "ünïcode"},
	} {
		m, err := codec.Decode(codec.Encode(New(names...)))
		require.NoError(t, err)
		assert.Equal(t, len(names), m.Len())
		for i, n := range m.Names() {
			assert.Equal(t, names[i], n)
		}
	}
}

func TestFlatBufferRejectsGarbage(t *testing.T) {
	codec := FlatBufferCodec{}
	good := codec.Encode(New("A", "B"))

	for name, data := range map[string][]byte{
		"empty":         nil,
		"short":         []byte("abc"),
		"no identifier": []byte("0000XXXX0000000000000000"),
		"truncated":     good[:len(good)/2],
		"bad root":      append([]byte{0xff, 0xff, 0xff, 0x7f}, good[4:]...),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode(data)
			assert.ErrorIs(t, err, ErrInvalidFlatbuffer)
		})
	}
}

func TestManifestNamesIsACopy(t *testing.T) {
	m := New("A")
	names := m.Names()
	names[0] = "Z"
	assert.Equal(t, []string{"A"}, m.Names())
}
