package frame

import (
	"testing"

	"github.com/ex3-obc/fsw-core/pkg/component"
	"github.com/ex3-obc/fsw-core/pkg/ferr"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 121, 122, 65527}
	for _, n := range sizes {
		f := Frame{
			MsgID:  7,
			Type:   Cmd,
			DestID: component.DFGM,
			SrcID:  component.GS,
			OpCode: 0,
			Body:   make([]byte, n),
		}
		for i := range f.Body {
			f.Body[i] = byte(i)
		}

		wire, err := Serialize(f)
		require.NoError(t, err)
		assert.Equal(t, HeaderSize+n, len(wire))

		got, err := Deserialize(wire)
		require.NoError(t, err)
		if !cmp.Equal(f, got) {
			t.Errorf("round trip mismatch:\n%s", cmp.Diff(f, got))
		}

		wire2, err := Serialize(got)
		require.NoError(t, err)
		assert.Equal(t, wire, wire2)
	}
}

func TestSerializeOverflow(t *testing.T) {
	f := Frame{Body: make([]byte, MaxLen)}
	_, err := Serialize(f)
	require.Error(t, err)
	assert.ErrorIs(t, err, ferr.ErrFrameMalformed)
}

func TestDeserializeShort(t *testing.T) {
	_, err := Deserialize([]byte{1, 2, 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ferr.ErrFrameMalformed)
}

func TestDeserializeBadLen(t *testing.T) {
	wire := make([]byte, 8)
	wire[6] = 4 // msg_len = 4, below HeaderSize
	_, err := Deserialize(wire)
	require.Error(t, err)
	assert.ErrorIs(t, err, ferr.ErrFrameMalformed)

	wire2 := make([]byte, 8)
	wire2[6] = 255
	wire2[7] = 255 // msg_len way beyond available bytes
	_, err = Deserialize(wire2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ferr.ErrFrameMalformed)
}

func TestDeserializeIgnoresTrailingBytes(t *testing.T) {
	f := Frame{MsgID: 1, Type: Cmd, DestID: component.EPS, SrcID: component.GS, OpCode: 2, Body: []byte("hi")}
	wire, err := Serialize(f)
	require.NoError(t, err)

	padded := append(wire, 0xAA, 0xBB, 0xCC)
	got, err := Deserialize(padded)
	require.NoError(t, err)
	assert.Equal(t, f.Body, got.Body)
}

func TestNewAck(t *testing.T) {
	req := Frame{MsgID: 42, Type: Cmd, DestID: component.DFGM, SrcID: component.GS, OpCode: 0}
	ack := NewAck(req, component.DFGM, AckSuccess)
	assert.Equal(t, req.MsgID, ack.MsgID)
	assert.Equal(t, Ack, ack.Type)
	assert.Equal(t, component.GS, ack.DestID)
	assert.Equal(t, component.DFGM, ack.SrcID)
	assert.Equal(t, AckSuccess, string(ack.Body))
}
