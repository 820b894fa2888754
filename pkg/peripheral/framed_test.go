package peripheral

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	wire, err := Encode(0x03, []byte("housekeeping"))
	require.NoError(t, err)

	var got Packet
	r := NewReader(bytes.NewReader(wire), func(p Packet) { got = p })
	require.NoError(t, r.ReadOnce())

	assert.Equal(t, byte(0x03), got.Opcode)
	assert.Equal(t, []byte("housekeeping"), got.Payload)
}

func TestReaderResyncsOnBadCRC(t *testing.T) {
	good, err := Encode(0x01, []byte("ok"))
	require.NoError(t, err)

	corrupt := append([]byte(nil), good...)
	corrupt[len(corrupt)-1] ^= 0xFF // flip a payload CRC byte

	stream := append(corrupt, good...)

	var packets []Packet
	r := NewReader(bytes.NewReader(stream), func(p Packet) { packets = append(packets, p) })
	require.NoError(t, r.ReadOnce())

	require.Len(t, packets, 1)
	assert.Equal(t, []byte("ok"), packets[0].Payload)
}

func TestEncodeRejectsOversizePayload(t *testing.T) {
	_, err := Encode(0, make([]byte, MaxPayloadLength+1))
	assert.Error(t, err)
}
