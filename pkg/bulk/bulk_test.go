package bulk

import (
	"testing"

	"github.com/ex3-obc/fsw-core/pkg/component"
	"github.com/ex3-obc/fsw-core/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bigFrame(n int) frame.Frame {
	body := make([]byte, n)
	for i := range body {
		body[i] = byte(i)
	}
	return frame.Frame{MsgID: 5, Type: frame.Cmd, DestID: component.GS, SrcID: component.SHELL, OpCode: 0, Body: body}
}

func TestSliceNoFragmentationWhenEqual(t *testing.T) {
	f := bigFrame(40)
	out, err := Slice(f, 40)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, f.Body, out[0].Body)
}

func TestSliceAndReassembleRoundTrip(t *testing.T) {
	f := bigFrame(512)
	out, err := Slice(f, MaxBulkBody)
	require.NoError(t, err)
	// 512 / 121 = 5 fragments (ceil)
	require.Len(t, out, 6) // header + 5

	got, err := Reassemble(out)
	require.NoError(t, err)
	assert.Equal(t, f.Body, got.Body)
	assert.Equal(t, f.MsgID, got.MsgID)
	assert.Equal(t, f.DestID, got.DestID)
	assert.Equal(t, f.SrcID, got.SrcID)
}

func TestSliceHeaderFrameBody(t *testing.T) {
	f := bigFrame(742)
	out, err := Slice(f, 40)
	require.NoError(t, err)
	numPackets := (742 + 40 - 1) / 40
	require.Len(t, out, numPackets+1)
	assert.Equal(t, byte(numPackets), out[0].Body[0])
	assert.Equal(t, byte(1), out[1].Body[0])
	assert.Equal(t, byte(2), out[2].Body[0])
}

func TestReassembleTruncatedBurstFails(t *testing.T) {
	f := bigFrame(512)
	out, err := Slice(f, MaxBulkBody)
	require.NoError(t, err)

	truncated := out[:len(out)-1] // drop the last fragment
	_, err = Reassemble(truncated)
	assert.ErrorIs(t, err, ErrCountMismatch)
}

func TestReassembleEmptyInput(t *testing.T) {
	_, err := Reassemble(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestReassembleBadSequence(t *testing.T) {
	f := bigFrame(300)
	out, err := Slice(f, MaxBulkBody)
	require.NoError(t, err)

	// swap the last two fragments to break ascending order
	n := len(out)
	out[n-1], out[n-2] = out[n-2], out[n-1]

	_, err = Reassemble(out)
	assert.ErrorIs(t, err, ErrBadSequence)
}

func TestBoundarySizes(t *testing.T) {
	for _, n := range []int{0, 1, MaxBulkBody, MaxBulkBody + 1} {
		f := bigFrame(n)
		out, err := Slice(f, MaxBulkBody)
		require.NoError(t, err)
		if n <= MaxBulkBody {
			require.Len(t, out, 1)
			continue
		}
		got, err := Reassemble(out)
		require.NoError(t, err)
		assert.Equal(t, f.Body, got.Body)
	}
}
