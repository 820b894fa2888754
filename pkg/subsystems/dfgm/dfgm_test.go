package dfgm

import (
	"bytes"
	"testing"
	"time"

	"github.com/ex3-obc/fsw-core/pkg/ferr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleAndTick(t *testing.T) {
	peripheral := bytes.NewReader(bytes.Repeat([]byte{0xAB}, 1252*3))
	var sink bytes.Buffer
	cap := New(peripheral, &sink)

	_, err := cap.HandleOpcode(OpToggleDataCollection, []byte("1"))
	require.NoError(t, err)

	cap.Tick(time.Now())
	assert.Equal(t, 1252, sink.Len())

	_, err = cap.HandleOpcode(OpToggleDataCollection, []byte("0"))
	require.NoError(t, err)
	cap.Tick(time.Now())
	assert.Equal(t, 1252, sink.Len(), "no new bytes appended once collection is disabled")
}

func TestRejectsBadToggleBody(t *testing.T) {
	cap := New(bytes.NewReader(nil), &bytes.Buffer{})
	_, err := cap.HandleOpcode(OpToggleDataCollection, []byte("x"))
	assert.ErrorIs(t, err, ferr.ErrFrameMalformed)
}

func TestRejectsUnknownOpcode(t *testing.T) {
	cap := New(bytes.NewReader(nil), &bytes.Buffer{})
	_, err := cap.HandleOpcode(99, nil)
	assert.ErrorIs(t, err, ferr.ErrOpcodeInvalid)
}
