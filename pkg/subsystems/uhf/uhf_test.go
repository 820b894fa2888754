package uhf

import (
	"testing"

	"github.com/ex3-obc/fsw-core/pkg/ferr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetBeacon(t *testing.T) {
	cap := New(DefaultOpTable())

	_, err := cap.HandleOpcode(1, []byte("hello42"))
	require.NoError(t, err)

	frames, err := cap.HandleOpcode(2, nil)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("hello42"), frames[0].Body)
}

func TestSetAndGetMode(t *testing.T) {
	cap := New(DefaultOpTable())

	_, err := cap.HandleOpcode(3, []byte("2"))
	require.NoError(t, err)

	frames, err := cap.HandleOpcode(4, nil)
	require.NoError(t, err)
	assert.Equal(t, "2", string(frames[0].Body))
}

func TestUnknownOpcode(t *testing.T) {
	cap := New(DefaultOpTable())
	_, err := cap.HandleOpcode(99, nil)
	assert.ErrorIs(t, err, ferr.ErrOpcodeInvalid)
}

func TestResetClearsState(t *testing.T) {
	cap := New(DefaultOpTable())
	_, err := cap.HandleOpcode(1, []byte("beacon"))
	require.NoError(t, err)

	_, err = cap.HandleOpcode(5, nil)
	require.NoError(t, err)

	frames, err := cap.HandleOpcode(2, nil)
	require.NoError(t, err)
	assert.Equal(t, "", string(frames[0].Body))
}
