package generic

import (
	"testing"

	"github.com/ex3-obc/fsw-core/pkg/component"
	"github.com/ex3-obc/fsw-core/pkg/ferr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableGetSetHK(t *testing.T) {
	cap := New(component.ADCS, DefaultTable())

	frames, err := cap.HandleOpcode(0, nil)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("nominal"), frames[0].Body)

	_, err = cap.HandleOpcode(1, []byte("sun-pointing"))
	require.NoError(t, err)

	frames, err = cap.HandleOpcode(0, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("sun-pointing"), frames[0].Body)
}

func TestUnknownOpcode(t *testing.T) {
	cap := New(component.EPS, DefaultTable())
	_, err := cap.HandleOpcode(99, nil)
	assert.ErrorIs(t, err, ferr.ErrOpcodeInvalid)
}
