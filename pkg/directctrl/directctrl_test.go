package directctrl

import (
	"testing"

	"github.com/ex3-obc/fsw-core/pkg/ferr"
	"github.com/stretchr/testify/assert"
)

func TestSetBeaconRejectsNonPrintable(t *testing.T) {
	var st State
	res := Execute(&st, SetBeacon, []byte{0x01, 0x02})
	assert.ErrorIs(t, res.Err, ferr.ErrFrameMalformed)
}

func TestSetModeRejectsNonDecimal(t *testing.T) {
	var st State
	res := Execute(&st, SetMode, []byte("abc"))
	assert.ErrorIs(t, res.Err, ferr.ErrFrameMalformed)
}

func TestGetHKReportsState(t *testing.T) {
	var st State
	Execute(&st, SetBeacon, []byte("hi"))
	Execute(&st, SetMode, []byte("3"))
	res := Execute(&st, GetHK, nil)
	assert.Contains(t, res.Body, "hi")
	assert.Contains(t, res.Body, "3")
}

func TestLookupUnknownOpcode(t *testing.T) {
	_, err := Lookup(OpTable{0: GetHK}, 9)
	assert.ErrorIs(t, err, ferr.ErrOpcodeInvalid)
}
