package iris

import (
	"bufio"
	"io"
	"testing"
	"time"

	"github.com/ex3-obc/fsw-core/pkg/ferr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopback wires a Capability's peripheral ReadWriter to a goroutine
// that hands each received command line to the test over cmdCh and
// writes back whatever the test sends on replCh, terminated with the
// protocol's response delimiter.
type loopback struct {
	cmdCh  chan string
	replCh chan string
}

func newLoopback() (io.ReadWriter, *loopback) {
	cmdR, cmdW := io.Pipe()
	replR, replW := io.Pipe()
	lb := &loopback{cmdCh: make(chan string, 1), replCh: make(chan string, 1)}

	go func() {
		scanner := bufio.NewScanner(cmdR)
		for scanner.Scan() {
			lb.cmdCh <- scanner.Text()
			reply := <-lb.replCh
			io.WriteString(replW, reply+responseDelim+"\n")
		}
	}()

	rw := struct {
		io.Reader
		io.Writer
	}{Reader: replR, Writer: cmdW}
	return rw, lb
}

func TestGetHKRoundTrip(t *testing.T) {
	rw, lb := newLoopback()
	cap := New(rw)

	go func() {
		cmd := <-lb.cmdCh
		assert.Equal(t, "FTH", cmd)
		lb.replCh <- "OK:batt=3.7"
	}()

	frames, err := cap.HandleOpcode(OpGetHK, nil)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "OK:batt=3.7", string(frames[0].Body))
}

func TestFetchImageEncodesIndex(t *testing.T) {
	rw, lb := newLoopback()
	cap := New(rw)

	go func() {
		cmd := <-lb.cmdCh
		assert.Equal(t, "FTI:3", cmd)
		lb.replCh <- "imgdata"
	}()

	_, err := cap.HandleOpcode(OpFetchImage, []byte{3})
	require.NoError(t, err)
}

func TestToggleSensorRejectsBadBody(t *testing.T) {
	rw, _ := newLoopback()
	cap := New(rw)
	_, err := cap.HandleOpcode(OpToggleSensor, []byte{2})
	assert.ErrorIs(t, err, ferr.ErrFrameMalformed)
}

func TestTickFiresAfterIntervalElapses(t *testing.T) {
	rw, lb := newLoopback()
	cap := New(rw)
	cap.hkInterval = 10 * time.Millisecond

	go func() {
		cmd := <-lb.cmdCh
		assert.Equal(t, "FTH", cmd)
		lb.replCh <- "hk-ok"
	}()
	frames := cap.Tick(time.Now().Add(cap.hkInterval))
	require.Len(t, frames, 1)
	assert.Equal(t, "hk-ok", string(frames[0].Body))

	// immediately again: interval hasn't elapsed since lastHK, no round trip.
	got := cap.Tick(time.Now().Add(cap.hkInterval))
	assert.Nil(t, got)
}
