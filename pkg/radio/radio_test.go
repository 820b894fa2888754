package radio

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ex3-obc/fsw-core/pkg/component"
	"github.com/ex3-obc/fsw-core/pkg/dispatcher"
	"github.com/ex3-obc/fsw-core/pkg/frame"
	"github.com/ex3-obc/fsw-core/pkg/ipc"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// loopPeripheral is an io.ReadWriter test double over one io.Pipe:
// the pipe is unbuffered, so each Write blocks until Reads on the same
// pipe have consumed it.
type loopPeripheral struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func newLoopPeripheral() *loopPeripheral {
	r, w := io.Pipe()
	return &loopPeripheral{r: r, w: w}
}

func (p *loopPeripheral) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *loopPeripheral) Write(b []byte) (int, error) { return p.w.Write(b) }

func TestUplinkForwardsNonLocalFrame(t *testing.T) {
	prefix := t.TempDir()

	obc, err := ipc.BindServer(prefix, dispatcher.IngressName)
	require.NoError(t, err)
	defer obc.Close()

	peripheral := newLoopPeripheral()
	h, err := New(testLogger(), Config{Prefix: prefix, Peripheral: peripheral})
	require.NoError(t, err)
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go h.Run(ctx)

	f := frame.Frame{MsgID: 11, Type: frame.Cmd, DestID: component.DFGM, SrcID: component.GS, OpCode: 0, Body: []byte("1")}
	wire, err := frame.Serialize(f)
	require.NoError(t, err)

	go peripheral.w.Write(wire)

	ready, err := ipc.Poll(300*time.Millisecond, obc)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	require.Equal(t, wire, obc.ReadAndClear())
}

func TestLocalDirectControlHandledWithoutForwarding(t *testing.T) {
	prefix := t.TempDir()

	obc, err := ipc.BindServer(prefix, dispatcher.IngressName)
	require.NoError(t, err)
	defer obc.Close()

	peripheral := newLoopPeripheral()
	h, err := New(testLogger(), Config{Prefix: prefix, Peripheral: peripheral})
	require.NoError(t, err)
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go h.Run(ctx)

	f := frame.Frame{MsgID: 12, Type: frame.Cmd, DestID: component.COMS, SrcID: component.GS, OpCode: 1, Body: []byte("beaconval")}
	wire, err := frame.Serialize(f)
	require.NoError(t, err)
	go peripheral.w.Write(wire)

	// two responses are written back to the peripheral: the immediate
	// uplink ack, then the direct-control result.
	buf := make([]byte, frame.MaxLen)
	n, err := peripheral.r.Read(buf)
	require.NoError(t, err)
	ackFrame, err := frame.Deserialize(buf[:n])
	require.NoError(t, err)
	require.Equal(t, frame.Ack, ackFrame.Type)

	n, err = peripheral.r.Read(buf)
	require.NoError(t, err)
	resultFrame, err := frame.Deserialize(buf[:n])
	require.NoError(t, err)
	require.Equal(t, "OK", string(resultFrame.Body))

	require.False(t, obc.Buffered(), "direct-control frames must not be forwarded to the dispatcher")
}

func TestDownlinkInWritesToPeripheral(t *testing.T) {
	prefix := t.TempDir()

	obc, err := ipc.BindServer(prefix, dispatcher.IngressName)
	require.NoError(t, err)
	defer obc.Close()

	peripheral := newLoopPeripheral()
	h, err := New(testLogger(), Config{Prefix: prefix, Peripheral: peripheral})
	require.NoError(t, err)
	defer h.Close()

	downlinkClient, err := ipc.ConnectClient(prefix, "downlink_in")
	require.NoError(t, err)
	defer downlinkClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go h.Run(ctx)

	resp := frame.Frame{MsgID: 20, Type: frame.Ack, DestID: component.GS, SrcID: component.DFGM, OpCode: 0, Body: []byte("OK")}
	wire, err := frame.Serialize(resp)
	require.NoError(t, err)
	_, err = downlinkClient.Send(wire)
	require.NoError(t, err)

	buf := make([]byte, frame.MaxLen)
	n, err := peripheral.r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, wire, buf[:n])
}
