package handler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ex3-obc/fsw-core/pkg/component"
	"github.com/ex3-obc/fsw-core/pkg/frame"
	"github.com/ex3-obc/fsw-core/pkg/ipc"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type echoCap struct{}

func (echoCap) Describe() component.ID { return component.DFGM }

func (echoCap) HandleOpcode(op uint8, body []byte) ([]frame.Frame, error) {
	return []frame.Frame{{MsgID: 0, Type: frame.Ack, DestID: component.GS, SrcID: component.DFGM, OpCode: op, Body: body}}, nil
}

func TestRuntimeRoundTrip(t *testing.T) {
	prefix := t.TempDir()

	downlink, err := ipc.BindServer(prefix, "downlink_in")
	require.NoError(t, err)
	defer downlink.Close()

	sink, err := NewResponseSink(prefix, 121)
	require.NoError(t, err)

	rt, err := New(testLogger(), prefix, echoCap{}, sink)
	require.NoError(t, err)
	defer rt.Close()

	client, err := ipc.ConnectClient(prefix, component.EndpointName(component.DFGM))
	require.NoError(t, err)
	defer client.Close()

	req := frame.Frame{MsgID: 9, Type: frame.Cmd, DestID: component.DFGM, SrcID: component.GS, OpCode: 3, Body: []byte("hi")}
	wire, err := frame.Serialize(req)
	require.NoError(t, err)
	_, err = client.Send(wire)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go rt.Run(ctx)

	ready, err := ipc.Poll(300*time.Millisecond, downlink)
	require.NoError(t, err)
	require.Len(t, ready, 1)

	got, err := frame.Deserialize(downlink.ReadAndClear())
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), got.Body)
	require.Equal(t, uint8(3), got.OpCode)
	require.Equal(t, req.MsgID, got.MsgID, "response must echo the request's msg_id for correlation")
}

type bulkCap struct{}

func (bulkCap) Describe() component.ID { return component.IRIS }

func (bulkCap) HandleOpcode(op uint8, body []byte) ([]frame.Frame, error) {
	return []frame.Frame{{MsgID: 0, Type: frame.Bulk, DestID: component.GS, SrcID: component.IRIS, OpCode: op, Body: body}}, nil
}

func TestResponseSinkRoutesBulkFramesToBulkDispatcher(t *testing.T) {
	prefix := t.TempDir()

	downlink, err := ipc.BindServer(prefix, "downlink_in")
	require.NoError(t, err)
	defer downlink.Close()

	bulkServer, err := ipc.BindServer(prefix, component.EndpointName(component.BulkMsgDispatcher))
	require.NoError(t, err)
	defer bulkServer.Close()

	sink, err := NewResponseSink(prefix, 121)
	require.NoError(t, err)

	rt, err := New(testLogger(), prefix, bulkCap{}, sink)
	require.NoError(t, err)
	defer rt.Close()

	client, err := ipc.ConnectClient(prefix, component.EndpointName(component.IRIS))
	require.NoError(t, err)
	defer client.Close()

	req := frame.Frame{MsgID: 4, Type: frame.Cmd, DestID: component.IRIS, SrcID: component.GS, OpCode: 1, Body: []byte("image-bytes")}
	wire, err := frame.Serialize(req)
	require.NoError(t, err)
	_, err = client.Send(wire)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go rt.Run(ctx)

	ready, err := ipc.Poll(300*time.Millisecond, bulkServer)
	require.NoError(t, err)
	require.Len(t, ready, 1)

	got, err := frame.Deserialize(bulkServer.ReadAndClear())
	require.NoError(t, err)
	require.Equal(t, []byte("image-bytes"), got.Body)
	require.Equal(t, frame.Bulk, got.Type)
	require.Equal(t, req.MsgID, got.MsgID, "response must echo the request's msg_id for correlation")

	require.False(t, downlink.Buffered(), "bulk response must not land on downlink_in")
}
