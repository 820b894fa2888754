// Package handler implements the reusable Subsystem Handler Runtime
// (C6, spec §4.6): poll its ingress endpoint, decode a frame, dispatch
// to a Capability, serialize and forward any response frames to the
// response path (C8). Composition only — no inheritance — grounded on
// the teacher's own split between pkg/service (the stateful poll
// loop) and pkg/ble (the stateless vocabulary the loop dispatches
// against): Capability plays ble's role here, Runtime plays service's.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ex3-obc/fsw-core/pkg/bulk"
	"github.com/ex3-obc/fsw-core/pkg/component"
	"github.com/ex3-obc/fsw-core/pkg/ferr"
	"github.com/ex3-obc/fsw-core/pkg/frame"
	"github.com/ex3-obc/fsw-core/pkg/ipc"
)

// PollInterval is the handler runtime's multiplexed wait period (spec
// §4.3: "typically 100 ms").
const PollInterval = 100 * time.Millisecond

// Capability is the stateless-to-the-runtime vocabulary a concrete
// subsystem supplies. HandleOpcode returns zero or more response
// frames (most opcodes return exactly one Ack; a bulk download may
// return additional Bulk-typed frames the runtime slices further if
// still oversize).
type Capability interface {
	Describe() component.ID
	HandleOpcode(op uint8, body []byte) ([]frame.Frame, error)
}

// Ticker is an optional Capability extension for subsystems that need
// periodic work independent of incoming opcodes (spec §4.6: IRIS's 5s
// housekeeping beacon).
type Ticker interface {
	Tick(now time.Time) []frame.Frame
}

// ResponseSink forwards response frames to the radio handler's
// downlink_in endpoint (C8, spec §4.8), bulk-slicing any body that
// exceeds maxBody before sending. Bulk-typed fragments are routed
// through the Bulk Message Dispatcher's endpoint instead of straight
// to downlink_in, keeping a large image download off the lane a
// command ack needs (spec.md §1 expansion: the bulk lane is "kept
// distinct from the non-bulk lane so a large image download cannot
// starve a command ack").
type ResponseSink struct {
	downlink *ipc.Endpoint
	bulkOut  *ipc.Endpoint
	maxBody  int
}

// NewResponseSink connects one client endpoint to the COMS
// downlink_in name and one to the Bulk Message Dispatcher, both under
// prefix. A maxBody of zero or less selects bulk.MaxBulkBody.
func NewResponseSink(prefix string, maxBody int) (*ResponseSink, error) {
	if maxBody <= 0 {
		maxBody = bulk.MaxBulkBody
	}
	downlink, err := ipc.ConnectClient(prefix, "downlink_in")
	if err != nil {
		return nil, fmt.Errorf("handler: connect downlink_in: %w", err)
	}
	bulkOut, err := ipc.ConnectClient(prefix, component.EndpointName(component.BulkMsgDispatcher))
	if err != nil {
		downlink.Close()
		return nil, fmt.Errorf("handler: connect bulk dispatcher: %w", err)
	}
	return &ResponseSink{downlink: downlink, bulkOut: bulkOut, maxBody: maxBody}, nil
}

// Send slices f if its body exceeds the sink's maxBody, then writes
// every resulting wire frame out the downlink_in endpoint, except
// Bulk-typed fragments which go to the bulk dispatcher lane.
func (s *ResponseSink) Send(f frame.Frame) error {
	frames, err := bulk.Slice(f, s.maxBody)
	if err != nil {
		return fmt.Errorf("handler: slice response: %w", err)
	}
	for _, fr := range frames {
		wire, err := frame.Serialize(fr)
		if err != nil {
			return fmt.Errorf("handler: serialize response: %w", err)
		}

		dest := s.downlink
		if fr.Type == frame.Bulk {
			dest = s.bulkOut
		}
		if _, err := dest.Send(wire); err != nil {
			return fmt.Errorf("%w: response send: %w", ferr.ErrIPCFatal, err)
		}
	}
	return nil
}

// Close releases the sink's client endpoints.
func (s *ResponseSink) Close() error {
	err := s.downlink.Close()
	if bErr := s.bulkOut.Close(); bErr != nil && err == nil {
		err = bErr
	}
	return err
}

// Runtime is the poll/decode/dispatch/respond loop shared by every
// subsystem handler process.
type Runtime struct {
	log     *slog.Logger
	ingress *ipc.Endpoint
	sink    *ResponseSink
	cap     Capability
	stopCh  chan struct{}
}

// New binds the runtime's own ingress endpoint at
// component.EndpointName(cap.Describe()) and wires it to sink.
func New(log *slog.Logger, prefix string, cap Capability, sink *ResponseSink) (*Runtime, error) {
	ingress, err := ipc.BindServer(prefix, component.EndpointName(cap.Describe()))
	if err != nil {
		return nil, fmt.Errorf("handler: bind ingress: %w: %w", ferr.ErrConfigFatal, err)
	}
	return &Runtime{log: log, ingress: ingress, sink: sink, cap: cap, stopCh: make(chan struct{})}, nil
}

// Stop signals Run to return after its current poll cycle.
func (r *Runtime) Stop() { close(r.stopCh) }

// Run blocks, servicing incoming frames and periodic Tick work, until
// ctx is canceled or Stop is called.
func (r *Runtime) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.stopCh:
			return nil
		default:
		}

		ready, err := ipc.Poll(PollInterval, r.ingress)
		if err != nil {
			return fmt.Errorf("handler: poll: %w", err)
		}

		if ticker, ok := r.cap.(Ticker); ok {
			for _, fr := range ticker.Tick(time.Now()) {
				if err := r.sink.Send(fr); err != nil {
					r.log.Warn("handler: tick response send failed", "err", err)
				}
			}
		}

		if len(ready) == 0 {
			continue
		}

		buf := r.ingress.ReadAndClear()
		if err := r.service(buf); err != nil {
			r.log.Warn("handler: service failed", "dest", r.cap.Describe().String(), "err", err)
		}
	}
}

func (r *Runtime) service(buf []byte) error {
	req, err := frame.Deserialize(buf)
	if err != nil {
		return fmt.Errorf("%w: %w", ferr.ErrFrameMalformed, err)
	}

	responses, err := r.cap.HandleOpcode(req.OpCode, req.Body)
	if err != nil {
		ack := frame.NewAck(req, r.cap.Describe(), frame.Failed("Failed: %s", err.Error()))
		return r.sink.Send(ack)
	}

	for _, resp := range responses {
		// Every response to a request echoes the request's msg_id so
		// the originator can correlate it (spec §3, §7); Capability
		// implementations build response frames without knowing the
		// request's id, so the runtime stamps it here.
		resp.MsgID = req.MsgID
		if err := r.sink.Send(resp); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the runtime's ingress endpoint and response sink.
func (r *Runtime) Close() error {
	err := r.ingress.Close()
	if sinkErr := r.sink.Close(); sinkErr != nil && err == nil {
		err = sinkErr
	}
	return err
}
