// Package radio implements the Radio (Coms) Handler (C4, spec §4.4)
// and the response path's downlink_in endpoint (C8, spec §4.8).
// Grounded on
// original_source/ex3_obc_fsw/handlers/coms_handler/src/main.rs: poll
// the peripheral byte stream and the downlink_in endpoint (every
// handler's responses; the uplink client toward the dispatcher is
// only written to, never read), decrypt
// seam before forwarding uplinked bytes, direct-control dispatch for
// frames addressed to COMS itself, and a bulk-slice-then-pace
// downlink write loop for oversize response bodies.
package radio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ex3-obc/fsw-core/pkg/bulk"
	"github.com/ex3-obc/fsw-core/pkg/component"
	"github.com/ex3-obc/fsw-core/pkg/directctrl"
	"github.com/ex3-obc/fsw-core/pkg/dispatcher"
	"github.com/ex3-obc/fsw-core/pkg/ferr"
	"github.com/ex3-obc/fsw-core/pkg/frame"
	"github.com/ex3-obc/fsw-core/pkg/ipc"
)

// dispatcherIngressName is where uplink_out connects — the Command
// Dispatcher's own well-known endpoint (spec §4.5), distinct from any
// component.ID's endpoint.
const dispatcherIngressName = dispatcher.IngressName

// PollInterval is the radio handler's multiplexed wait period over
// its two IPC endpoints (spec §4.3: "typically 100 ms").
const PollInterval = 100 * time.Millisecond

// FragmentPace is the delay between successive bulk fragment writes
// to the peripheral, keeping a large downlink from monopolizing the
// link (spec §4.4 step 3: "paced fragment sends").
const FragmentPace = 50 * time.Millisecond

// MTU bounds a single uplink read from the peripheral (spec §6).
const MTU = 128

// Transform is the decrypt/encrypt seam applied to bytes crossing the
// peripheral boundary (spec §9 Open Question). The default
// IdentityTransform performs no transformation, matching the
// original's decrypt_bytes_from_gs TODO stub.
type Transform func([]byte) ([]byte, error)

// IdentityTransform returns its input unchanged.
func IdentityTransform(b []byte) ([]byte, error) { return b, nil }

// DefaultOpTable is COMS's direct-control opcode table. Unlike UHF,
// COMS omits SetMode/GetMode (spec §9: two independently-numbered
// direct-control schemes in the original source).
func DefaultOpTable() directctrl.OpTable {
	return directctrl.OpTable{
		0: directctrl.GetHK,
		1: directctrl.SetBeacon,
		2: directctrl.GetBeacon,
		3: directctrl.Reset,
	}
}

// Handler is the radio/Coms process: one peripheral byte stream, one
// uplink-out client toward the dispatcher, one downlink_in server for
// every handler's response frames.
type Handler struct {
	log        *slog.Logger
	peripheral io.ReadWriter
	transform  Transform
	maxBody    int
	opTable    directctrl.OpTable
	state      directctrl.State

	uplinkOut  *ipc.Endpoint // client toward the Command Dispatcher
	downlinkIn *ipc.Endpoint // server every handler's ResponseSink connects to

	stopCh chan struct{}
}

// Config bundles Handler construction parameters.
type Config struct {
	Prefix     string
	Peripheral io.ReadWriter
	Transform  Transform // nil defaults to IdentityTransform
	MaxBody    int       // per-fragment payload budget, defaults to bulk.MaxBulkBody
	OpTable    directctrl.OpTable
}

// New binds uplink_out (a client connecting to the Command
// Dispatcher's endpoint) and downlink_in (a server every subsystem
// handler's ResponseSink connects to).
func New(log *slog.Logger, cfg Config) (*Handler, error) {
	transform := cfg.Transform
	if transform == nil {
		transform = IdentityTransform
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = bulk.MaxBulkBody
	}
	opTable := cfg.OpTable
	if opTable == nil {
		opTable = DefaultOpTable()
	}

	uplinkOut, err := ipc.ConnectClient(cfg.Prefix, dispatcherIngressName)
	if err != nil {
		return nil, fmt.Errorf("radio: connect uplink_out: %w: %w", ferr.ErrConfigFatal, err)
	}

	downlinkIn, err := ipc.BindServer(cfg.Prefix, "downlink_in")
	if err != nil {
		uplinkOut.Close()
		return nil, fmt.Errorf("radio: bind downlink_in: %w: %w", ferr.ErrConfigFatal, err)
	}

	return &Handler{
		log:        log,
		peripheral: cfg.Peripheral,
		transform:  transform,
		maxBody:    maxBody,
		opTable:    opTable,
		uplinkOut:  uplinkOut,
		downlinkIn: downlinkIn,
		stopCh:     make(chan struct{}),
	}, nil
}

// Stop signals Run to return after its current poll cycle.
func (h *Handler) Stop() { close(h.stopCh) }

// Run blocks servicing the peripheral and the downlink_in endpoint
// until ctx is canceled or Stop is called.
func (h *Handler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.stopCh:
			return nil
		default:
		}

		if err := h.pollPeripheral(); err != nil {
			h.log.Warn("radio: peripheral poll failed", "err", err)
		}

		ready, err := ipc.Poll(PollInterval, h.downlinkIn)
		if err != nil {
			return fmt.Errorf("radio: poll downlink_in: %w", err)
		}
		if len(ready) > 0 {
			if err := h.downlink(h.downlinkIn.ReadAndClear()); err != nil {
				h.log.Warn("radio: downlink failed", "err", err)
			}
		}
	}
}

// pollPeripheral performs one non-blocking read attempt from the
// peripheral byte stream; an uplinked frame is decrypted, acked, and
// either dispatched locally (dest == COMS) or forwarded to
// uplink_out.
func (h *Handler) pollPeripheral() error {
	buf := make([]byte, MTU)
	n, err := h.peripheral.Read(buf)
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	if n == 0 {
		return nil
	}

	return h.uplink(buf[:n])
}

// uplink handles one raw peripheral read: decrypt, ack, route.
func (h *Handler) uplink(raw []byte) error {
	decrypted, err := h.transform(raw)
	if err != nil {
		h.sendAck(nil, "ERR decrypt failed")
		return fmt.Errorf("%w: %w", ferr.ErrPeripheralProtocol, err)
	}

	f, err := frame.Deserialize(decrypted)
	if err != nil {
		h.sendAck(nil, "Failed: frame malformed")
		return fmt.Errorf("%w: %w", ferr.ErrFrameMalformed, err)
	}

	h.sendAck(&f, frame.AckSuccess)

	if f.DestID == component.COMS {
		return h.handleLocal(f)
	}

	if _, err := h.uplinkOut.Send(decrypted); err != nil {
		return fmt.Errorf("%w: uplink_out send: %w", ferr.ErrIPCFatal, err)
	}
	return nil
}

// handleLocal dispatches a frame addressed to COMS itself through the
// shared direct-control opcode table (spec §4.4/§4.6).
func (h *Handler) handleLocal(f frame.Frame) error {
	op, err := directctrl.Lookup(h.opTable, f.OpCode)
	if err != nil {
		return h.writeDownlinkResponse(frame.NewAck(f, component.COMS, frame.Failed("Failed: %s", err.Error())))
	}

	result := directctrl.Execute(&h.state, op, f.Body)
	if result.Err != nil {
		return h.writeDownlinkResponse(frame.NewAck(f, component.COMS, frame.Failed("Failed: %s", result.Err.Error())))
	}
	return h.writeDownlinkResponse(frame.NewAck(f, component.COMS, result.Body))
}

// sendAck emits the immediate per-uplink ack (spec §4.4 step 1).
// Failure to decode far enough to build a proper ack (f == nil) still
// emits a best-effort Failed ack with msg_id 0.
func (h *Handler) sendAck(f *frame.Frame, body string) {
	var ack frame.Frame
	if f != nil {
		ack = frame.NewAck(*f, component.COMS, body)
	} else {
		ack = frame.Frame{MsgID: 0, Type: frame.Ack, DestID: component.GS, SrcID: component.COMS, Body: []byte(body)}
	}
	if err := h.writeDownlinkResponse(ack); err != nil {
		h.log.Warn("radio: ack write failed", "err", err)
	}
}

// downlink handles one datagram received on downlink_in: a response
// frame from some handler, to be written out the peripheral link.
func (h *Handler) downlink(buf []byte) error {
	f, err := frame.Deserialize(buf)
	if err != nil {
		return fmt.Errorf("%w: %w", ferr.ErrFrameMalformed, err)
	}
	return h.writeDownlinkResponse(f)
}

// writeDownlinkResponse bulk-slices f if its body exceeds maxBody,
// then paces fragment writes to the peripheral (spec §4.4 step 3).
func (h *Handler) writeDownlinkResponse(f frame.Frame) error {
	frames, err := bulk.Slice(f, h.maxBody)
	if err != nil {
		return fmt.Errorf("radio: slice downlink: %w", err)
	}

	for i, fr := range frames {
		wire, err := frame.Serialize(fr)
		if err != nil {
			return fmt.Errorf("radio: serialize downlink fragment: %w", err)
		}
		encrypted, err := h.transform(wire)
		if err != nil {
			return fmt.Errorf("%w: %w", ferr.ErrPeripheralProtocol, err)
		}
		if _, err := h.peripheral.Write(encrypted); err != nil {
			return fmt.Errorf("%w: peripheral write: %w", ferr.ErrPeripheralTimeout, err)
		}
		if i < len(frames)-1 {
			time.Sleep(FragmentPace)
		}
	}
	return nil
}

// Close releases both IPC endpoints.
func (h *Handler) Close() error {
	err := h.uplinkOut.Close()
	if dErr := h.downlinkIn.Close(); dErr != nil && err == nil {
		err = dErr
	}
	return err
}
