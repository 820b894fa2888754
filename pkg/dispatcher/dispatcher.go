// Package dispatcher implements the Command Dispatcher (C5): a single
// ingress endpoint that reads dest_id directly out of the wire buffer
// (spec §4.5, no full decode needed) and forwards the raw buffer
// verbatim to the destination's handler endpoint. Grounded on
// ex3_obc_fsw/cmd_dispatcher/src/main.rs and
// ex3_obc_fsw/msg_dispatcher/msg_dispatcher/src/main.rs: a
// component.ID -> client endpoint table built once at startup, with
// absent destinations left out of the table rather than retried.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ex3-obc/fsw-core/pkg/component"
	"github.com/ex3-obc/fsw-core/pkg/ferr"
	"github.com/ex3-obc/fsw-core/pkg/frame"
	"github.com/ex3-obc/fsw-core/pkg/ipc"
)

// PollInterval is the dispatcher's multiplexed wait period (spec §4.3:
// "typically 100 ms").
const PollInterval = 100 * time.Millisecond

// IngressName is the dispatcher's own well-known endpoint name —
// distinct from any component.ID's endpoint name, matching the
// original's cmd_dispatcher binary binding a "cmd_dispatcher" socket
// of its own rather than occupying one of the fixed component slots.
const IngressName = "cmd_dispatcher"

// Dispatcher owns the ingress endpoint and the startup-populated
// destination table.
type Dispatcher struct {
	log     *slog.Logger
	ingress *ipc.Endpoint
	prefix  string
	peers   map[component.ID]*ipc.Endpoint
	stopCh  chan struct{}
}

// New binds the dispatcher's own ingress endpoint (IngressName) and
// attempts to connect a client endpoint to every member of
// component.All(). A destination that fails to connect is logged and
// left absent from peers — the dispatcher itself never hard-exits on
// a missing handler, only on its own bind failure (spec §7:
// ErrConfigFatal is "the only permitted hard exit during steady
// state"). dest=OBC routes to the Scheduler, which binds its own
// ingress at component.EndpointName(component.OBC) — the Scheduler is
// "itself a handler" for OBC-addressed commands (spec §2), not a
// distinct component id.
func New(log *slog.Logger, prefix string) (*Dispatcher, error) {
	ingress, err := ipc.BindServer(prefix, IngressName)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: bind ingress: %w: %w", ferr.ErrConfigFatal, err)
	}

	d := &Dispatcher{
		log:     log,
		ingress: ingress,
		prefix:  prefix,
		peers:   make(map[component.ID]*ipc.Endpoint),
		stopCh:  make(chan struct{}),
	}

	for _, id := range component.All() {
		client, err := ipc.ConnectClient(prefix, component.EndpointName(id))
		if err != nil {
			log.Warn("dispatcher: destination unreachable at startup, leaving absent",
				"dest", id.String(), "err", err)
			continue
		}
		d.peers[id] = client
	}

	return d, nil
}

// Stop signals Run to return after its current poll cycle.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
}

// Run blocks, polling the ingress endpoint and forwarding one
// datagram per cycle, until ctx is canceled or Stop is called.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.stopCh:
			return nil
		default:
		}

		ready, err := ipc.Poll(PollInterval, d.ingress)
		if err != nil {
			return fmt.Errorf("dispatcher: poll: %w", err)
		}
		if len(ready) == 0 {
			continue
		}

		buf := d.ingress.ReadAndClear()
		if err := d.forward(buf); err != nil {
			d.log.Warn("dispatcher: forward failed", "err", err)
		}
	}
}

// forward reads dest_id at frame.DestIndex without a full decode and
// relays buf verbatim to that destination's endpoint. On any failure
// it synthesizes and sends back a Failed ack addressed to src_id
// (spec §7 scenario: unknown/absent destination still gets a
// response, never a silent drop).
func (d *Dispatcher) forward(buf []byte) error {
	if len(buf) <= frame.DestIndex {
		return fmt.Errorf("%w: buffer too short to read dest_id", ferr.ErrFrameMalformed)
	}

	destID := component.ID(buf[frame.DestIndex])
	if !destID.Valid() {
		d.nack(buf, fmt.Sprintf("no dest %d", destID))
		return fmt.Errorf("%w: %d", ferr.ErrUnknownDestination, destID)
	}

	peer, ok := d.peers[destID]
	if !ok {
		d.nack(buf, fmt.Sprintf("handler absent for %s", destID))
		return fmt.Errorf("%w: %s", ferr.ErrHandlerAbsent, destID)
	}

	if _, err := peer.Send(buf); err != nil {
		d.nack(buf, fmt.Sprintf("write failed for %s", destID))
		return fmt.Errorf("%w: send to %s: %w", ferr.ErrIPCFatal, destID, err)
	}
	return nil
}

// nack decodes just enough of buf to build a Failed ack addressed
// back to its srcID and sends it out the ingress endpoint's recorded
// last-peer. Decode failures here are swallowed: a frame too short to
// carry a src_id cannot be meaningfully acked.
func (d *Dispatcher) nack(buf []byte, reason string) {
	f, err := frame.Deserialize(buf)
	if err != nil {
		return
	}
	ack := frame.NewAck(f, component.OBC, reason)
	wire, err := frame.Serialize(ack)
	if err != nil {
		return
	}
	if _, err := d.ingress.Send(wire); err != nil {
		d.log.Warn("dispatcher: nack send failed", "err", err)
	}
}

// Close releases the ingress endpoint and every connected peer
// endpoint.
func (d *Dispatcher) Close() error {
	var first error
	if err := d.ingress.Close(); err != nil {
		first = err
	}
	for _, peer := range d.peers {
		if err := peer.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
