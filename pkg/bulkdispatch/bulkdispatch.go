// Package bulkdispatch implements the Bulk Message Dispatcher (C9,
// spec §4.9): a thin relay that owns no subsystem state and simply
// forwards bulk fragments from its ingress endpoint to the radio
// handler's downlink_in, verbatim and in order, with no reassembly.
// Grounded on
// original_source/ex3_obc_fsw/bulk_msg_dispatcher/src/main.rs, whose
// handle_client is an empty stub around an IpcServer named
// "dfgm_bulk" — the spec generalizes that single-subsystem stub into
// a fabric-wide relay bound at
// component.EndpointName(component.BulkMsgDispatcher).
package bulkdispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ex3-obc/fsw-core/pkg/component"
	"github.com/ex3-obc/fsw-core/pkg/ferr"
	"github.com/ex3-obc/fsw-core/pkg/ipc"
)

// PollInterval is the relay's multiplexed wait period (spec §4.3:
// "typically 100 ms").
const PollInterval = 100 * time.Millisecond

// Dispatcher owns the bulk-lane ingress endpoint and the client
// endpoint toward the radio handler's downlink_in.
type Dispatcher struct {
	log      *slog.Logger
	ingress  *ipc.Endpoint
	downlink *ipc.Endpoint
	stopCh   chan struct{}
}

// New binds the ingress endpoint at
// component.EndpointName(component.BulkMsgDispatcher) and connects a
// client to downlink_in.
func New(log *slog.Logger, prefix string) (*Dispatcher, error) {
	ingress, err := ipc.BindServer(prefix, component.EndpointName(component.BulkMsgDispatcher))
	if err != nil {
		return nil, fmt.Errorf("bulkdispatch: bind ingress: %w: %w", ferr.ErrConfigFatal, err)
	}

	downlink, err := ipc.ConnectClient(prefix, "downlink_in")
	if err != nil {
		ingress.Close()
		return nil, fmt.Errorf("bulkdispatch: connect downlink_in: %w: %w", ferr.ErrConfigFatal, err)
	}

	return &Dispatcher{
		log:      log,
		ingress:  ingress,
		downlink: downlink,
		stopCh:   make(chan struct{}),
	}, nil
}

// Stop signals Run to return after its current poll cycle.
func (d *Dispatcher) Stop() { close(d.stopCh) }

// Run blocks, relaying one datagram per cycle, until ctx is canceled
// or Stop is called.
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
			return fmt.Errorf("bulkdispatch: poll: %w", err)
		}
		if len(ready) == 0 {
			continue
		}

		if err := d.relay(d.ingress.ReadAndClear()); err != nil {
			d.log.Warn("bulkdispatch: relay failed", "err", err)
		}
	}
}

// relay forwards buf verbatim to downlink_in. No decode, no
// reassembly — bulk fragments already carry their own sequencing
// (spec §4.9: "the core only slices and forwards fragments in
// order").
func (d *Dispatcher) relay(buf []byte) error {
	if _, err := d.downlink.Send(buf); err != nil {
		return fmt.Errorf("%w: forward to downlink_in: %w", ferr.ErrIPCFatal, err)
	}
	return nil
}

// Close releases both IPC endpoints.
func (d *Dispatcher) Close() error {
	err := d.ingress.Close()
	if dErr := d.downlink.Close(); dErr != nil && err == nil {
		err = dErr
	}
	return err
}
