// Package dfgm implements the DFGM subsystem capability (spec §4.6).
// DFGM is a simple magnetometer peripheral that streams ~1250-byte
// packets at 1Hz with no opcode-level control surface of its own; the
// only fabric-visible behavior is a single toggle that starts/stops
// persisting whatever the peripheral streams. Grounded on
// original_source/ex3_obc_fsw/handlers/dfgm_handler/src/main.rs's
// DFGMHandler: toggle_data_collection flag, ASCII '0'/'1' body
// encoding for the toggle opcode, store-to-file while collecting.
package dfgm

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ex3-obc/fsw-core/pkg/component"
	"github.com/ex3-obc/fsw-core/pkg/ferr"
	"github.com/ex3-obc/fsw-core/pkg/frame"
)

// Opcode values for DFGM (spec §4.6, original_source opcodes::DFGM).
const (
	OpToggleDataCollection uint8 = 0
)

// Capability implements handler.Capability and handler.Ticker for the
// DFGM subsystem.
type Capability struct {
	peripheral io.Reader
	sink       io.Writer // the open data file; persisted packets are appended here

	mu         sync.Mutex
	collecting bool
}

// New constructs a DFGM Capability. peripheral is the magnetometer's
// byte stream; sink is the already-open data file packets are
// appended to while collecting is enabled.
func New(peripheral io.Reader, sink io.Writer) *Capability {
	return &Capability{peripheral: peripheral, sink: sink}
}

func (c *Capability) Describe() component.ID { return component.DFGM }

// HandleOpcode only recognizes OpToggleDataCollection; the body is a
// single ASCII '0' or '1' byte exactly as the original peripheral
// protocol encodes it.
func (c *Capability) HandleOpcode(op uint8, body []byte) ([]frame.Frame, error) {
	if op != OpToggleDataCollection {
		return nil, fmt.Errorf("%w: opcode %d for DFGM", ferr.ErrOpcodeInvalid, op)
	}
	if len(body) != 1 || (body[0] != '0' && body[0] != '1') {
		return nil, fmt.Errorf("%w: DFGM toggle body must be ASCII '0' or '1', got %v", ferr.ErrFrameMalformed, body)
	}

	c.mu.Lock()
	c.collecting = body[0] == '1'
	c.mu.Unlock()

	return []frame.Frame{{
		Type:   frame.Ack,
		DestID: component.GS,
		SrcID:  component.DFGM,
		OpCode: op,
		Body:   []byte(frame.AckSuccess),
	}}, nil
}

// Tick reads one peripheral packet per cycle and appends it to sink
// when collection is enabled; it never produces fabric responses of
// its own, matching the original's fire-and-forget store loop.
func (c *Capability) Tick(now time.Time) []frame.Frame {
	c.mu.Lock()
	collecting := c.collecting
	c.mu.Unlock()
	if !collecting {
		return nil
	}

	buf := make([]byte, 1252)
	n, err := c.peripheral.Read(buf)
	if err != nil || n == 0 {
		return nil
	}
	c.sink.Write(buf[:n])
	return nil
}
