// Package uhf implements the UHF subsystem capability (spec §4.6):
// the direct-control opcode table (GetHK, SetBeacon, GetBeacon,
// SetMode, GetMode, Reset), dispatched through pkg/directctrl with
// UHF's own opcode numbering — a separate table from COMS's, per
// spec.md §9's note that the two components carry independently
// numbered direct-control opcode sets in the original source.
package uhf

import (
	"github.com/ex3-obc/fsw-core/pkg/component"
	"github.com/ex3-obc/fsw-core/pkg/directctrl"
	"github.com/ex3-obc/fsw-core/pkg/frame"
)

// DefaultOpTable is UHF's opcode -> operation mapping. UHF exposes
// the full six-entry direct-control set, unlike COMS which omits
// SetMode/GetMode.
func DefaultOpTable() directctrl.OpTable {
	return directctrl.OpTable{
		0: directctrl.GetHK,
		1: directctrl.SetBeacon,
		2: directctrl.GetBeacon,
		3: directctrl.SetMode,
		4: directctrl.GetMode,
		5: directctrl.Reset,
	}
}

// Capability implements handler.Capability for UHF.
type Capability struct {
	table directctrl.OpTable
	state directctrl.State
}

// New constructs a UHF Capability with table (use DefaultOpTable for
// production wiring; tests may supply a narrower table).
func New(table directctrl.OpTable) *Capability {
	return &Capability{table: table}
}

func (c *Capability) Describe() component.ID { return component.UHF }

func (c *Capability) HandleOpcode(op uint8, body []byte) ([]frame.Frame, error) {
	logicalOp, err := directctrl.Lookup(c.table, op)
	if err != nil {
		return nil, err
	}

	result := directctrl.Execute(&c.state, logicalOp, body)
	if result.Err != nil {
		return nil, result.Err
	}

	return []frame.Frame{{
		Type:   frame.Ack,
		DestID: component.GS,
		SrcID:  component.UHF,
		OpCode: op,
		Body:   []byte(result.Body),
	}}, nil
}
