// Package generic implements a table-driven housekeeping-only
// capability for the subsystems spec.md's prose never narrates in
// detail (ADCS, EPS, GPS, DEPLOYABLES) but whose component ids are
// fixed members of the fabric enumeration (spec §3). Grounded on the
// fact that the original source tree has working per-subsystem
// handlers for these
// (original_source/ex3_obc_fsw/handlers/{adcs,eps,gps}_handler) that
// spec.md's distillation dropped without inventing bespoke peripheral
// protocols for them; this package supplements that gap with a single
// opcode-table shape reused across all four, so the dispatcher's full
// destination table has a live handler for every fixed component id.
package generic

import (
	"fmt"

	"github.com/ex3-obc/fsw-core/pkg/component"
	"github.com/ex3-obc/fsw-core/pkg/ferr"
	"github.com/ex3-obc/fsw-core/pkg/frame"
)

// Op is a single table entry: a human-readable name and a fixed
// reply-body formatter. The reply body is exactly what Reply returns;
// Name is not included in it.
type Op struct {
	Name  string
	Reply func(body []byte) string
}

// Capability is the generic table-driven subsystem. It holds no
// peripheral connection — every opcode is answered synchronously from
// in-memory state.
type Capability struct {
	id    component.ID
	table map[uint8]Op
}

// New constructs a generic Capability for id, dispatching opcode to
// logical operation per table.
func New(id component.ID, table map[uint8]Op) *Capability {
	return &Capability{id: id, table: table}
}

func (c *Capability) Describe() component.ID { return c.id }

func (c *Capability) HandleOpcode(op uint8, body []byte) ([]frame.Frame, error) {
	entry, ok := c.table[op]
	if !ok {
		return nil, fmt.Errorf("%w: opcode %d for %s", ferr.ErrOpcodeInvalid, op, c.id)
	}
	reply := entry.Reply(body)
	return []frame.Frame{{
		Type:   frame.Ack,
		DestID: component.GS,
		SrcID:  c.id,
		OpCode: op,
		Body:   []byte(reply),
	}}, nil
}

// DefaultTable returns the standard GetHK/SetHK pair every generic
// subsystem answers: opcode 0 reports fixed-format housekeeping,
// opcode 1 overwrites it with an operator-supplied string.
func DefaultTable() map[uint8]Op {
	state := &struct{ hk string }{hk: "nominal"}
	return map[uint8]Op{
		0: {Name: "GetHK", Reply: func(body []byte) string {
			return state.hk
		}},
		1: {Name: "SetHK", Reply: func(body []byte) string {
			state.hk = string(body)
			return "OK"
		}},
	}
}
