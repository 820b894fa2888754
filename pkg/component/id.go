// Package component defines the fixed enumeration of message-fabric
// participants and the build-time mapping from component id to IPC
// endpoint name.
package component

import "fmt"

// ID identifies a message fabric participant. Values and ordering are
// fixed by the wire contract — every process in the fabric agrees on
// them at build time.
type ID uint8

const (
	OBC ID = iota
	EPS
	ADCS
	DFGM
	IRIS
	GPS
	DEPLOYABLES
	GS
	COMS
	BulkMsgDispatcher
	SHELL
	UHF

	count // sentinel, not a valid id
)

func (id ID) String() string {
	switch id {
	case OBC:
		return "OBC"
	case EPS:
		return "EPS"
	case ADCS:
		return "ADCS"
	case DFGM:
		return "DFGM"
	case IRIS:
		return "IRIS"
	case GPS:
		return "GPS"
	case DEPLOYABLES:
		return "DEPLOYABLES"
	case GS:
		return "GS"
	case COMS:
		return "COMS"
	case BulkMsgDispatcher:
		return "BulkMsgDispatcher"
	case SHELL:
		return "SHELL"
	case UHF:
		return "UHF"
	default:
		return fmt.Sprintf("ID(%d)", uint8(id))
	}
}

// Valid reports whether id is one of the fixed enumeration members.
func (id ID) Valid() bool {
	return id < count
}

// ParseID recovers an ID from its canonical name, as accepted on the
// ground-station CLI surface (spec §6: "<DEST> <OPCODE> <ARGS...>").
func ParseID(s string) (ID, error) {
	for id := ID(0); id < count; id++ {
		if id.String() == s {
			return id, nil
		}
	}
	return 0, fmt.Errorf("component: unknown destination %q", s)
}

// All returns every fixed component id, in ascending order. Used by
// the dispatcher to build its destination table at startup.
func All() []ID {
	ids := make([]ID, 0, int(count))
	for id := ID(0); id < count; id++ {
		ids = append(ids, id)
	}
	return ids
}

// EndpointName returns the IPC fabric's server endpoint name for id.
// This is the fixed id -> endpoint-name mapping spec.md §3 requires be
// known at build time by every component.
func EndpointName(id ID) string {
	switch id {
	case BulkMsgDispatcher:
		return "bulk_msg_dispatcher"
	default:
		return id.String()
	}
}
