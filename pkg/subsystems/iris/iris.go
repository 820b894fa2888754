// Package iris implements the IRIS imaging subsystem capability (spec
// §4.6). IRIS stores images onboard and answers a small line-oriented
// command protocol over its peripheral link; the OBC only ever
// commands it, it never streams unsolicited data. Grounded on
// original_source/ex3_obc_fsw/handlers/iris_handler/src/main.rs's
// handle_msg_for_iris: each opcode maps to a short ASCII command
// ("RST", "ON"/"OFF", "TKI", "FTI:<n>", "FSI:<n>", "FNI", "DTI:<n>",
// "FTT", "STT:<n>", "FTH" for GetHK) sent to the peripheral, with the
// peripheral's reply read back and, for GetHK, returned to the
// caller. The full opcode set is recovered from
// ex3_shared_libs/common/src/lib.rs's opcodes::IRIS enum, which spec.md's
// prose only narrates a HK/download subset of.
package iris

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/ex3-obc/fsw-core/pkg/component"
	"github.com/ex3-obc/fsw-core/pkg/ferr"
	"github.com/ex3-obc/fsw-core/pkg/frame"
)

// Opcodes for IRIS (spec §4.6, ex3_shared_libs/common/src/lib.rs opcodes::IRIS).
const (
	OpCaptureImage uint8 = iota
	OpToggleSensor
	OpFetchImage
	OpGetHK
	OpGetNImagesAvailable
	OpSetTime
	OpGetTime
	OpReset
	OpDelImage
	OpGetImageSize
)

// responseDelim terminates one peripheral response; the peripheral
// protocol frames replies as "<payload>|END|\n" (expansion: spec.md's
// prose describes this family of protocols only as "line-oriented",
// this package picks a concrete terminator consistent with that).
const responseDelim = "|END|"

// Capability implements handler.Capability and handler.Ticker for
// IRIS. hkInterval defaults to 5s (spec §4.6: "periodic 5s HK tick"),
// matching the original's hk_interval even though its own comment
// calls 5s a placeholder for "more realistically every couple mins".
type Capability struct {
	peripheral io.ReadWriter
	reader     *bufio.Reader

	hkInterval time.Duration
	lastHK     time.Time
}

// New constructs an IRIS Capability speaking peripheral's line
// protocol.
func New(peripheral io.ReadWriter) *Capability {
	return &Capability{
		peripheral: peripheral,
		reader:     bufio.NewReader(peripheral),
		hkInterval: 5 * time.Second,
	}
}

func (c *Capability) Describe() component.ID { return component.IRIS }

func (c *Capability) HandleOpcode(op uint8, body []byte) ([]frame.Frame, error) {
	cmd, err := commandFor(op, body)
	if err != nil {
		return nil, err
	}

	reply, err := c.roundTrip(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ferr.ErrPeripheralTimeout, err)
	}

	return []frame.Frame{{
		Type:   frame.Ack,
		DestID: component.GS,
		SrcID:  component.IRIS,
		OpCode: op,
		Body:   []byte(reply),
	}}, nil
}

// Tick emits a GetHK round trip every hkInterval and returns the
// result as an unsolicited Ack frame addressed to GS, mirroring the
// original's collect_hk -> store_iris_data path (spec.md's
// expansion routes HK to the fabric response lane rather than a local
// file, since the core contract has no local-storage concept beyond
// the scheduler's own persistence).
func (c *Capability) Tick(now time.Time) []frame.Frame {
	if now.Sub(c.lastHK) < c.hkInterval {
		return nil
	}
	c.lastHK = now

	reply, err := c.roundTrip("FTH")
	if err != nil {
		return nil
	}
	return []frame.Frame{{
		Type:   frame.Ack,
		DestID: component.GS,
		SrcID:  component.IRIS,
		OpCode: OpGetHK,
		Body:   []byte(reply),
	}}
}

func (c *Capability) roundTrip(cmd string) (string, error) {
	if _, err := io.WriteString(c.peripheral, cmd+"\n"); err != nil {
		return "", err
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return trimResponseDelim(line), nil
}

func trimResponseDelim(line string) string {
	for i := 0; i+len(responseDelim) <= len(line); i++ {
		if line[i:i+len(responseDelim)] == responseDelim {
			return line[:i]
		}
	}
	return line
}

// commandFor translates a fabric opcode + body into the peripheral's
// ASCII command string, exactly as handle_msg_for_iris does.
func commandFor(op uint8, body []byte) (string, error) {
	switch op {
	case OpReset:
		return "RST", nil
	case OpToggleSensor:
		if len(body) != 1 {
			return "", fmt.Errorf("%w: ToggleSensor body must be one byte", ferr.ErrFrameMalformed)
		}
		if body[0] == 1 {
			return "ON", nil
		}
		if body[0] == 0 {
			return "OFF", nil
		}
		return "", fmt.Errorf("%w: invalid ToggleSensor body %d", ferr.ErrFrameMalformed, body[0])
	case OpCaptureImage:
		return "TKI", nil
	case OpFetchImage:
		n, err := singleByteArg(body)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("FTI:%d", n), nil
	case OpGetImageSize:
		n, err := singleByteArg(body)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("FSI:%d", n), nil
	case OpGetNImagesAvailable:
		return "FNI", nil
	case OpDelImage:
		n, err := singleByteArg(body)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("DTI:%d", n), nil
	case OpGetTime:
		return "FTT", nil
	case OpSetTime:
		n, err := singleByteArg(body)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("STT:%d", n), nil
	case OpGetHK:
		return "FTH", nil
	default:
		return "", fmt.Errorf("%w: opcode %d not found for IRIS", ferr.ErrOpcodeInvalid, op)
	}
}

func singleByteArg(body []byte) (uint8, error) {
	if len(body) != 1 {
		return 0, fmt.Errorf("%w: expected a single-byte argument, got %d bytes", ferr.ErrFrameMalformed, len(body))
	}
	return body[0], nil
}
