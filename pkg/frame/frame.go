// Package frame implements the fixed-header, length-prefixed message
// frame that flows across the entire fabric (spec §3, §4.1). The codec
// is purely functional and holds no state.
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/ex3-obc/fsw-core/pkg/component"
	"github.com/ex3-obc/fsw-core/pkg/ferr"
)

// HeaderSize is the fixed 8-byte header width (spec §3).
const HeaderSize = 8

// MaxLen is the largest value msg_len may take.
const MaxLen = 65535

// Type is the msg_type enum carried in byte 2 of the header.
type Type uint8

const (
	Cmd  Type = 0
	Ack  Type = 1
	Bulk Type = 2
)

func (t Type) String() string {
	switch t {
	case Cmd:
		return "Cmd"
	case Ack:
		return "Ack"
	case Bulk:
		return "Bulk"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// AckCode values used in the body of Ack frames produced directly by
// this codec's callers (spec §7, §8 scenario 4/5).
const (
	AckSuccess = "OK"
)

// Frame is the universal unit of the fabric: header fields plus an
// opaque body.
type Frame struct {
	MsgID  uint16
	Type   Type
	DestID component.ID
	SrcID  component.ID
	OpCode uint8
	Body   []byte
}

// Len returns the total wire length (header + body) this frame would
// serialize to.
func (f Frame) Len() int {
	return HeaderSize + len(f.Body)
}

// Serialize emits the 8-byte header followed by the body. It fails
// only if the resulting msg_len would overflow a 16-bit field.
func Serialize(f Frame) ([]byte, error) {
	total := HeaderSize + len(f.Body)
	if total > MaxLen {
		return nil, fmt.Errorf("frame: body too large (msg_len %d exceeds %d): %w", total, MaxLen, ferr.ErrFrameMalformed)
	}

	out := make([]byte, total)
	binary.LittleEndian.PutUint16(out[0:2], f.MsgID)
	out[2] = byte(f.Type)
	out[3] = byte(f.DestID)
	out[4] = byte(f.SrcID)
	out[5] = byte(f.OpCode)
	binary.LittleEndian.PutUint16(out[6:8], uint16(total))
	copy(out[HeaderSize:], f.Body)
	return out, nil
}

// Deserialize requires at least HeaderSize bytes, reads msg_len, and
// returns a Frame whose Body is exactly msg_len - HeaderSize bytes.
// Trailing bytes past msg_len are ignored by design: peripheral reads
// often return padded buffers.
func Deserialize(buf []byte) (Frame, error) {
	if len(buf) < HeaderSize {
		return Frame{}, fmt.Errorf("frame: %d bytes is shorter than header (%d): %w", len(buf), HeaderSize, ferr.ErrFrameMalformed)
	}

	msgLen := int(binary.LittleEndian.Uint16(buf[6:8]))
	if msgLen < HeaderSize {
		return Frame{}, fmt.Errorf("frame: msg_len %d below header size: %w", msgLen, ferr.ErrFrameMalformed)
	}
	if msgLen > len(buf) {
		return Frame{}, fmt.Errorf("frame: msg_len %d exceeds available %d bytes: %w", msgLen, len(buf), ferr.ErrFrameMalformed)
	}

	body := make([]byte, msgLen-HeaderSize)
	copy(body, buf[HeaderSize:msgLen])

	return Frame{
		MsgID:  binary.LittleEndian.Uint16(buf[0:2]),
		Type:   Type(buf[2]),
		DestID: component.ID(buf[3]),
		SrcID:  component.ID(buf[4]),
		OpCode: buf[5],
		Body:   body,
	}, nil
}

// DestIndex is the byte offset of dest_id within a serialized frame.
// The dispatcher (C5) reads this offset directly without a full
// decode — kept here so that contract lives next to the layout it
// depends on.
const DestIndex = 3

// NewAck builds a minimum-size response frame echoing req's msg_id and
// op_code, per spec §4.8/§7: it addresses the ack back to req's SrcID
// and stamps src as the ack's own SrcID.
func NewAck(req Frame, src component.ID, body string) Frame {
	return Frame{
		MsgID:  req.MsgID,
		Type:   Ack,
		DestID: req.SrcID,
		SrcID:  src,
		OpCode: req.OpCode,
		Body:   []byte(body),
	}
}

// Failed formats the diagnostic body for a Failed ack (spec §7: "a
// Failed ack containing the offending opcode in decimal" etc).
func Failed(reason string, args ...any) string {
	return fmt.Sprintf(reason, args...)
}
