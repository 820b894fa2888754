// Package bulk implements the bulk fragmentation/reassembly protocol
// for payload-sized downlinks (spec §3, §4.2), grounded directly on
// ex3_shared_libs/bulk_msg_slicing's handle_large_msg/reconstruct_msg:
// a header frame carrying the little-endian fragment count followed
// by N sequenced fragments, each body-prefixed with its own
// little-endian sequence number.
package bulk

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ex3-obc/fsw-core/pkg/frame"
)

// MaxBulkBody is the default per-fragment payload budget (spec §3). A
// full fragment carries this many payload bytes after its 2-byte
// sequence prefix, so it is 8 + 2 + 121 = 131 bytes on the wire.
const MaxBulkBody = 121

// SeqWidth is the width in bytes of the little-endian sequence/count
// prefix carried in every bulk frame's body.
const SeqWidth = 2

var (
	ErrEmptyInput    = errors.New("bulk: empty input")
	ErrCountMismatch = errors.New("bulk: fragment count mismatch")
	ErrBadSequence   = errors.New("bulk: fragment out of sequence")
	ErrEmptyBody     = errors.New("bulk: header frame body empty")
)

// Slice splits f into a bulk burst if its body exceeds maxBody. If
// body fits within maxBody, it returns []frame.Frame{f} unchanged —
// no fragmentation occurs. Otherwise it returns one header frame
// (body = little-endian fragment count) followed by ceil(len(body)/
// maxBody) fragment frames, each body-prefixed with its 1-based
// little-endian sequence number. Every emitted frame inherits Type=
// Bulk, MsgID, DestID, SrcID, OpCode from f.
func Slice(f frame.Frame, maxBody int) ([]frame.Frame, error) {
	if maxBody <= 0 {
		return nil, fmt.Errorf("bulk: maxBody must be positive, got %d", maxBody)
	}
	if len(f.Body) <= maxBody {
		return []frame.Frame{f}, nil
	}

	n := (len(f.Body) + maxBody - 1) / maxBody
	if n > 0xFFFF {
		return nil, fmt.Errorf("bulk: %d fragments exceeds 16-bit count", n)
	}

	out := make([]frame.Frame, 0, n+1)

	countBody := make([]byte, SeqWidth)
	binary.LittleEndian.PutUint16(countBody, uint16(n))
	out = append(out, bulkFrame(f, countBody))

	for i := 0; i < n; i++ {
		start := i * maxBody
		end := start + maxBody
		if end > len(f.Body) {
			end = len(f.Body)
		}

		chunk := make([]byte, SeqWidth+(end-start))
		binary.LittleEndian.PutUint16(chunk[:SeqWidth], uint16(i+1))
		copy(chunk[SeqWidth:], f.Body[start:end])
		out = append(out, bulkFrame(f, chunk))
	}

	return out, nil
}

func bulkFrame(f frame.Frame, body []byte) frame.Frame {
	return frame.Frame{
		MsgID:  f.MsgID,
		Type:   frame.Bulk,
		DestID: f.DestID,
		SrcID:  f.SrcID,
		OpCode: f.OpCode,
		Body:   body,
	}
}

// Reassemble reconstructs the original frame from a complete burst.
// frames[0] must be the header frame (body = little-endian fragment
// count N); frames[1:] must be exactly N fragments in ascending
// sequence order, each sequence-prefixed. The returned frame's header
// fields are copied from the header frame, with Type reset to Cmd
// (the pre-slice type is not recoverable from the wire and callers
// that need it must track it out of band).
func Reassemble(frames []frame.Frame) (frame.Frame, error) {
	if len(frames) == 0 {
		return frame.Frame{}, ErrEmptyInput
	}

	header := frames[0]
	if len(header.Body) < SeqWidth {
		return frame.Frame{}, ErrEmptyBody
	}

	n := int(binary.LittleEndian.Uint16(header.Body[:SeqWidth]))
	fragments := frames[1:]
	if len(fragments) != n {
		return frame.Frame{}, fmt.Errorf("%w: header declares %d, got %d", ErrCountMismatch, n, len(fragments))
	}

	body := make([]byte, 0, n*MaxBulkBody)
	for i, fr := range fragments {
		if len(fr.Body) < SeqWidth {
			return frame.Frame{}, ErrEmptyBody
		}
		seq := int(binary.LittleEndian.Uint16(fr.Body[:SeqWidth]))
		if seq != i+1 {
			return frame.Frame{}, fmt.Errorf("%w: expected seq %d, got %d", ErrBadSequence, i+1, seq)
		}
		body = append(body, fr.Body[SeqWidth:]...)
	}

	return frame.Frame{
		MsgID:  header.MsgID,
		Type:   frame.Cmd,
		DestID: header.DestID,
		SrcID:  header.SrcID,
		OpCode: header.OpCode,
		Body:   body,
	}, nil
}
