// Package shell implements the Shell subsystem capability (spec
// §4.6): runs a command line received in the request body and returns
// its captured stdout, chunked to fit the response lane. Grounded on
// original_source/ex3_obc_fsw/handlers/shell_handler/src/main.rs's
// handle_msg: split the body on spaces into argv, run it, chunk
// stdout into DownlinkMsgBodySize-sized pieces addressed to GS.
package shell

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/ex3-obc/fsw-core/pkg/component"
	"github.com/ex3-obc/fsw-core/pkg/ferr"
	"github.com/ex3-obc/fsw-core/pkg/frame"
)

// DownlinkChunkSize bounds each stdout response chunk (spec §4.6,
// grounded on the original's DONWLINK_MSG_BODY_SIZE constant — sized
// independently of bulk.MaxBulkBody since handler.ResponseSink slices
// further for the radio MTU regardless).
const DownlinkChunkSize = 256

// Runner abstracts process execution so tests don't need a real
// shell/exec surface; production use is execRunner backed by
// os/exec.Command.
type Runner interface {
	Run(argv []string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty command", ferr.ErrFrameMalformed)
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	return cmd.Output()
}

// Capability implements handler.Capability for Shell. Any opcode
// value is accepted; the original protocol carries no opcode
// vocabulary of its own beyond "run this command line".
type Capability struct {
	runner Runner
}

// New constructs a Shell Capability. A nil runner defaults to
// executing real processes via os/exec.
func New(runner Runner) *Capability {
	if runner == nil {
		runner = execRunner{}
	}
	return &Capability{runner: runner}
}

func (c *Capability) Describe() component.ID { return component.SHELL }

func (c *Capability) HandleOpcode(op uint8, body []byte) ([]frame.Frame, error) {
	argv := strings.Fields(string(body))
	out, err := c.runner.Run(argv)
	if err != nil {
		return nil, fmt.Errorf("shell: run %q: %w", string(body), err)
	}

	if len(out) == 0 {
		return []frame.Frame{{Type: frame.Cmd, DestID: component.GS, SrcID: component.SHELL, OpCode: op, Body: nil}}, nil
	}

	frames := make([]frame.Frame, 0, (len(out)+DownlinkChunkSize-1)/DownlinkChunkSize)
	for start := 0; start < len(out); start += DownlinkChunkSize {
		end := start + DownlinkChunkSize
		if end > len(out) {
			end = len(out)
		}
		frames = append(frames, frame.Frame{
			Type:   frame.Cmd,
			DestID: component.GS,
			SrcID:  component.SHELL,
			OpCode: op,
			Body:   out[start:end],
		})
	}
	return frames, nil
}
