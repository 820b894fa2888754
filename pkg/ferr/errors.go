// Package ferr defines the sentinel error taxonomy shared across the
// message fabric (spec §7). Components compare against these with
// errors.Is/errors.As instead of matching on string text.
package ferr

import "errors"

var (
	// ErrFrameMalformed covers a header too short, a bad msg_len, or a
	// body-length mismatch. Recovered locally: discard the frame and,
	// at ingress boundaries, emit a Failed ack.
	ErrFrameMalformed = errors.New("frame malformed")

	// ErrUnknownDestination is returned by the dispatcher when dest_id
	// is not a member of the fixed component enumeration.
	ErrUnknownDestination = errors.New("unknown destination")

	// ErrHandlerAbsent is returned by the dispatcher when dest_id is
	// known but no live endpoint was connected for it at startup.
	ErrHandlerAbsent = errors.New("handler absent")

	// ErrOpcodeInvalid is returned by a subsystem capability when it
	// does not recognize op_code for its dest_id.
	ErrOpcodeInvalid = errors.New("opcode invalid")

	// ErrPeripheralTimeout is returned after bounded peripheral I/O
	// retries are exhausted.
	ErrPeripheralTimeout = errors.New("peripheral timeout")

	// ErrPeripheralProtocol is returned when a peripheral response
	// cannot be parsed per its wire contract.
	ErrPeripheralProtocol = errors.New("peripheral protocol error")

	// ErrIPCTransient covers WouldBlock/EINTR style conditions;
	// callers retry in-loop and never surface this to a user.
	ErrIPCTransient = errors.New("ipc transient error")

	// ErrIPCFatal covers an endpoint that has vanished; sends fail
	// fast with a Failed ack while the endpoint is reconnected lazily.
	ErrIPCFatal = errors.New("ipc fatal error")

	// ErrPersistFull signals that the scheduler's ring evicted a
	// record to make room; recovery is automatic, this is advisory.
	ErrPersistFull = errors.New("scheduler persistence ring full")

	// ErrConfigFatal covers failure to bind one's own server endpoint
	// at startup — the only permitted hard exit during steady state.
	ErrConfigFatal = errors.New("fatal configuration error")
)
