// Package ipc implements the datagram IPC fabric (spec §3, §4.3): a
// named bidirectional datagram channel with one server binding the
// name and zero-or-more clients addressing it by name. Implemented
// directly on AF_UNIX SOCK_DGRAM sockets via golang.org/x/sys/unix —
// grounded on ex3_shared_libs/interface/src/ipc.rs's raw-syscall
// approach — because the spec's polling contract (one multiplexed
// wait, at most one recvfrom per endpoint per cycle) is a
// descriptor-level guarantee that net.UnixConn's buffering doesn't
// expose directly.
package ipc

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// BufferSize is the fixed receive buffer capacity per endpoint (spec
// §3: "4 KiB").
const BufferSize = 4096

// DatagramCap is the transport-level datagram size cap (spec §6).
const DatagramCap = 4096

// DefaultPrefix is a filesystem path prefix for endpoint socket files
// (spec §6). BindServer and ConnectClient always take an explicit
// prefix and do not fall back to it; the cmd/ binaries default their
// --ipc-prefix flag to /run/fsw.
const DefaultPrefix = "/tmp/ex3-ipc"

// Endpoint is one end of a named datagram channel. It owns exactly
// one socket descriptor and is owned by exactly one process.
type Endpoint struct {
	mu       sync.Mutex
	fd       int
	name     string // our own bound path, empty if anonymous
	isServer bool
	peer     *unix.SockaddrUnix // "last peer": sender for servers, configured server for clients

	buf    [BufferSize]byte
	bufLen int // 0 means empty
}

// ErrNoPeer is returned by Send when no peer address has been
// recorded yet (spec §4.3: "send fails with NoPeer if no address is
// set").
var ErrNoPeer = fmt.Errorf("ipc: no peer address set")

func socketPath(prefix, name string) string {
	return filepath.Join(prefix, name)
}

// BindServer removes any stale socket file at <prefix>/<name>, then
// creates and binds a SOCK_DGRAM socket there (spec §4.3).
func BindServer(prefix, name string) (*Endpoint, error) {
	if err := os.MkdirAll(prefix, 0o755); err != nil {
		return nil, fmt.Errorf("ipc: create prefix dir %s: %w", prefix, err)
	}

	path := socketPath(prefix, name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ipc: clean stale socket %s: %w", path, err)
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, fmt.Errorf("ipc: socket: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ipc: set nonblocking: %w", err)
	}

	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ipc: bind %s (addr in use after clean): %w", path, err)
	}

	return &Endpoint{fd: fd, name: path, isServer: true}, nil
}

// ConnectClient allocates a unique client name under the server's
// namespace (<prefix>/<serverName>_client_<n>, n = 1 + max existing
// sibling), binds a socket to it, and records the server address as
// the default send peer (spec §4.3).
func ConnectClient(prefix, serverName string) (*Endpoint, error) {
	if err := os.MkdirAll(prefix, 0o755); err != nil {
		return nil, fmt.Errorf("ipc: create prefix dir %s: %w", prefix, err)
	}

	n, err := nextClientSuffix(prefix, serverName)
	if err != nil {
		return nil, err
	}
	clientPath := socketPath(prefix, fmt.Sprintf("%s_client_%d", serverName, n))

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, fmt.Errorf("ipc: socket: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ipc: set nonblocking: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: clientPath}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ipc: bind client socket %s: %w", clientPath, err)
	}

	serverPath := socketPath(prefix, serverName)
	return &Endpoint{
		fd:       fd,
		name:     clientPath,
		isServer: false,
		peer:     &unix.SockaddrUnix{Name: serverPath},
	}, nil
}

// nextClientSuffix scans prefix for siblings named <serverName>_client_<n>
// and returns 1 + the largest n found (0 if none exist).
func nextClientSuffix(prefix, serverName string) (int, error) {
	entries, err := os.ReadDir(prefix)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("ipc: scan prefix dir %s: %w", prefix, err)
	}

	want := serverName + "_client_"
	max := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, want) {
			continue
		}
		suffix := strings.TrimPrefix(name, want)
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

// Fd returns the underlying socket descriptor, for use by Poll.
func (e *Endpoint) Fd() int { return e.fd }

// Send sends one datagram to the endpoint's last peer (for servers:
// the most recent sender; for clients: the configured server).
func (e *Endpoint) Send(data []byte) (int, error) {
	e.mu.Lock()
	peer := e.peer
	e.mu.Unlock()

	if peer == nil {
		return 0, ErrNoPeer
	}
	if err := unix.Sendto(e.fd, data, 0, peer); err != nil {
		return 0, fmt.Errorf("ipc: sendto: %w", err)
	}
	return len(data), nil
}

// SendTo sends one datagram to an explicit peer without touching the
// endpoint's recorded last-peer state.
func (e *Endpoint) SendTo(data []byte, peer *unix.SockaddrUnix) error {
	if err := unix.Sendto(e.fd, data, 0, peer); err != nil {
		return fmt.Errorf("ipc: sendto: %w", err)
	}
	return nil
}

// recv performs one non-blocking recvfrom into the endpoint's internal
// buffer, recording the sender as the new last peer. Called only by
// the poller after readiness has been observed.
func (e *Endpoint) recv() error {
	n, from, err := unix.Recvfrom(e.fd, e.buf[:], 0)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("ipc: recvfrom: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.bufLen = n
	if sa, ok := from.(*unix.SockaddrUnix); ok && sa.Name != "" {
		e.peer = sa
	}
	return nil
}

// Buffered reports whether this endpoint's internal receive buffer
// currently holds an unprocessed datagram.
func (e *Endpoint) Buffered() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bufLen > 0
}

// ReadAndClear returns a copy of the buffered datagram and clears the
// buffer.
func (e *Endpoint) ReadAndClear() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bufLen == 0 {
		return nil
	}
	out := make([]byte, e.bufLen)
	copy(out, e.buf[:e.bufLen])
	e.bufLen = 0
	return out
}

// Clear discards any buffered datagram without returning it.
func (e *Endpoint) Clear() {
	e.mu.Lock()
	e.bufLen = 0
	e.mu.Unlock()
}

// Close releases the descriptor and, for a named endpoint, removes
// its filesystem entry (spec §4.3: "endpoints clean up their
// filesystem name on drop").
func (e *Endpoint) Close() error {
	err := unix.Close(e.fd)
	if e.name != "" {
		if rmErr := os.Remove(e.name); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = rmErr
		}
	}
	return err
}

// listClientSuffixes is exposed for tests that want to assert on the
// naming convention without reaching into package internals.
func listClientSuffixes(prefix, serverName string) []int {
	entries, err := os.ReadDir(prefix)
	if err != nil {
		return nil
	}
	want := serverName + "_client_"
	var out []int
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, want) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(name, want)); err == nil {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}
