package ipc

import (
	"time"

	"golang.org/x/sys/unix"
)

// Poll performs one multiplexed wait across endpoints with the given
// timeout (spec §4.3: "typically 100 ms"). For each endpoint whose
// descriptor is readable it performs exactly one recvfrom into that
// endpoint's internal buffer and records the sender as last-peer —
// at most one datagram per endpoint per cycle (callers needing drain
// semantics call Poll in a loop). Ordering between endpoints ready in
// the same cycle is unspecified; the returned slice preserves no
// particular order.
//
// Poll returns the subset of endpoints that were readable this cycle.
func Poll(timeout time.Duration, endpoints ...*Endpoint) ([]*Endpoint, error) {
	if len(endpoints) == 0 {
		time.Sleep(timeout)
		return nil, nil
	}

	fds := make([]unix.PollFd, len(endpoints))
	for i, e := range endpoints {
		fds[i] = unix.PollFd{Fd: int32(e.Fd()), Events: unix.POLLIN}
	}

	ms := int(timeout / time.Millisecond)
	n, err := unix.Poll(fds, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	ready := make([]*Endpoint, 0, n)
	for i, pfd := range fds {
		if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
			continue
		}
		if pfd.Revents&unix.POLLIN == 0 {
			// peer gone / error condition with nothing to read this
			// cycle; datagram sockets don't notify on close, so this
			// is surfaced only on a later failed Send.
			continue
		}
		e := endpoints[i]
		if err := e.recv(); err != nil {
			return ready, err
		}
		ready = append(ready, e)
	}

	return ready, nil
}
