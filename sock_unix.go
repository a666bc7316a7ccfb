//go:build unix

package ffrdp

import (
	"net/netip"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// readFrom receives one datagram from the socket without ever blocking
// indefinitely. With wait set it parks on the runtime poller for up to
// selectTimeout before the first datagram; without it the read is a pure
// non-blocking drain step. A return of 0 with nil error means the socket is
// drained.
func (e *Endpoint) readFrom(b []byte, wait bool) (int, netip.AddrPort, error) {
	if wait {
		e.sock.SetReadDeadline(time.Now().Add(selectTimeout))
	} else {
		// Clear the wait's deadline so an expired one cannot cut the
		// drain short.
		e.sock.SetReadDeadline(time.Time{})
	}
	var (
		n     int
		src   netip.AddrPort
		operr error
	)
	err := e.raw.Read(func(fd uintptr) bool {
		var sa unix.Sockaddr
		n, sa, operr = unix.Recvfrom(int(fd), b, unix.MSG_DONTWAIT)
		if operr == unix.EAGAIN || operr == unix.EWOULDBLOCK {
			n, operr = 0, nil
			// Park until readable or deadline, but only for the bounded
			// first wait of a tick.
			return !wait
		}
		if operr != nil {
			n = 0
			return true
		}
		src = sockaddrToAddrPort(sa)
		return true
	})
	if err != nil {
		if os.IsTimeout(err) {
			return 0, src, nil
		}
		return 0, src, err
	}
	return n, src, operr
}

func sockaddrToAddrPort(sa unix.Sockaddr) netip.AddrPort {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr), uint16(sa.Port))
	}
	return netip.AddrPort{}
}
