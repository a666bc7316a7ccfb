//go:build !unix

package ffrdp

import (
	"net/netip"
	"os"
	"time"
)

// readFrom falls back to deadline-driven reads on platforms without the raw
// non-blocking recvfrom path. The drain step uses a short deadline instead
// of MSG_DONTWAIT, trading a little latency for portability.
func (e *Endpoint) readFrom(b []byte, wait bool) (int, netip.AddrPort, error) {
	d := time.Millisecond
	if wait {
		d = selectTimeout
	}
	e.sock.SetReadDeadline(time.Now().Add(d))
	n, src, err := e.sock.ReadFromUDPAddrPort(b)
	if err != nil {
		if os.IsTimeout(err) {
			return 0, src, nil
		}
		return 0, src, err
	}
	return n, src, nil
}
