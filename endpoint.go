package ffrdp

import (
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"syscall"
	"time"
)

// selectTimeout bounds the readiness wait at the start of Update's receive
// phase so an idle endpoint does not busy-spin.
const selectTimeout = 10 * time.Millisecond

// Config carries the optional knobs of an endpoint. The zero value is valid:
// no logging, FEC disabled.
type Config struct {
	// Logger receives structured transport events. nil disables logging.
	Logger *slog.Logger
	// Coder plugs forward error correction into the data path. nil selects
	// the pass-through default; both peers must agree.
	Coder Coder
}

// Endpoint is the socket-owning FFRDP façade. It layers peer address
// handling, the bounded readiness wait, wall-clock ticks and a mutex over
// [Handler].
//
// An endpoint makes progress only through Update calls; no goroutines are
// spawned internally. All methods may be called from any goroutine.
type Endpoint struct {
	mu     sync.Mutex
	h      Handler
	sock   *net.UDPConn
	raw    syscall.RawConn
	peer   netip.AddrPort
	server bool
	closed bool
	epoch  time.Time
	logger

	txbuf [sizeFullFrame]byte
	rxbuf [sizeFullFrame]byte
}

// Listen creates a server endpoint bound to addr ("ip:port"). The server is
// passive: it adopts the source of the first datagram it sees as its single
// peer and ignores other sources until a BYE exchange resets it.
func Listen(addr string, cfg Config) (*Endpoint, error) {
	ua, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	return open(ua, netip.AddrPort{}, true, cfg)
}

// Dial creates a client endpoint targeting the server at raddr ("ip:port").
// No handshake is performed; the first DATA frame establishes the session.
func Dial(raddr string, cfg Config) (*Endpoint, error) {
	ua, err := net.ResolveUDPAddr("udp", raddr)
	if err != nil {
		return nil, err
	}
	return open(nil, ua.AddrPort(), false, cfg)
}

func open(local *net.UDPAddr, peer netip.AddrPort, server bool, cfg Config) (*Endpoint, error) {
	sock, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, err
	}
	raw, err := sock.SyscallConn()
	if err != nil {
		sock.Close()
		return nil, err
	}
	sock.SetReadBuffer(sockRecvBuf)
	e := &Endpoint{
		sock:   sock,
		raw:    raw,
		peer:   unmapPort(peer),
		server: server,
		epoch:  time.Now(),
	}
	e.logger.log = cfg.Logger
	e.h.Open(server, cfg.Coder)
	e.h.SetLogger(cfg.Logger)
	if server {
		e.debug("ffrdp:listen", slog.String("laddr", sock.LocalAddr().String()))
	} else {
		e.debug("ffrdp:dial", slog.String("raddr", peer.String()))
	}
	return e, nil
}

func unmapPort(ap netip.AddrPort) netip.AddrPort {
	if !ap.IsValid() {
		return ap
	}
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// LocalAddr returns the bound address of the endpoint's socket.
func (e *Endpoint) LocalAddr() netip.AddrPort {
	return e.sock.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Peer returns the current peer address. For a server it is the zero value
// until a peer has been adopted.
func (e *Endpoint) Peer() netip.AddrPort {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peer
}

// now returns milliseconds elapsed since the endpoint was opened, the tick
// unit of the transport engine.
func (e *Endpoint) now() uint32 {
	return uint32(time.Since(e.epoch) / time.Millisecond)
}

// Write queues b for transmission. See [Handler.Write] for the admission
// rule; [ErrQueueFull] refusals are transient.
func (e *Endpoint) Write(b []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	return e.h.Write(b)
}

// Read copies delivered in-order bytes into b and returns the count. It
// never blocks; a drained endpoint returns 0, nil.
func (e *Endpoint) Read(b []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	return e.h.Read(b)
}

// Bye requests a graceful teardown; client only. Subsequent Update ticks
// emit BYE until the server echoes it, which resets both sessions in place.
func (e *Endpoint) Bye() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return e.h.Bye()
}

// Stats returns a snapshot of the transport state and counters.
func (e *Endpoint) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.h.Stats()
}

// Close releases the socket and all queued frames. The peer is not notified;
// use Bye for a graceful teardown first.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.closed = true
	return e.sock.Close()
}

// Update runs one cooperative transport tick: transmit and retransmit queued
// frames within the flow-control and peer-window limits, wait briefly for
// the socket to become readable, drain and dispatch inbound datagrams,
// deliver and acknowledge received data, and apply acknowledgements to the
// send queue. Applications call it in their main loop.
func (e *Endpoint) Update() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	now := e.now()
	e.h.StartTick(now)
	if e.peer.IsValid() {
		for {
			n, err := e.h.PollSend(e.txbuf[:], now)
			if err != nil || n == 0 {
				break
			}
			// Transient send failures are absorbed; the RTO path recovers.
			e.sock.WriteToUDPAddrPort(e.txbuf[:n], e.peer)
		}
	}
	wait := true
	for {
		n, src, err := e.readFrom(e.rxbuf[:], wait)
		wait = false
		if err != nil || n <= 0 {
			break
		}
		src = unmapPort(src)
		if e.server {
			if !e.peer.IsValid() {
				e.peer = src
				e.debug("ffrdp:peer", slog.String("raddr", src.String()))
			} else if src != e.peer {
				continue
			}
		}
		e.h.Recv(e.rxbuf[:n], now)
	}
	e.h.EndTick(now)
	if e.peer.IsValid() {
		for {
			n, err := e.h.PollOut(e.txbuf[:])
			if err != nil || n == 0 {
				break
			}
			e.sock.WriteToUDPAddrPort(e.txbuf[:n], e.peer)
		}
	}
	if e.h.takeReset() {
		if e.server {
			e.peer = netip.AddrPort{}
		}
		e.drain()
		e.debug("ffrdp:reset")
	}
	return nil
}

// drain discards every datagram queued on the socket, part of the session
// reset triggered by a BYE exchange.
func (e *Endpoint) drain() {
	for {
		n, _, err := e.readFrom(e.rxbuf[:], false)
		if err != nil || n <= 0 {
			return
		}
	}
}
