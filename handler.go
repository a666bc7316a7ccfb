package ffrdp

import (
	"log/slog"
	"math/bits"

	"github.com/asdlei99/ffrdp/internal"
)

// Handler is the FFRDP transport engine. It implements the sliding-window,
// selective-ACK and flow-control state machine over whole datagrams supplied
// and drained by the caller. It owns no socket and never reads the clock:
// every tick-phase method takes the current time as a millisecond counter.
// See [Endpoint] for the socket-owning façade most users want.
//
// A tick runs the phases in order: StartTick, PollSend until empty, Recv per
// inbound datagram, EndTick, PollOut until empty. Handlers are not safe for
// concurrent use.
type Handler struct {
	server    bool
	connected bool
	byeLocal  bool
	byePeer   bool
	wasReset  bool

	sendList frameList
	recvList frameList
	sendSeq  Value
	recvSeq  Value
	// recvWin is the peer's most recently advertised receive capacity in
	// bytes. First transmissions are admitted against it.
	recvWin       uint32
	rtt           rttEstimator
	tickQueryRwin uint32

	bufRx     internal.Ring
	coder     Coder
	validator Validator
	stats     counters
	logger

	// Per-tick accumulators, valid between StartTick and EndTick.
	tickSendUna  Value
	tickSendMack uint32
	tickAckWin   uint32
	tickRecvUna  Value
	gotData      bool

	pollNode  *frameNode
	pollCount int
	pollDone  bool
	parity    []byte

	pendingCtl []ctlFrame
	ctlNext    int
}

// ctlFrame is a queued control datagram (ACK, WIN1 or BYE echo). All control
// frames fit in the ACK size.
type ctlFrame struct {
	n   int
	buf [sizeACK]byte
}

type counters struct {
	sendFirst  uint32
	sendFailed uint32
	resendRTO  uint32
	resendFast uint32
	queryRwin  uint32
}

// Open readies the handler for a new session in the given role. The receive
// ring is allocated on first use and retained across calls. A nil coder
// selects the pass-through [NopCoder].
func (h *Handler) Open(server bool, coder Coder) {
	if h.bufRx.Buf == nil {
		h.bufRx.Buf = make([]byte, sizeRecvBuf)
	}
	if coder == nil {
		coder = NopCoder{}
	}
	h.coder = coder
	h.server = server
	h.stats = counters{}
	h.reset()
	h.wasReset = false
}

// SetLogger sets the handler's structured logger. A nil logger disables
// logging.
func (h *Handler) SetLogger(l *slog.Logger) { h.logger.log = l }

// reset drops all queued frames and returns the sequencing and RTT state to
// its initial values, as after a BYE exchange. The socket-level part of a
// reset (forgetting the peer, draining the datagram queue) belongs to the
// endpoint, which observes it via wasReset.
func (h *Handler) reset() {
	h.sendList.reset()
	h.recvList.reset()
	h.bufRx.Reset()
	h.sendSeq, h.recvSeq = 0, 0
	h.recvWin = sizeRecvBuf / 2
	h.rtt.reset()
	h.tickQueryRwin = 0
	h.connected, h.byeLocal, h.byePeer = false, false, false
	h.stats.sendFirst, h.stats.resendRTO, h.stats.resendFast, h.stats.queryRwin = 0, 0, 0, 0
	h.wasReset = true
}

// Connected reports whether a server handler has adopted a peer. Client
// handlers are always connected.
func (h *Handler) Connected() bool { return !h.server || h.connected }

// WaitSend returns the number of frames queued and not yet cumulatively
// acknowledged.
func (h *Handler) WaitSend() int { return h.sendList.len }

// Buffered returns the number of delivered bytes ready to Read.
func (h *Handler) Buffered() int { return h.bufRx.Buffered() }

// FreeRx returns the free receive-ring space in bytes. This is the window
// advertised to the peer when delivery is not blocked by a sequence hole.
func (h *Handler) FreeRx() int { return h.bufRx.Free() }

// Write queues b for transmission, split into MTU-sized DATA frames. It
// either accepts all of b or none of it: admission requires the queued frame
// count after the split to stay within the wait-send cap, and a server must
// have adopted a peer. On refusal the failed-send counter is bumped and the
// caller may retry after Update ticks have drained the queue.
func (h *Handler) Write(b []byte) (int, error) {
	if h.server && !h.connected {
		h.stats.sendFailed++
		return 0, ErrNotConnected
	}
	nframes := (len(b) + MTU - 1) / MTU
	if h.sendList.len+nframes > maxWaitSend {
		h.stats.sendFailed++
		return 0, ErrQueueFull
	}
	total := len(b)
	for len(b) > 0 {
		size := min(MTU, len(b))
		h.sendList.enqueue(newDataNode(h.sendSeq, b[:size]))
		h.sendSeq = Add(h.sendSeq, 1)
		b = b[size:]
	}
	if total > 0 {
		h.traceSnd("ffrdp:write")
	}
	return total, nil
}

// Read copies up to len(b) delivered bytes out of the receive ring and
// returns the count. A drained ring returns 0, nil.
func (h *Handler) Read(b []byte) (int, error) {
	if h.bufRx.Buffered() == 0 || len(b) == 0 {
		return 0, nil
	}
	return h.bufRx.Read(b)
}

// Bye requests a graceful teardown. Client only: the next ticks emit BYE
// until the peer echoes it, which resets the session.
func (h *Handler) Bye() error {
	if h.server {
		return errServerBye
	}
	h.byeLocal = true
	return nil
}

// StartTick begins an update tick: it snapshots the cumulative-ack positions
// both directions and arms the send-list scan.
func (h *Handler) StartTick(now uint32) {
	h.tickSendUna = 0
	if h.sendList.head != nil {
		h.tickSendUna = h.sendList.head.seq()
	}
	h.tickSendMack = 0
	h.tickAckWin = 0
	h.tickRecvUna = h.recvSeq
	h.gotData = false
	h.pollNode = h.sendList.head
	h.pollCount = 0
	h.pollDone = false
	h.parity = nil
	h.pendingCtl = h.pendingCtl[:0]
	h.ctlNext = 0
}

// PollSend yields the next outbound datagram of the tick's send phase into b
// and returns its length, or 0 when the phase is exhausted. The phase walks
// the send list head-first over at most sendFlowctl frames: frames never
// sent are transmitted if they fit the peer window (otherwise a WIN0 probe
// is emitted, at most once per winCycle, and the scan stops); sent frames
// past their timeout or flagged for fast resend are retransmitted with the
// timeout extended by half the previous interval.
func (h *Handler) PollSend(b []byte, now uint32) (int, error) {
	if len(b) < sizeFullFrame {
		return 0, errShortBuffer
	}
	if h.parity != nil {
		n := copy(b, h.parity)
		h.parity = nil
		return n, nil
	}
	for !h.pollDone && h.pollNode != nil && h.pollCount < sendFlowctl {
		p := h.pollNode
		h.pollNode = p.next
		h.pollCount++
		if p.flags&flagFirstSent == 0 {
			if uint32(p.payloadLen()) <= h.recvWin {
				h.parity = h.coder.EncodeOut(p.data)
				p.tickSend = now
				p.tickTimeout = now + h.rtt.rto
				p.flags |= flagFirstSent
				h.recvWin -= uint32(p.payloadLen())
				h.stats.sendFirst++
				h.traceFrame("snd:first", Frame{p.data})
				return copy(b, p.data), nil
			}
			if int32(now-h.tickQueryRwin) > winCycle {
				h.pollDone = true
				h.tickQueryRwin = now
				h.stats.queryRwin++
				h.trace("snd:win-probe", slog.Uint64("rwin", uint64(h.recvWin)))
				b[0] = byte(FrameWinProbe)
				return sizeProbe, nil
			}
			// Window too small for this frame and probe cycle not yet due.
			// The scan goes on to later frames, which still count toward
			// the scan budget.
			continue
		}
		if int32(now-p.tickTimeout) > 0 || p.flags&flagFastResend != 0 {
			h.parity = h.coder.EncodeOut(p.data)
			if p.flags&flagFastResend != 0 {
				h.stats.resendFast++
			} else {
				h.stats.resendRTO++
			}
			p.tickTimeout += (p.tickTimeout - p.tickSend) / 2
			p.flags &^= flagFastResend
			p.flags |= flagResent
			if h.rtt.rto == maxRTO {
				// Degraded link: retransmit a single frame per tick.
				h.pollDone = true
			}
			h.traceFrame("snd:resend", Frame{p.data})
			return copy(b, p.data), nil
		}
	}
	return 0, nil
}

// Recv processes one inbound datagram. Control responses it provokes (WIN1,
// BYE echo) are queued for PollOut; DATA frames are sequenced into the
// receive list and ACK state accumulates until EndTick.
func (h *Handler) Recv(pkt []byte, now uint32) error {
	frm, err := NewFrame(pkt)
	if err != nil {
		return err
	}
	h.validator.ResetErr()
	frm.ValidateSize(&h.validator)
	if err := h.validator.Err(); err != nil {
		h.trace("rcv:drop", slog.String("err", err.Error()))
		return err
	}
	if h.server && !h.connected {
		h.connected = true
		h.debug("rcv:peer-adopted")
	}
	switch frm.Type() {
	case FrameData:
		out, ok := h.coder.DecodeIn(pkt)
		if !ok {
			return nil
		}
		frm = Frame{out}
		dist := Distance(frm.Seq(), h.tickRecvUna)
		if dist == 0 {
			h.tickRecvUna = Add(h.tickRecvUna, 1)
		}
		if dist >= 0 {
			node := &frameNode{data: append([]byte(nil), out...)}
			h.recvList.enqueue(node)
		}
		h.gotData = true
		h.traceFrame("rcv:data", frm)
	case FrameACK:
		una := frm.Seq()
		mack := uint32(frm.AckMask())
		d := Distance(una, h.tickSendUna)
		if d == 0 {
			h.tickSendMack |= mack
		}
		if d > 0 {
			h.tickSendUna = una
			h.tickSendMack = h.tickSendMack>>uint(d) | mack
			h.tickAckWin = uint32(frm.AckWindow())
		}
		h.traceFrame("rcv:ack", frm)
	case FrameWinProbe:
		// Advertise free space only when delivery is not blocked by a
		// hole at the head of the receive list.
		var win uint32
		if h.recvList.head == nil || h.recvList.head.seq() == h.recvSeq {
			win = uint32(h.bufRx.Free())
		}
		var ctl ctlFrame
		ctl.n = sizeReply
		ctl.buf[0] = byte(FrameWinReply)
		Frame{ctl.buf[:sizeReply]}.SetReplyWindow(uint16(win))
		h.pendingCtl = append(h.pendingCtl, ctl)
		h.trace("rcv:win-probe", slog.Uint64("reply", uint64(win)))
	case FrameWinReply:
		h.recvWin = uint32(frm.ReplyWindow())
		h.tickQueryRwin = now
		h.traceFrame("rcv:win-reply", frm)
	case FrameBye:
		h.debug("rcv:bye")
		if h.server {
			var ctl ctlFrame
			ctl.n = sizeBye
			ctl.buf[0] = byte(FrameBye)
			h.pendingCtl = append(h.pendingCtl, ctl)
			h.reset()
		} else {
			h.byePeer = true
			h.reset()
		}
	}
	return nil
}

// EndTick finishes the tick: the contiguous receive-list prefix is delivered
// into the ring and acknowledged, accumulated ACK state is applied to the
// send list, and a pending client BYE is queued.
func (h *Handler) EndTick(now uint32) {
	if !h.server && h.byeLocal && !h.byePeer {
		var ctl ctlFrame
		ctl.n = sizeBye
		ctl.buf[0] = byte(FrameBye)
		h.pendingCtl = append(h.pendingCtl, ctl)
	}
	if h.gotData {
		h.deliverAndAck()
	}
	h.applyAcks(now)
}

// deliverAndAck drains the deliverable receive-list prefix into the ring and
// queues the tick's ACK frame.
func (h *Handler) deliverAndAck() {
	for head := h.recvList.head; head != nil; head = h.recvList.head {
		if Distance(head.seq(), h.recvSeq) != 0 || head.payloadLen() > h.bufRx.Free() {
			break
		}
		h.bufRx.Write(head.payload())
		h.recvSeq = Add(h.recvSeq, 1)
		h.recvList.remove(head)
	}
	var mask uint16
	i := 0
	for p := h.recvList.head; p != nil && i <= ackMaskBits; i, p = i+1, p.next {
		d := Distance(p.seq(), h.recvSeq)
		if d >= 1 && d <= ackMaskBits {
			mask |= 1 << (d - 1)
		}
	}
	var ctl ctlFrame
	ctl.n = sizeACK
	ack := Frame{ctl.buf[:sizeACK]}
	ack.SetTypeSeq(FrameACK, h.recvSeq)
	var win uint16
	if h.recvList.head == nil || h.recvList.head.seq() != h.recvSeq {
		win = uint16(h.bufRx.Free())
	}
	ack.SetAck(mask, win)
	h.pendingCtl = append(h.pendingCtl, ctl)
	h.traceRcv("rcv:ack-out")
}

// applyAcks removes acknowledged frames from the send list, samples RTT, and
// flags frames overtaken by the selective mask for fast resend.
func (h *Handler) applyAcks(now uint32) {
	if h.sendList.head == nil {
		return
	}
	if Distance(h.tickSendUna, h.sendList.head.seq()) > 0 {
		h.recvWin = h.tickAckWin
		h.tickQueryRwin = now
	}
	maxack := Add(h.tickSendUna, -1)
	if h.tickSendMack != 0 {
		maxack = Add(h.tickSendUna, bits.Len32(h.tickSendMack))
	}
	for p := h.sendList.head; p != nil; {
		d := Distance(p.seq(), h.tickSendUna)
		if d > ackMaskBits || p.flags&flagFirstSent == 0 {
			break
		}
		if d < 0 || (d > 0 && h.tickSendMack&(1<<uint(d-1)) != 0) {
			if p.flags&flagResent == 0 {
				// Karn: retransmitted frames do not feed the estimator.
				h.rtt.sample(now - p.tickSend)
			}
			next := p.next
			h.sendList.remove(p)
			p = next
			continue
		}
		if Distance(maxack, p.seq()) > 0 {
			p.flags |= flagFastResend
		}
		p = p.next
	}
	h.traceSnd("snd:acked")
}

// PollOut yields the next queued control datagram (ACK, WIN1, BYE) into b,
// or 0 when none remain.
func (h *Handler) PollOut(b []byte) (int, error) {
	if h.ctlNext >= len(h.pendingCtl) {
		return 0, nil
	}
	ctl := &h.pendingCtl[h.ctlNext]
	if len(b) < ctl.n {
		return 0, errShortBuffer
	}
	h.ctlNext++
	return copy(b, ctl.buf[:ctl.n]), nil
}

// takeReset reports whether a BYE reset happened since the last call, so the
// endpoint can forget the peer address and drain its socket.
func (h *Handler) takeReset() bool {
	r := h.wasReset
	h.wasReset = false
	return r
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
