// Package ffrdp implements a reliable, ordered, connection-oriented message
// transport over UDP: a 24-bit sliding window with selective acknowledgement
// and fast retransmit, an adaptive retransmission timeout, receive-window
// flow control with a probing sub-protocol, and optional XOR forward error
// correction.
//
// The transport is single threaded and cooperative. [Handler] holds the pure
// state machine driven by millisecond ticks and caller-supplied datagrams;
// [Endpoint] wraps it with a UDP socket, a bounded readiness wait and a
// mutex. An endpoint is either a server (bound, adopts the first peer it
// hears from) or a client (targets one remote address); a session ends with
// a BYE exchange that resets both sides in place.
package ffrdp

import "errors"

//go:generate stringer -type=FrameType -linecomment -output stringers.go .

// Protocol constants. See [Frame] for the wire layout they shape.
const (
	// MTU is the maximum payload bytes carried in one DATA frame.
	MTU = 1024

	sizeHeader  = 4 // frame type byte + 24-bit sequence
	sizeTrailer = 2 // FEC group sequence, zero when FEC is off
	sizeACK     = 8
	sizeProbe   = 1
	sizeReply   = 3
	sizeBye     = 1

	// sizeFullFrame is the on-wire size of a DATA frame with a full MTU
	// payload. Only frames of exactly this size participate in FEC.
	sizeFullFrame = sizeHeader + MTU + sizeTrailer

	sizeRecvBuf = 64*1024 - 4

	minRTO   = 20   // milliseconds
	maxRTO   = 2000 // milliseconds
	winCycle = 100  // minimum milliseconds between window probes

	maxWaitSend = 256 // admission cap on queued-but-unacked frames
	sendFlowctl = 32  // send-list frames examined per tick

	sockRecvBuf = 128 * MTU

	ackMaskBits = 16

	fecRedundancy = 8
)

// FrameType is the first byte of every FFRDP datagram.
type FrameType uint8

const (
	FrameData     FrameType = iota // DATA
	FrameACK                       // ACK
	FrameWinProbe                  // WIN0
	FrameWinReply                  // WIN1
	FrameBye                       // BYE
)

// nodeFlags annotate a queued send-list frame.
type nodeFlags uint8

const (
	// flagFirstSent is set once the frame has been transmitted at least once.
	flagFirstSent nodeFlags = 1 << iota
	// flagFastResend requests retransmission on the next tick after a
	// selective ACK showed a later frame arrived.
	flagFastResend
	// flagResent marks frames retransmitted at least once. Such frames are
	// excluded from RTT sampling (Karn's algorithm).
	flagResent
)

var (
	// ErrQueueFull is the transient admission refusal returned by Write when
	// the queued frame count would exceed the wait-send cap. Callers may
	// retry after a few Update ticks have drained acknowledged frames.
	ErrQueueFull = errors.New("ffrdp: send queue full")
	// ErrNotConnected is returned by a server endpoint's Write before the
	// first peer datagram has been seen.
	ErrNotConnected = errors.New("ffrdp: server has no peer yet")
	// ErrClosed is returned by operations on a freed endpoint.
	ErrClosed = errors.New("ffrdp: endpoint closed")

	errServerBye   = errors.New("ffrdp: bye is client only")
	errShortBuffer = errors.New("ffrdp: short buffer")

	errShortFrame   = errors.New("ffrdp: frame shorter than header")
	errShortACK     = errors.New("ffrdp: short ACK frame")
	errShortReply   = errors.New("ffrdp: short WIN1 frame")
	errBadFrameType = errors.New("ffrdp: unknown frame type")
	errOversized    = errors.New("ffrdp: frame exceeds MTU")
)
