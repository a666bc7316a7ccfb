package ffrdp

import "encoding/binary"

// Coder hooks the transport's transmit and receive paths for forward error
// correction. EncodeOut is called with every outbound DATA frame right before
// transmission and may mutate it (group sequence trailer); a non-nil return
// is an extra frame to transmit immediately after. DecodeIn is called with
// every inbound DATA frame; it returns the frame to surface to the sequencing
// logic (possibly a reconstructed one) or ok=false when the frame was
// consumed by the coder or is unusable.
type Coder interface {
	EncodeOut(frame []byte) (parity []byte)
	DecodeIn(frame []byte) (out []byte, ok bool)
}

// NopCoder is the pass-through default used when FEC is disabled. It zeroes
// the trailer of outbound frames so the peer sees a stable wire image.
type NopCoder struct{}

func (NopCoder) EncodeOut(frame []byte) []byte {
	frame[len(frame)-2], frame[len(frame)-1] = 0, 0
	return nil
}

func (NopCoder) DecodeIn(frame []byte) ([]byte, bool) { return frame, true }

// FECStats counts coder activity. Recovered is the number of lost frames
// reconstructed from parity; Failed counts groups where more than one data
// frame was missing when the parity arrived.
type FECStats struct {
	TxShort   uint32
	TxFull    uint32
	RxShort   uint32
	RxFull    uint32
	Recovered uint32
	Failed    uint32
}

// XORCoder implements single-loss recovery over groups of fecRedundancy
// consecutive full-MTU DATA frames: the group's last slot is an XOR parity
// of the preceding frames. Frames smaller than a full MTU bypass the coder
// on both sides.
//
// A coder instance belongs to exactly one endpoint and must be used on both
// peers for frames to line up. Frames from a NopCoder sender pass through an
// XORCoder receiver unchanged, since their zeroed trailers keep them in one
// group slot; parity frames from an XORCoder sender are not filtered by a
// NopCoder receiver and reach it as ordinary DATA frames.
type XORCoder struct {
	txbuf  [sizeFullFrame]byte
	txseq  uint32
	rxbuf  [sizeFullFrame]byte
	rxout  [sizeFullFrame]byte
	rxseq  uint32
	rxmask uint32
	stats  FECStats
}

// Stats returns a snapshot of the coder's counters.
func (c *XORCoder) Stats() FECStats { return c.stats }

func (c *XORCoder) EncodeOut(frame []byte) []byte {
	if len(frame) != sizeFullFrame {
		c.stats.TxShort++
		return nil
	}
	Frame{frame}.SetGroupSeq(uint16(c.txseq))
	c.txseq++
	xorInto(c.txbuf[:sizeHeader+MTU], frame[:sizeHeader+MTU])
	c.stats.TxFull++
	if c.txseq%fecRedundancy == fecRedundancy-1 {
		binary.LittleEndian.PutUint16(c.txbuf[sizeHeader+MTU:], uint16(c.txseq))
		c.txseq++
		c.txbuf[0] = byte(FrameData)
		parity := append([]byte(nil), c.txbuf[:]...)
		c.txbuf = [sizeFullFrame]byte{}
		return parity
	}
	return nil
}

func (c *XORCoder) DecodeIn(frame []byte) ([]byte, bool) {
	if len(frame) != sizeFullFrame {
		c.stats.RxShort++
		return frame, true
	}
	gseq := uint32(Frame{frame}.GroupSeq())
	if gseq/fecRedundancy != c.rxseq/fecRedundancy {
		// First frame of a new group seeds the accumulator and membership.
		copy(c.rxbuf[:], frame)
		c.rxseq = gseq
		c.rxmask = 1 << (gseq % fecRedundancy)
		if gseq%fecRedundancy == fecRedundancy-1 {
			return nil, false // lone parity, nothing to recover
		}
		c.stats.RxFull++
		return frame, true
	}
	c.rxseq = gseq
	pos := gseq % fecRedundancy
	if c.rxmask&(1<<pos) == 0 {
		xorInto(c.rxbuf[:], frame)
		c.rxmask |= 1 << pos
	}
	if pos == fecRedundancy-1 {
		if c.rxmask == 1<<fecRedundancy-1 {
			return nil, false // group complete, parity redundant
		}
		missing := 0
		for i := 0; i < fecRedundancy-1 && missing <= 1; i++ {
			if c.rxmask&(1<<i) == 0 {
				missing++
			}
		}
		if missing != 1 {
			c.stats.Failed++
			return nil, false
		}
		// The accumulator now holds the XOR of every group member except
		// the missing one, which is exactly the missing frame.
		copy(c.rxout[:], c.rxbuf[:])
		c.rxout[0] = byte(FrameData)
		c.stats.Recovered++
		c.stats.RxFull++
		return c.rxout[:], true
	}
	c.stats.RxFull++
	return frame, true
}

func xorInto(dst, src []byte) {
	for i := range src {
		dst[i] ^= src[i]
	}
}
