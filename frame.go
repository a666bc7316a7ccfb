package ffrdp

import (
	"encoding/binary"
	"fmt"
)

// NewFrame returns a Frame over buf. An error is returned if the buffer is
// empty, i.e. holds no frame type byte. Users should still call [Frame.ValidateSize]
// before working with type-specific fields to avoid panics.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < 1 {
		return Frame{}, errShortFrame
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw bytes of one FFRDP datagram and provides methods
// for manipulating, validating and retrieving fields and payload data.
//
// Layout: byte 0 is the frame type. DATA and ACK frames store a 24-bit
// sequence in bytes 1-3 as the little-endian word type|seq<<8. A DATA frame
// carries its payload after the header followed by a 2-byte FEC group
// sequence trailer. An ACK frame carries the 16-bit selective-ack mask at
// bytes 4-5 and the advertised receive window at bytes 6-7. A WIN1 frame
// carries the window at bytes 1-2. WIN0 and BYE are a bare type byte.
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (frm Frame) RawData() []byte { return frm.buf }

// Type returns the frame type byte.
func (frm Frame) Type() FrameType { return FrameType(frm.buf[0]) }

// Seq returns the 24-bit sequence of a DATA or ACK frame. For an ACK frame
// this is the cumulative acknowledgement (una).
func (frm Frame) Seq() Value {
	return Value(binary.LittleEndian.Uint32(frm.buf[0:4]) >> 8)
}

// SetTypeSeq writes the header word holding the frame type and sequence.
func (frm Frame) SetTypeSeq(ft FrameType, seq Value) {
	binary.LittleEndian.PutUint32(frm.buf[0:4], uint32(ft)|uint32(seq&seqMask)<<8)
}

// Payload returns the payload section of a DATA frame, excluding the group
// sequence trailer. Be sure to call [Frame.ValidateSize] beforehand to avoid
// panics.
func (frm Frame) Payload() []byte {
	return frm.buf[sizeHeader : len(frm.buf)-sizeTrailer]
}

// GroupSeq returns the FEC group sequence from a DATA frame's trailer.
func (frm Frame) GroupSeq() uint16 {
	return binary.LittleEndian.Uint16(frm.buf[len(frm.buf)-sizeTrailer:])
}

// SetGroupSeq writes the FEC group sequence trailer of a DATA frame.
func (frm Frame) SetGroupSeq(gseq uint16) {
	binary.LittleEndian.PutUint16(frm.buf[len(frm.buf)-sizeTrailer:], gseq)
}

// AckMask returns the selective-ack bitmask of an ACK frame. Bit i set means
// sequence una+i+1 has been received out of order.
func (frm Frame) AckMask() uint16 { return binary.LittleEndian.Uint16(frm.buf[4:6]) }

// AckWindow returns the receive window advertised by an ACK frame, in bytes.
func (frm Frame) AckWindow() uint16 { return binary.LittleEndian.Uint16(frm.buf[6:8]) }

// SetAck writes the selective-ack mask and advertised window of an ACK frame.
func (frm Frame) SetAck(mask, window uint16) {
	binary.LittleEndian.PutUint16(frm.buf[4:6], mask)
	binary.LittleEndian.PutUint16(frm.buf[6:8], window)
}

// ReplyWindow returns the receive window carried by a WIN1 frame, in bytes.
func (frm Frame) ReplyWindow() uint16 { return binary.LittleEndian.Uint16(frm.buf[1:3]) }

// SetReplyWindow writes the window field of a WIN1 frame.
func (frm Frame) SetReplyWindow(window uint16) {
	binary.LittleEndian.PutUint16(frm.buf[1:3], window)
}

// ValidateSize checks the frame length against what its type field requires.
// It accumulates a non-nil error on the validator on finding an inconsistency.
func (frm Frame) ValidateSize(v *Validator) {
	switch frm.Type() {
	case FrameData:
		if len(frm.buf) < sizeHeader+sizeTrailer {
			v.gotErr(errShortFrame)
		} else if len(frm.buf) > sizeFullFrame {
			v.gotErr(errOversized)
		}
	case FrameACK:
		if len(frm.buf) < sizeACK {
			v.gotErr(errShortACK)
		}
	case FrameWinReply:
		if len(frm.buf) < sizeReply {
			v.gotErr(errShortReply)
		}
	case FrameWinProbe, FrameBye:
		// Bare type byte, nothing more to check.
	default:
		v.gotErr(errBadFrameType)
	}
}

func (frm Frame) String() string {
	switch frm.Type() {
	case FrameData:
		return fmt.Sprintf("DATA seq=%d len=%d", frm.Seq(), len(frm.buf)-sizeHeader-sizeTrailer)
	case FrameACK:
		return fmt.Sprintf("ACK una=%d mask=%#04x wnd=%d", frm.Seq(), frm.AckMask(), frm.AckWindow())
	case FrameWinProbe:
		return "WIN0"
	case FrameWinReply:
		return fmt.Sprintf("WIN1 wnd=%d", frm.ReplyWindow())
	case FrameBye:
		return "BYE"
	}
	return fmt.Sprintf("FFRDP(%d)", frm.buf[0])
}
