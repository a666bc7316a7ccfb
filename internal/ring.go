package internal

import (
	"errors"
	"io"
)

var (
	errRingBufferFull = errors.New("ffrdp/ring: buffer full")
	errRingNoData     = errors.New("ffrdp/ring: empty write")
)

// Ring implements basic ring buffer functionality over a fixed byte slice.
// It has a single producer and a single consumer; the transport writes
// delivered payload at the tail and the application reads from the head.
type Ring struct {
	// Buf stores data written into Ring with Write and read out with Read.
	Buf []byte
	// Off is the start of readable data, indexing into Buf.
	// If Off==End and End!=0 the buffer is full and data begins at Off.
	Off int
	// End is the end of readable data, not including the byte at End.
	// If End==0 the buffer is empty.
	End int
}

// Write appends data to the ring buffer that can then be read back in order
// with Read. An error is returned if data does not fit in the free space.
func (r *Ring) Write(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, errRingNoData
	} else if len(b) > r.Free() {
		return 0, errRingBufferFull
	}
	if r.End == 0 {
		// Empty buffer: write begins at Off.
		r.End = r.Off
	}
	n := copy(r.Buf[r.End:], b)
	r.End += n
	if n < len(b) {
		n2 := copy(r.Buf, b[n:])
		r.End = n2
		n += n2
	}
	return n, nil
}

// Read reads up to len(b) bytes from the ring buffer and advances the read
// pointer. io.EOF is returned when no data is available.
func (r *Ring) Read(b []byte) (int, error) {
	buffered := r.Buffered()
	if buffered == 0 {
		return 0, io.EOF
	}
	var n int
	if r.End > r.Off {
		n = copy(b, r.Buf[r.Off:r.End])
	} else {
		n = copy(b, r.Buf[r.Off:])
		if n < len(b) {
			n += copy(b[n:], r.Buf[:r.End])
		}
	}
	r.onReadEnd(n, buffered)
	return n, nil
}

// Reset flushes all data from the ring buffer so that no data can be read.
func (r *Ring) Reset() {
	r.Off = 0
	r.End = 0
}

// Size returns the capacity of the ring buffer.
func (r *Ring) Size() int { return len(r.Buf) }

// Buffered returns the amount of bytes ready to be read out of the ring.
func (r *Ring) Buffered() int { return r.Size() - r.Free() }

// Free returns the amount of bytes that can be written before the ring
// reaches capacity.
func (r *Ring) Free() int {
	if r.End == 0 || r.Off == 0 {
		return len(r.Buf) - r.End
	}
	if r.Off < r.End {
		return r.Off + len(r.Buf) - r.End
	}
	return r.Off - r.End
}

// onReadEnd normalizes Off and End after consuming n of buffered bytes so
// the empty and wrapped representations stay canonical.
func (r *Ring) onReadEnd(n, buffered int) {
	if n == buffered {
		r.Reset()
		return
	}
	newOff := r.Off + n
	if newOff >= len(r.Buf) {
		newOff -= len(r.Buf)
	}
	r.Off = newOff
}
