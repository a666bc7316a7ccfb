package internal

import (
	"bytes"
	"io"
	"math/rand"
	"testing"
)

func TestRingWriteReadWrap(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	r := Ring{Buf: make([]byte, 97)} // odd size shakes out wrap arithmetic
	var reference bytes.Buffer
	chunk := make([]byte, 64)
	read := make([]byte, 64)
	for i := 0; i < 1000; i++ {
		n := 1 + rng.Intn(len(chunk))
		rng.Read(chunk[:n])
		if n <= r.Free() {
			got, err := r.Write(chunk[:n])
			if err != nil || got != n {
				t.Fatalf("iter %d: write %d: %v", i, got, err)
			}
			reference.Write(chunk[:n])
		}
		if rng.Intn(2) == 0 && r.Buffered() > 0 {
			m := 1 + rng.Intn(len(read))
			got, err := r.Read(read[:m])
			if err != nil {
				t.Fatalf("iter %d: read: %v", i, err)
			}
			want := reference.Next(got)
			if !bytes.Equal(read[:got], want) {
				t.Fatalf("iter %d: ring diverged from reference", i)
			}
		}
		if r.Buffered() != reference.Len() {
			t.Fatalf("iter %d: buffered %d, reference %d", i, r.Buffered(), reference.Len())
		}
		if r.Buffered()+r.Free() != r.Size() {
			t.Fatalf("iter %d: buffered+free != size", i)
		}
	}
}

func TestRingFull(t *testing.T) {
	r := Ring{Buf: make([]byte, 8)}
	if _, err := r.Write(make([]byte, 8)); err != nil {
		t.Fatal("fill to capacity:", err)
	}
	if r.Free() != 0 || r.Buffered() != 8 {
		t.Fatal("full ring accounting:", r.Free(), r.Buffered())
	}
	if _, err := r.Write([]byte{1}); err == nil {
		t.Fatal("write into full ring should fail")
	}
	var out [8]byte
	n, err := r.Read(out[:])
	if err != nil || n != 8 {
		t.Fatal("drain:", n, err)
	}
	if _, err := r.Read(out[:]); err != io.EOF {
		t.Fatal("empty ring should report EOF, got", err)
	}
	if r.Free() != 8 {
		t.Fatal("drained ring not empty:", r.Free())
	}
}
