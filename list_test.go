package ffrdp

import (
	"math/rand"
	"testing"
)

func listSeqs(l *frameList) []Value {
	var seqs []Value
	for p := l.head; p != nil; p = p.next {
		seqs = append(seqs, p.seq())
	}
	return seqs
}

func checkOrdered(t *testing.T, l *frameList) {
	t.Helper()
	seqs := listSeqs(l)
	if len(seqs) != l.len {
		t.Fatalf("len field %d but %d nodes reachable", l.len, len(seqs))
	}
	for i := 1; i < len(seqs); i++ {
		if Distance(seqs[i], seqs[i-1]) <= 0 {
			t.Fatalf("order violated at %d: %v", i, seqs)
		}
	}
	// Backward links must mirror forward links.
	n := 0
	for p := l.tail; p != nil; p = p.prev {
		n++
	}
	if n != l.len {
		t.Fatalf("backward walk found %d nodes, len is %d", n, l.len)
	}
}

func TestListShuffledInsert(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for round := 0; round < 20; round++ {
		var l frameList
		seqs := rng.Perm(50)
		for _, s := range seqs {
			if !l.enqueue(newDataNode(Value(s), nil)) {
				t.Fatal("fresh sequence rejected:", s)
			}
		}
		checkOrdered(t, &l)
		if l.len != 50 {
			t.Fatal("lost nodes:", l.len)
		}
	}
}

func TestListDuplicateSuppression(t *testing.T) {
	var l frameList
	for _, s := range []Value{5, 3, 7, 3, 5, 5, 9, 7} {
		l.enqueue(newDataNode(s, nil))
	}
	checkOrdered(t, &l)
	if got := listSeqs(&l); len(got) != 4 {
		t.Fatal("duplicates admitted:", got)
	}
	if l.enqueue(newDataNode(5, nil)) {
		t.Fatal("duplicate enqueue reported success")
	}
}

func TestListInsertAcrossWrap(t *testing.T) {
	var l frameList
	// Sequences straddling the 24-bit wrap still order by modular distance.
	for _, s := range []Value{seqMask - 1, 1, seqMask, 0, 2} {
		l.enqueue(newDataNode(s, nil))
	}
	want := []Value{seqMask - 1, seqMask, 0, 1, 2}
	got := listSeqs(&l)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("wrap order: got %v want %v", got, want)
		}
	}
}

func TestListRemove(t *testing.T) {
	var l frameList
	nodes := make([]*frameNode, 5)
	for i := range nodes {
		nodes[i] = newDataNode(Value(i), nil)
		l.enqueue(nodes[i])
	}
	l.remove(nodes[0]) // head
	l.remove(nodes[4]) // tail
	l.remove(nodes[2]) // middle
	checkOrdered(t, &l)
	if got := listSeqs(&l); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatal("remove left:", got)
	}
	l.remove(nodes[1])
	l.remove(nodes[3])
	if l.head != nil || l.tail != nil || l.len != 0 {
		t.Fatal("emptied list not clean")
	}
}
