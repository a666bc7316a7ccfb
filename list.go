package ffrdp

// frameNode is one queued wire frame. The data slice holds the complete
// on-wire bytes (header, payload, trailer) so that retransmission and FEC
// re-encoding operate on the exact datagram.
type frameNode struct {
	next, prev  *frameNode
	data        []byte
	flags       nodeFlags
	tickSend    uint32 // tick of most recent transmission
	tickTimeout uint32 // tick at which the pending ACK times out
}

func newDataNode(seq Value, payload []byte) *frameNode {
	n := &frameNode{data: make([]byte, sizeHeader+len(payload)+sizeTrailer)}
	Frame{n.data}.SetTypeSeq(FrameData, seq)
	copy(n.data[sizeHeader:], payload)
	return n
}

func (n *frameNode) seq() Value      { return Frame{n.data}.Seq() }
func (n *frameNode) payload() []byte { return Frame{n.data}.Payload() }
func (n *frameNode) payloadLen() int { return len(n.data) - sizeHeader - sizeTrailer }

// frameList is a doubly linked list of frames kept in ascending modular
// sequence order. Both the unacked-send queue and the out-of-order receive
// queue use it.
type frameList struct {
	head, tail *frameNode
	len        int
}

// enqueue inserts node in sequence order, scanning backward from the tail.
// A node whose sequence is already present is dropped and enqueue reports
// false. Frames arrive mostly in order, so the scan is short in the common
// case.
func (l *frameList) enqueue(node *frameNode) bool {
	if l.head == nil {
		l.head, l.tail = node, node
		l.len++
		return true
	}
	seqnew := node.seq()
	for p := l.tail; p != nil; p = p.prev {
		dist := Distance(seqnew, p.seq())
		if dist == 0 {
			return false
		}
		if dist > 0 {
			node.next = p.next
			node.prev = p
			if p.next != nil {
				p.next.prev = node
			} else {
				l.tail = node
			}
			p.next = node
			l.len++
			return true
		}
	}
	node.next = l.head
	node.prev = nil
	node.next.prev = node
	l.head = node
	l.len++
	return true
}

func (l *frameList) remove(node *frameNode) {
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	node.next, node.prev = nil, nil
	l.len--
}

func (l *frameList) reset() {
	l.head, l.tail, l.len = nil, nil, 0
}
