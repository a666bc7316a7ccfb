package ffrdp

import (
	"bytes"
	"math/rand"
	"testing"
	"time"
)

// TestEndpointLoopback exchanges data over real UDP sockets on localhost,
// then tears the session down with a BYE exchange.
func TestEndpointLoopback(t *testing.T) {
	server, err := Listen("127.0.0.1:0", Config{})
	if err != nil {
		t.Fatal("listen:", err)
	}
	defer server.Close()
	client, err := Dial(server.LocalAddr().String(), Config{})
	if err != nil {
		t.Fatal("dial:", err)
	}
	defer client.Close()

	msg := make([]byte, 5000)
	rand.New(rand.NewSource(10)).Read(msg)
	if n, err := client.Write(msg); err != nil || n != len(msg) {
		t.Fatal("client write:", n, err)
	}

	var got []byte
	buf := make([]byte, 8192)
	deadline := time.Now().Add(5 * time.Second)
	for len(got) < len(msg) && time.Now().Before(deadline) {
		if err := client.Update(); err != nil {
			t.Fatal("client update:", err)
		}
		if err := server.Update(); err != nil {
			t.Fatal("server update:", err)
		}
		n, err := server.Read(buf)
		if err != nil {
			t.Fatal("server read:", err)
		}
		got = append(got, buf[:n]...)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("server received %d/%d bytes in order", len(got), len(msg))
	}
	if !server.Peer().IsValid() {
		t.Fatal("server should have adopted the client")
	}

	// Echo back.
	if _, err := server.Write([]byte("pong")); err != nil {
		t.Fatal("server write:", err)
	}
	var reply []byte
	for len(reply) < 4 && time.Now().Before(deadline) {
		server.Update()
		client.Update()
		n, _ := client.Read(buf)
		reply = append(reply, buf[:n]...)
	}
	if string(reply) != "pong" {
		t.Fatalf("client reply %q", reply)
	}

	// Graceful teardown resets both sessions.
	if err := client.Bye(); err != nil {
		t.Fatal("bye:", err)
	}
	for i := 0; i < 50 && server.Peer().IsValid(); i++ {
		client.Update()
		server.Update()
	}
	if server.Peer().IsValid() {
		t.Fatal("server should forget the peer after BYE")
	}
	// Let the client absorb the BYE echo already queued on its socket.
	for i := 0; i < 10; i++ {
		client.Update()
	}
	if s := client.Stats(); s.SendSeq != 0 || s.RecvSeq != 0 || s.WaitSend != 0 {
		t.Fatal("client not reset after BYE:", s)
	}
}

func TestEndpointWriteAfterClose(t *testing.T) {
	server, err := Listen("127.0.0.1:0", Config{})
	if err != nil {
		t.Fatal(err)
	}
	server.Close()
	if _, err := server.Write([]byte("x")); err != ErrClosed {
		t.Fatal("want ErrClosed, got", err)
	}
	if err := server.Update(); err != ErrClosed {
		t.Fatal("want ErrClosed, got", err)
	}
	if err := server.Close(); err != ErrClosed {
		t.Fatal("double close should report ErrClosed, got", err)
	}
}
