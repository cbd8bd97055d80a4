package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/park285/chesslink/internal/linkerr"
)

func pair(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	type accepted struct {
		c   *Conn
		err error
	}
	ch := make(chan accepted, 1)
	go func() {
		c, err := Accept(ctx, ln, WithPollInterval(20*time.Millisecond))
		ch <- accepted{c, err}
	}()

	joiner, err := Connect(ctx, addr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	res := <-ch
	if res.err != nil {
		t.Fatalf("accept: %v", res.err)
	}
	t.Cleanup(func() { _ = joiner.Close(); _ = res.c.Close() })
	return res.c, joiner
}

func pollUntil(t *testing.T, c *Conn) ReadResult {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		res := c.Read()
		if res.Status != NoneAvailable {
			return res
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no data before deadline")
	return ReadResult{}
}

func TestReadReturnsNoneWhenIdle(t *testing.T) {
	host, _ := pair(t)
	start := time.Now()
	res := host.Read()
	if res.Status != NoneAvailable || len(res.Data) != 0 {
		t.Fatalf("expected NoneAvailable, got %s (%d bytes)", res.Status, len(res.Data))
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("idle read blocked for %s", time.Since(start))
	}
}

func TestWriteThenRead(t *testing.T) {
	host, joiner := pair(t)
	if err := joiner.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	res := pollUntil(t, host)
	if res.Status != Data || string(res.Data) != "hello" {
		t.Fatalf("unexpected read: %s %q", res.Status, res.Data)
	}
}

func TestReadIsChunked(t *testing.T) {
	host, joiner := pair(t)
	payload := make([]byte, MaxChunk*2+10)
	if err := joiner.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	total := 0
	for total < len(payload) {
		res := pollUntil(t, host)
		if len(res.Data) > MaxChunk {
			t.Fatalf("chunk too large: %d", len(res.Data))
		}
		total += len(res.Data)
	}
}

func TestPeerCloseIsFatal(t *testing.T) {
	host, joiner := pair(t)
	_ = joiner.Close()
	res := pollUntil(t, host)
	if res.Status != Fatal {
		t.Fatalf("expected Fatal after peer close, got %s", res.Status)
	}
	if linkerr.KindOf(res.Err) != linkerr.KindRead {
		t.Fatalf("unexpected kind: %v", res.Err)
	}
}

func TestConnectUnreachableIsFatal(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	_, err = Connect(context.Background(), addr)
	if linkerr.KindOf(err) != linkerr.KindConnect {
		t.Fatalf("expected connect failure, got %v", err)
	}
}

func TestListenBindFailureIsFatal(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	_, err = Listen(context.Background(), ln.Addr().String())
	if linkerr.KindOf(err) != linkerr.KindBind {
		t.Fatalf("expected bind failure, got %v", err)
	}
}

func TestAcceptHonoursContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_, err = Accept(ctx, ln, WithPollInterval(10*time.Millisecond))
	if !linkerr.IsFatal(err) {
		t.Fatalf("expected fatal error after context expiry, got %v", err)
	}
}
