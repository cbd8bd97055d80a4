package session

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chesslink/internal/board"
	"github.com/park285/chesslink/internal/linkerr"
	"github.com/park285/chesslink/internal/packet"
	"github.com/park285/chesslink/internal/transport"
)

type pipe struct {
	mu     sync.Mutex
	buf    []byte
	closed bool
}

// memLink is one end of an in-memory buffered byte stream.
type memLink struct {
	in, out *pipe
	chunk   int

	mu     sync.Mutex
	writes [][]byte
}

func newPair() (*memLink, *memLink) {
	a, b := &pipe{}, &pipe{}
	return &memLink{in: a, out: b, chunk: transport.MaxChunk}, &memLink{in: b, out: a, chunk: transport.MaxChunk}
}

func (l *memLink) Read() transport.ReadResult {
	l.in.mu.Lock()
	defer l.in.mu.Unlock()
	if len(l.in.buf) == 0 {
		if l.in.closed {
			return transport.ReadResult{Status: transport.Fatal, Err: linkerr.Fatal(linkerr.KindRead, "read", io.EOF)}
		}
		return transport.ReadResult{Status: transport.NoneAvailable}
	}
	n := len(l.in.buf)
	if n > l.chunk {
		n = l.chunk
	}
	data := append([]byte(nil), l.in.buf[:n]...)
	l.in.buf = l.in.buf[n:]
	return transport.ReadResult{Status: transport.Data, Data: data}
}

func (l *memLink) Write(p []byte) error {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if l.out.closed {
		return errors.New("write on closed pipe")
	}
	l.out.buf = append(l.out.buf, p...)
	l.mu.Lock()
	l.writes = append(l.writes, append([]byte(nil), p...))
	l.mu.Unlock()
	return nil
}

func (l *memLink) Close() error {
	for _, p := range []*pipe{l.in, l.out} {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
	}
	return nil
}

func (l *memLink) lastWrite(t *testing.T) []byte {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.writes) == 0 {
		t.Fatalf("nothing written")
	}
	return l.writes[len(l.writes)-1]
}

// raw writes a packet as a peer would.
func raw[P packet.Packet](t *testing.T, l *memLink, p P) {
	t.Helper()
	data, err := packet.Encode(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := l.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readAck drains l until one Ack decodes.
func readAck(t *testing.T, l *memLink) packet.Ack {
	t.Helper()
	var buf []byte
	for i := 0; i < 16; i++ {
		res := l.Read()
		if res.Status == transport.Data {
			buf = append(buf, res.Data...)
		}
		ack, _, err := packet.Decode[packet.Ack](buf)
		if err == nil {
			return ack
		}
	}
	t.Fatalf("no ack received")
	return packet.Ack{}
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

// newGame builds a white and a black session over a shared in-memory link.
func newGame(t *testing.T, fen string, opts ...Option) (*Session, *Session, *memLink, *memLink) {
	t.Helper()
	wl, bl := newPair()
	wb, err := board.FromFEN(fen)
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	bb, _ := board.FromFEN(fen)
	white := New(wl, wb, Info{LocalName: "alice", PeerName: "bob", OwnColor: nchess.White}, opts...)
	black := New(bl, bb, Info{LocalName: "bob", PeerName: "alice", OwnColor: nchess.Black}, opts...)
	return white, black, wl, bl
}

// pump ticks every session until the exchange settles.
func pump(t *testing.T, sessions ...*Session) {
	t.Helper()
	for i := 0; i < 8; i++ {
		for _, s := range sessions {
			if err := s.Tick(); err != nil {
				t.Fatalf("tick: %v", err)
			}
		}
	}
}

func play(t *testing.T, mover *Session, from, to nchess.Square, others ...*Session) {
	t.Helper()
	if err := mover.Play(from, to); err != nil {
		t.Fatalf("play %s%s: %v", from, to, err)
	}
	pump(t, append([]*Session{mover}, others...)...)
}

type recordingHook struct {
	mu       sync.Mutex
	events   []Event
	finished []Result
}

func (h *recordingHook) Committed(ev Event) {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
}

func (h *recordingHook) Finished(res Result) {
	h.mu.Lock()
	h.finished = append(h.finished, res)
	h.mu.Unlock()
}
