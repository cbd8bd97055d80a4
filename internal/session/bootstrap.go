package session

import (
	"context"
	"errors"
	"time"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/park285/chesslink/internal/board"
	"github.com/park285/chesslink/internal/linkerr"
	"github.com/park285/chesslink/internal/packet"
	"github.com/park285/chesslink/internal/transport"
)

// HostParams is what the host announces in its Start.
type HostParams struct {
	Name  string
	FEN   string
	White bool
	Time  *uint32
	Inc   *uint32
}

type JoinParams struct {
	Name string
}

// Host waits for the joiner's Start, answers with colour and position, and
// returns a session over link. The link is closed on failure.
func Host(ctx context.Context, link Link, p HostParams, opts ...Option) (*Session, error) {
	b, err := board.FromFEN(p.FEN)
	if err != nil {
		_ = link.Close()
		return nil, err
	}
	cfg := configure(opts)

	peer, rest, err := awaitStart(ctx, link, cfg.pollInterval, cfg.logger)
	if err != nil {
		_ = link.Close()
		return nil, err
	}

	fen := b.FEN()
	reply := packet.Start{IsWhite: p.White, FEN: packet.String(fen), Time: p.Time, Inc: p.Inc}
	if p.Name != "" {
		reply.Name = packet.String(p.Name)
	}
	data, err := packet.Encode(reply)
	if err != nil {
		_ = link.Close()
		return nil, linkerr.Fatal(linkerr.KindProtocol, "encode start", err)
	}
	if err := link.Write(data); err != nil {
		_ = link.Close()
		return nil, asFatal(linkerr.KindWrite, "write start", err)
	}

	own := nchess.Black
	if p.White {
		own = nchess.White
	}
	s := New(link, b, Info{
		Host:      true,
		LocalName: p.Name,
		PeerName:  deref(peer.Name),
		StartFEN:  fen,
		OwnColor:  own,
		Time:      p.Time,
		Inc:       p.Inc,
	}, opts...)
	s.rx = rest
	s.metrics.PacketReceived(packet.KindOf[packet.Start]())
	s.metrics.PacketSent(packet.KindOf[packet.Start]())
	s.logger.Info("link_session_started",
		zap.Bool("host", true),
		zap.String("color", own.Name()),
		zap.String("peer", s.info.PeerName),
		zap.String("fen", fen))
	return s, nil
}

// Join sends the joiner's Start, waits for the host's, and returns a session
// playing the colour the host did not take.
func Join(ctx context.Context, link Link, p JoinParams, opts ...Option) (*Session, error) {
	hello := packet.Start{}
	if p.Name != "" {
		hello.Name = packet.String(p.Name)
	}
	data, err := packet.Encode(hello)
	if err != nil {
		_ = link.Close()
		return nil, linkerr.Fatal(linkerr.KindProtocol, "encode start", err)
	}
	if err := link.Write(data); err != nil {
		_ = link.Close()
		return nil, asFatal(linkerr.KindWrite, "write start", err)
	}

	cfg := configure(opts)

	host, rest, err := awaitStart(ctx, link, cfg.pollInterval, cfg.logger)
	if err != nil {
		_ = link.Close()
		return nil, err
	}

	fen := deref(host.FEN)
	if fen == "" {
		fen = board.StartFEN
	}
	b, err := board.FromFEN(fen)
	if err != nil {
		_ = link.Close()
		return nil, linkerr.Fatal(linkerr.KindProtocol, "host fen", err)
	}

	own := nchess.White
	if host.IsWhite {
		own = nchess.Black
	}
	s := New(link, b, Info{
		LocalName: p.Name,
		PeerName:  deref(host.Name),
		StartFEN:  fen,
		OwnColor:  own,
		Time:      host.Time,
		Inc:       host.Inc,
	}, opts...)
	s.rx = rest
	s.metrics.PacketSent(packet.KindOf[packet.Start]())
	s.metrics.PacketReceived(packet.KindOf[packet.Start]())
	s.logger.Info("link_session_started",
		zap.Bool("host", false),
		zap.String("color", own.Name()),
		zap.String("peer", s.info.PeerName),
		zap.String("fen", fen))
	return s, nil
}

// awaitStart blocks until a complete Start arrives, sleeping poll between
// empty reads. Bytes after the Start are returned for the session buffer.
func awaitStart(ctx context.Context, link Link, poll time.Duration, logger *zap.Logger) (packet.Start, []byte, error) {
	var buf []byte
	for {
		res := link.Read()
		switch res.Status {
		case transport.Fatal:
			return packet.Start{}, nil, res.Err
		case transport.Data:
			buf = append(buf, res.Data...)
			start, rest, err := packet.Decode[packet.Start](buf)
			if err == nil {
				return start, rest, nil
			}
			if !errors.Is(err, packet.ErrIncomplete) {
				return packet.Start{}, nil, linkerr.Fatal(linkerr.KindDecode, "decode start", err)
			}
			if len(buf) > maxPending {
				return packet.Start{}, nil, linkerr.Fatalf(linkerr.KindProtocol, "await start", "%d bytes without a start", len(buf))
			}
			continue
		}

		logger.Debug("link_await_start")
		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return packet.Start{}, nil, linkerr.Fatal(linkerr.KindTimeout, "await start", ctx.Err())
		case <-timer.C:
		}
	}
}

func asFatal(kind linkerr.Kind, op string, err error) error {
	if linkerr.IsFatal(err) {
		return err
	}
	return linkerr.Fatal(kind, op, err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
