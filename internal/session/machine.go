package session

import (
	"errors"
	"fmt"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/park285/chesslink/internal/board"
	"github.com/park285/chesslink/internal/linkerr"
	"github.com/park285/chesslink/internal/packet"
	"github.com/park285/chesslink/internal/transport"
)

// Tick polls the link once and processes every complete packet the current
// state expects. It never blocks. A non-nil error is fatal and sticky.
func (s *Session) Tick() error {
	if s.err != nil {
		return s.err
	}
	if s.state == Normal {
		return nil
	}

	res := s.link.Read()
	switch res.Status {
	case transport.Fatal:
		return s.fail(res.Err)
	case transport.Data:
		s.rx = append(s.rx, res.Data...)
	}

	for s.err == nil && len(s.rx) > 0 && s.state != Normal {
		var err error
		switch s.state {
		case AwaitingAck:
			err = decodeAck(s)
		case AwaitingMove:
			err = decodeMove(s)
		}
		if errors.Is(err, packet.ErrIncomplete) {
			break
		}
		if err != nil {
			return s.fail(err)
		}
	}
	if s.err == nil && len(s.rx) > maxPending {
		return s.fail(linkerr.Fatalf(linkerr.KindProtocol, "receive", "%d bytes buffered without a complete packet", len(s.rx)))
	}
	if s.err == nil && s.state == AwaitingAck && s.ackTimeout > 0 && s.now().Sub(s.sentAt) > s.ackTimeout {
		return s.fail(linkerr.Fatalf(linkerr.KindTimeout, "await ack", "no ack within %s", s.ackTimeout))
	}
	return s.err
}

func decodeAck(s *Session) error {
	ack, rest, err := packet.Decode[packet.Ack](s.rx)
	if err != nil {
		return decodeErr[packet.Ack](err)
	}
	if ack.EndState != nil && !ack.EndState.Valid() {
		return linkerr.Fatalf(linkerr.KindDecode, "decode ack", "unknown end state %d", uint8(*ack.EndState))
	}
	s.rx = rest
	s.metrics.PacketReceived(packet.KindOf[packet.Ack]())
	s.handleAck(ack)
	return nil
}

func decodeMove(s *Session) error {
	mv, rest, err := packet.Decode[packet.Move](s.rx)
	if err != nil {
		return decodeErr[packet.Move](err)
	}
	if mv.Promotion != nil && !mv.Promotion.Valid() {
		return linkerr.Fatalf(linkerr.KindDecode, "decode move", "unknown promotion piece %d", uint8(*mv.Promotion))
	}
	s.rx = rest
	s.metrics.PacketReceived(packet.KindOf[packet.Move]())
	return s.handleMove(mv)
}

func decodeErr[P packet.Packet](err error) error {
	if errors.Is(err, packet.ErrIncomplete) {
		return err
	}
	return linkerr.Fatal(linkerr.KindDecode, "decode "+packet.KindOf[P](), err)
}

func (s *Session) handleAck(ack packet.Ack) {
	s.metrics.AckLatency(s.now().Sub(s.sentAt))
	s.inFlight = nil
	s.state = AwaitingMove

	peerEnd := packet.EndOrPlaying(ack.EndState)
	if !ack.OK {
		s.metrics.MoveRejected("local")
		s.logger.Warn("link_move_rejected_by_peer", zap.String("peer_end_state", peerEnd.String()))
		end := peerEnd
		if !end.Terminal() {
			end = packet.CheckMate
		}
		s.finish(end, s.info.OwnColor.Other(), "rejected")
		return
	}
	if !peerEnd.Terminal() || s.result != nil {
		if s.result != nil && peerEnd != s.result.EndState && peerEnd.Terminal() {
			s.logger.Warn("link_end_state_mismatch",
				zap.String("local", s.result.EndState.String()),
				zap.String("peer", peerEnd.String()))
		}
		return
	}
	if s.queued == nil {
		s.queued = &peerEnd
	}
	winner := nchess.NoColor
	if !peerEnd.IsDraw() {
		winner = s.info.OwnColor
	}
	s.finish(peerEnd, winner, reasonFor(peerEnd))
}

// Play attempts a local move. A move that needs a promotion choice is held
// until ChoosePromotion; otherwise it is committed and sent.
func (s *Session) Play(from, to nchess.Square) error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.pending != nil {
		return ErrPromotionPending
	}
	cand, ok := s.board.Lookup(from, to)
	if !ok {
		return fmt.Errorf("%w: %s%s", ErrIllegalMove, from, to)
	}
	if cand.Promotion {
		s.pending = &cand
		return nil
	}
	return s.commitAndSend(from, to, nchess.NoPieceType)
}

func (s *Session) ChoosePromotion(pt nchess.PieceType) error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.pending == nil {
		return ErrNoPromotionPending
	}
	if _, ok := board.PromotionFromPieceType(pt); !ok {
		return fmt.Errorf("%w: cannot promote to %v", ErrIllegalMove, pt)
	}
	cand := *s.pending
	s.pending = nil
	return s.commitAndSend(cand.From, cand.To, pt)
}

func (s *Session) CancelPromotion() error {
	if s.pending == nil {
		return ErrNoPromotionPending
	}
	s.pending = nil
	return nil
}

// Resign forfeits the game. It is only allowed on our turn.
func (s *Session) Resign() error {
	if err := s.ready(); err != nil {
		return err
	}
	s.pending = nil
	mv := packet.Move{Forfeit: true}
	if err := s.sendMove(mv); err != nil {
		return err
	}
	s.board.Resign(s.info.OwnColor)
	end := packet.Resignation
	s.queued = &end
	s.finish(end, s.info.OwnColor.Other(), reasonFor(end))
	return nil
}

// OfferDraw attaches a draw offer to our next move. If the peer's last move
// carried an offer, sending ours ends the game by agreement on the peer side,
// which reports it back in its Ack.
func (s *Session) OfferDraw() error {
	if s.err != nil {
		return s.err
	}
	if s.result != nil {
		return ErrGameOver
	}
	s.offerNext = true
	return nil
}

func (s *Session) ready() error {
	if s.err != nil {
		return s.err
	}
	if s.result != nil {
		return ErrGameOver
	}
	if s.state != Normal {
		return ErrNotYourTurn
	}
	return nil
}

func (s *Session) commitAndSend(from, to nchess.Square, promo nchess.PieceType) error {
	c, err := s.board.Commit(from, to, promo)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	mv := packet.Move{
		From:      board.CoordsFromSquare(from),
		To:        board.CoordsFromSquare(to),
		OfferDraw: s.offerNext,
	}
	if p, ok := board.PromotionFromPieceType(c.Promotion); ok {
		mv.Promotion = packet.Promote(p)
	}
	s.afterCommit(c, true)
	if err := s.sendMove(mv); err != nil {
		return err
	}
	if status := s.board.Status(); status.Terminal() {
		s.finish(status, s.winner(), reasonFor(status))
	}
	return nil
}

func (s *Session) sendMove(mv packet.Move) error {
	if err := send(s, mv); err != nil {
		return err
	}
	s.offerOut = mv.OfferDraw
	s.offerNext = false
	s.peerOffer = false
	s.inFlight = &mv
	s.sentAt = s.now()
	s.state = AwaitingAck
	return nil
}

func send[P packet.Packet](s *Session, p P) error {
	kind := packet.KindOf[P]()
	data, err := packet.Encode(p)
	if err != nil {
		return s.fail(linkerr.Fatal(linkerr.KindProtocol, "encode "+kind, err))
	}
	if err := s.link.Write(data); err != nil {
		if !linkerr.IsFatal(err) {
			err = linkerr.Fatal(linkerr.KindWrite, "write "+kind, err)
		}
		return s.fail(err)
	}
	s.metrics.PacketSent(kind)
	return nil
}

// afterCommit runs for every committed move, local or remote.
func (s *Session) afterCommit(c board.Committed, local bool) {
	s.signal = board.Signal{Dirty: true, Last: &c}
	status := s.board.Status()
	if status.Terminal() && s.queued == nil {
		s.queued = &status
	}
	s.logger.Info("link_move_committed",
		zap.String("uci", c.UCI),
		zap.String("san", c.SAN),
		zap.Bool("local", local),
		zap.Int("ply", c.Ply),
		zap.String("status", status.String()))

	ev := Event{
		SessionID: s.info.ID,
		Local:     local,
		Move:      c,
		FEN:       s.board.FEN(),
		Status:    status,
		At:        s.now(),
	}
	for _, h := range s.hooks {
		h.Committed(ev)
	}
}

func (s *Session) winner() nchess.Color {
	switch s.board.Outcome() {
	case nchess.WhiteWon:
		return nchess.White
	case nchess.BlackWon:
		return nchess.Black
	default:
		return nchess.NoColor
	}
}

func (s *Session) finish(end packet.EndState, winner nchess.Color, reason string) {
	if s.result != nil {
		return
	}
	white, black := s.info.LocalName, s.info.PeerName
	if s.info.OwnColor == nchess.Black {
		white, black = black, white
	}
	res := Result{
		SessionID: s.info.ID,
		EndState:  end,
		Winner:    winner,
		Reason:    reason,
		White:     white,
		Black:     black,
		StartFEN:  s.info.StartFEN,
		FEN:       s.board.FEN(),
		SAN:       s.board.SANMoves(),
		At:        s.now(),
	}
	s.result = &res
	s.metrics.GameFinished(end.String())
	s.logger.Info("link_game_finished",
		zap.String("end_state", end.String()),
		zap.String("winner", winner.Name()),
		zap.String("reason", reason))
	for _, h := range s.hooks {
		h.Finished(res)
	}
}

// fail records the first fatal error and closes the link.
func (s *Session) fail(err error) error {
	if s.err != nil {
		return s.err
	}
	s.err = err
	s.metrics.Fatal(string(linkerr.KindOf(err)))
	s.logger.Error("link_session_aborted", zap.Error(err), zap.String("state", s.state.String()))
	if cerr := s.link.Close(); cerr != nil {
		s.logger.Debug("link_close_failed", zap.Error(cerr))
	}
	return err
}

func reasonFor(end packet.EndState) string {
	switch end {
	case packet.CheckMate:
		return "checkmate"
	case packet.Resignation:
		return "resignation"
	case packet.DrawByAgreement:
		return "agreement"
	default:
		return end.String()
	}
}
